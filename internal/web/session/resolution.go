package session

// Resolution records why a request did or did not carry a usable session.
// Callers only act on Valid versus everything else; the other values exist
// for logs and metrics.
type Resolution int

const (
	ResolutionAbsent Resolution = iota
	ResolutionMalformed
	ResolutionExpired
	ResolutionInvalidClaim
	ResolutionValid
)

func (r Resolution) String() string {
	switch r {
	case ResolutionAbsent:
		return "absent"
	case ResolutionMalformed:
		return "malformed"
	case ResolutionExpired:
		return "expired"
	case ResolutionInvalidClaim:
		return "invalid_claim"
	case ResolutionValid:
		return "valid"
	default:
		return "unknown"
	}
}
