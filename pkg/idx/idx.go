// Package idx generates and validates the ULID identifiers used for users
// and request correlation.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is the canonical 26 character Crockford base32 form of a ULID.
type ID string

// Zero is the empty ID. It never identifies a stored record.
const Zero ID = ""

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

var (
	sourceOnce sync.Once
	source     *monotonicSource
)

// monotonicSource serialises access to a monotonic entropy reader so IDs
// minted within the same millisecond still sort in creation order.
type monotonicSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (s *monotonicSource) at(t time.Time) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ID(ulid.MustNew(ulid.Timestamp(t), s.entropy).String())
}

func shared() *monotonicSource {
	sourceOnce.Do(func() {
		source = &monotonicSource{entropy: ulid.Monotonic(rand.Reader, 0)}
	})
	return source
}

// New returns a fresh ID stamped with the current UTC time.
func New() ID {
	return shared().at(time.Now().UTC())
}

// NewAt returns a fresh ID stamped with t. Handy for fixtures.
func NewAt(t time.Time) ID {
	return shared().at(t.UTC())
}

// Parse validates s strictly and returns it as an ID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

// Valid reports whether s is a well formed ULID.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Time extracts the embedded timestamp, or the zero time for invalid IDs.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(id.String())
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
