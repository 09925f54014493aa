package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	envFile = ""

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	output, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "migrate", "gen-secret"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestGenSecret(t *testing.T) {
	first, err := execute(t, "gen-secret")
	require.NoError(t, err)
	second, err := execute(t, "gen-secret")
	require.NoError(t, err)

	first, second = strings.TrimSpace(first), strings.TrimSpace(second)
	assert.Len(t, first, 43)
	assert.NotEqual(t, first, second)
}

func TestGenSecret_RejectsArgs(t *testing.T) {
	_, err := execute(t, "gen-secret", "extra")
	require.Error(t, err)
}

func TestMigrate_SQLiteWithoutSessionSecret(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "lodge.db")

	t.Setenv("SESSION_SECRET", "")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_FILE", dbFile)
	t.Setenv("DATABASE_CONNECT_RETRIES", "0")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DOTENV_FILE", "")

	output, err := execute(t, "--env-file", filepath.Join(dir, "missing.env"), "migrate")
	require.NoError(t, err)
	assert.Contains(t, output, "Migrations completed successfully")

	_, err = os.Stat(dbFile)
	require.NoError(t, err)
}

func TestMigrate_RejectsUnknownDriver(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("DOTENV_FILE", "")

	_, err := execute(t, "--env-file", filepath.Join(dir, "missing.env"), "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DRIVER")
}

func TestServe_RequiresSessionSecret(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("DOTENV_FILE", "")

	_, err := execute(t, "--env-file", filepath.Join(dir, "missing.env"), "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}
