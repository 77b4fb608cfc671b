package sessions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strrl/claude-history/internal/orchestrator"
)

func TestEncodeProjectPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/home/dev/p1", "-home-dev-p1"},
		{"/home/dev/my.app", "-home-dev-my-app"},
		{"/home/dev/my_app", "-home-dev-my-app"},
		{`C:\Users\dev\proj`, "C--Users-dev-proj"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodeProjectPath(tt.path), tt.path)
	}
}

func TestDecodeProjectPath(t *testing.T) {
	assert.Equal(t, "/home/dev/p1", DecodeProjectPath("-home-dev-p1", false))
	assert.Equal(t, `C:\Users\dev`, DecodeProjectPath("C--Users-dev", true))
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "p1", ShortName("/home/dev/p1"))
	assert.Equal(t, "p1", ShortName("/home/dev/p1/"))
	assert.Equal(t, "proj", ShortName(`C:\Users\proj`))
	assert.Equal(t, "solo", ShortName("solo"))
}

func TestCheckID(t *testing.T) {
	for _, ok := range []string{"s1", "-home-dev-p1", "abc.def_1"} {
		assert.NoError(t, checkID("session", ok), ok)
	}
	for _, bad := range []string{"", ".", "..", "../x", "a/b", "*", "a'b"} {
		assert.ErrorIs(t, checkID("session", bad), orchestrator.ErrNotFound, bad)
	}
}

func TestSQLString(t *testing.T) {
	assert.Equal(t, `'/tmp/it''s/*.jsonl'`, sqlString("/tmp/it's/*.jsonl"))
}

func TestHasTranscripts(t *testing.T) {
	dir := t.TempDir()

	found, err := hasTranscripts(dir)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "x.jsonl"), []byte("{}\n"), 0o644))
	found, err = hasTranscripts(dir)
	require.NoError(t, err)
	assert.True(t, found)

	_, err = hasTranscripts(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, orchestrator.ErrNotFound)
}

func TestSessionIDFromFile(t *testing.T) {
	assert.Equal(t, "s1", sessionIDFromFile("/root/-p/s1.jsonl"))
}
