// Package inttest runs the hglib client against a real hg binary,
// unlike the root package's tests, which exercise the Session/command
// logic purely against transport.TestTransport. These tests are
// skipped when hg isn't available on PATH.
package inttest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hglib.dev/hglib"
	"hglib.dev/hglib/commands"
)

func requireHg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("hg"); err != nil {
		t.Skip("hg not found on PATH")
	}
}

func newRepo(t *testing.T) string {
	t.Helper()
	requireHg(t)
	dir := filepath.Join(t.TempDir(), "repo")
	require.NoError(t, commands.Init(dir, commands.InitOptions{}))
	return dir
}

func TestOpen_nonexistentRepository(t *testing.T) {
	requireHg(t)
	_, err := hglib.Open(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.ErrorIs(t, err, hglib.ErrInvalidRepository)
}

func TestOpen_freshRepoHandshakes(t *testing.T) {
	dir := newRepo(t)

	s, err := hglib.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	assert.NotEmpty(t, s.Encoding())
	assert.Greater(t, s.Capabilities().Len(), 0)
}

func TestRoot_matchesRepoPath(t *testing.T) {
	dir := newRepo(t)

	s, err := hglib.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	root, err := s.Root()
	require.NoError(t, err)

	evaluated, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, evaluated, root)
}

func TestConfiguration_matchesGetCommandOutputParsing(t *testing.T) {
	dir := newRepo(t)

	s, err := hglib.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	res, err := s.GetCommandOutput([]string{"showconfig"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), res.ExitCode)

	want := make(map[string]string)
	for _, line := range strings.Split(res.Stdout, "\n") {
		if k, v, ok := strings.Cut(strings.TrimRight(line, "\r"), "="); ok {
			want[k] = v
		}
	}

	cfg, err := s.Configuration()
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, want, cfg)
}

func TestCommit_withNothingStagedExitsOneWithoutError(t *testing.T) {
	dir := newRepo(t)

	s, err := hglib.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	res, err := commands.Commit(s, "empty", commands.CommitOptions{})
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Equal(t, int32(1), res.ExitCode)
}

func TestAddCommitLog_roundTrip(t *testing.T) {
	dir := newRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello world\n"), 0o644))

	s, err := hglib.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = commands.Add(s)
	require.NoError(t, err)

	commit, err := commands.Commit(s, "initial commit", commands.CommitOptions{User: "tester"})
	require.NoError(t, err)
	assert.True(t, commit.Committed)

	entries, err := commands.Log(s, commands.LogOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "initial commit", entries[0].Message)
}
