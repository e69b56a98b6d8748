package commands

import (
	"strings"

	"hglib.dev/hglib"
)

// Add runs `hg add` on the given paths, or the whole working copy if
// paths is empty.
func Add(s *hglib.Session, paths ...string) (*hglib.CommandResult, error) {
	argv := append([]string{"add"}, paths...)
	return run(s, argv, false)
}

// CommitOptions configures Commit.
type CommitOptions struct {
	// User overrides the commit author.
	User string

	// AddRemove runs the equivalent of `hg addremove` before committing,
	// picking up new and missing files automatically.
	AddRemove bool

	// Paths restricts the commit to the given files; empty commits
	// everything staged.
	Paths []string
}

// CommitResult reports whether Commit actually created a new changeset.
// Exit code 1 ("nothing changed") is not an error: Committed is simply
// false.
type CommitResult struct {
	*hglib.CommandResult
	Committed bool
}

// Commit runs `hg commit -m message`. A working copy with nothing
// staged exits 1, which Commit reports as Committed=false rather than
// an error.
func Commit(s *hglib.Session, message string, opts CommitOptions) (*CommitResult, error) {
	argv := []string{"commit", "-m", message}
	argv = appendFlag(argv, "--user", opts.User)
	if opts.AddRemove {
		argv = append(argv, "--addremove")
	}
	argv = append(argv, opts.Paths...)

	res, err := run(s, argv, true)
	if err != nil {
		return nil, err
	}
	return &CommitResult{CommandResult: res, Committed: res.ExitCode == 0}, nil
}

// StatusCode is the single-letter code `hg status` prefixes each path
// with.
type StatusCode byte

const (
	StatusModified     StatusCode = 'M'
	StatusAdded        StatusCode = 'A'
	StatusRemoved      StatusCode = 'R'
	StatusClean        StatusCode = 'C'
	StatusMissing      StatusCode = '!'
	StatusUntracked    StatusCode = '?'
	StatusIgnored      StatusCode = 'I'
	StatusOriginOfCopy StatusCode = ' '
)

// StatusEntry is one line of `hg status` output.
type StatusEntry struct {
	Code StatusCode
	Path string
}

// StatusOptions configures Status.
type StatusOptions struct {
	// All includes clean and ignored files, which are omitted by default.
	All bool

	// Paths restricts the report to the given files; empty reports the
	// whole working copy.
	Paths []string
}

// Status runs `hg status` and parses its "X path" lines.
func Status(s *hglib.Session, opts StatusOptions) ([]StatusEntry, error) {
	argv := []string{"status"}
	if opts.All {
		argv = append(argv, "--all")
	}
	argv = append(argv, opts.Paths...)

	res, err := run(s, argv, false)
	if err != nil {
		return nil, err
	}

	var entries []StatusEntry
	for _, line := range strings.Split(res.Stdout, "\n") {
		if len(line) < 3 {
			continue
		}
		entries = append(entries, StatusEntry{
			Code: StatusCode(line[0]),
			Path: line[2:],
		})
	}
	return entries, nil
}

// DiffOptions configures Diff.
type DiffOptions struct {
	// Revisions, when non-empty, is passed as repeated --rev flags.
	Revisions []string

	// Paths restricts the diff to the given files; empty diffs the whole
	// working copy.
	Paths []string
}

// Diff runs `hg diff` and returns its unified-diff output verbatim.
func Diff(s *hglib.Session, opts DiffOptions) (string, error) {
	argv := []string{"diff"}
	for _, rev := range opts.Revisions {
		argv = append(argv, "--rev", rev)
	}
	argv = append(argv, opts.Paths...)

	res, err := run(s, argv, false)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}
