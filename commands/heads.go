package commands

import (
	"strings"

	"hglib.dev/hglib"
)

// HeadsOptions configures Heads.
type HeadsOptions struct {
	// Revset, when non-empty, restricts the search to matching branches
	// or revisions, passed as --rev.
	Revset string
}

// Heads runs `hg heads` and returns the full node hash of each head.
// Exit code 1 ("no matching heads") is not an error: it simply yields an
// empty slice.
func Heads(s *hglib.Session, opts HeadsOptions) ([]string, error) {
	argv := []string{"heads", "--template", "{node}\n"}
	argv = appendFlag(argv, "--rev", opts.Revset)

	res, err := run(s, argv, true)
	if err != nil {
		return nil, err
	}
	if res.ExitCode == 1 {
		return nil, nil
	}

	var nodes []string
	for _, line := range strings.Split(strings.TrimRight(res.Stdout, "\n"), "\n") {
		if line != "" {
			nodes = append(nodes, line)
		}
	}
	return nodes, nil
}
