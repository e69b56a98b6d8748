package hglib

import (
	"fmt"
	"regexp"
	"strings"
)

// versionPattern matches the parenthesized version clause in an `hg
// version` banner, e.g. "Mercurial Distributed SCM (version 6.7.2)" or
// "(version 6.7+20-abcdef)". The non-digit run before major.minor lets
// it skip past the literal word "version" without hardcoding it.
var versionPattern = regexp.MustCompile(`\([^0-9)]*(\d+)\.(\d+)(?:\.(\d+))?([^)]*)\)`)

// parseVersion extracts a normalized "major.minor.trivial[extra]"
// string from an `hg version` banner. It returns an error rather than
// guessing when the banner doesn't match the expected shape, since a
// badly parsed version is worse than a loud failure.
func parseVersion(banner string) (string, error) {
	m := versionPattern.FindStringSubmatch(banner)
	if m == nil {
		return "", fmt.Errorf("could not parse version from banner %q", strings.TrimSpace(banner))
	}

	major, minor, trivial, extra := m[1], m[2], m[3], m[4]
	if trivial == "" {
		trivial = "0"
	}
	return fmt.Sprintf("%s.%s.%s%s", major, minor, trivial, extra), nil
}
