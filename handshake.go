package hglib

import (
	"fmt"
	"strings"
)

// hello is the parsed form of the command server's hello frame: a
// newline-separated list of "key: value" pairs read off channel 'o'
// immediately after the subprocess starts.
type hello struct {
	encoding     string
	capabilities CapabilitySet
}

// parseHello extracts the encoding and capabilities fields from the
// hello frame's payload. Absence of either is a fatal HandshakeFailed,
// per spec.md section 4.5. Mercurial versions old enough to predate the
// command server answer on a different channel with a usage banner
// rather than this payload; detecting that is the caller's job (it
// never gets this far because it reads the wrong channel), mirroring
// the "bad channel; is hg too old?" check in the reference hgclient.
func parseHello(payload []byte) (hello, error) {
	var h hello
	var sawEncoding, sawCaps bool

	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		tag, body, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch tag {
		case "encoding":
			h.encoding = body
			sawEncoding = true
		case "capabilities":
			h.capabilities = NewCapabilitySet(strings.Fields(body)...)
			sawCaps = true
		}
	}

	if !sawEncoding {
		return hello{}, fmt.Errorf("hello message missing %q field", "encoding")
	}
	if !sawCaps {
		return hello{}, fmt.Errorf("hello message missing %q field", "capabilities")
	}

	return h, nil
}
