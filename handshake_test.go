package hglib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHello_extractsEncodingAndCapabilities(t *testing.T) {
	h, err := parseHello([]byte("capabilities: runcommand getencoding attachio\nencoding: UTF-8\n"))
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", h.encoding)
	assert.True(t, h.capabilities.Has(CapRunCommand))
	assert.True(t, h.capabilities.Has("attachio"))
}

func TestParseHello_fieldOrderDoesNotMatter(t *testing.T) {
	h, err := parseHello([]byte("encoding: ascii\ncapabilities: runcommand\n"))
	require.NoError(t, err)
	assert.Equal(t, "ascii", h.encoding)
}

func TestParseHello_missingEncoding(t *testing.T) {
	_, err := parseHello([]byte("capabilities: runcommand\n"))
	require.Error(t, err)
}

func TestParseHello_missingCapabilities(t *testing.T) {
	_, err := parseHello([]byte("encoding: UTF-8\n"))
	require.Error(t, err)
}

func TestParseHello_ignoresLinesWithoutDelimiter(t *testing.T) {
	h, err := parseHello([]byte("garbage line with no colon space\nencoding: UTF-8\ncapabilities: runcommand\n"))
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", h.encoding)
}
