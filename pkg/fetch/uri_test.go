package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfsfetch/nfsfetch/pkg/errs"
)

func TestParseURI(t *testing.T) {
	p, err := parseURI("nfs://10.0.0.1/srv/export/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", p.Host)
	assert.Equal(t, defaultPortmapPort, p.PortmapPort)
	assert.Equal(t, "/srv/export/", p.ExportPath)
	assert.Equal(t, "hello.txt", p.FileName)
}

func TestParseURIExplicitPort(t *testing.T) {
	p, err := parseURI("nfs://10.0.0.1:2049/export/file.bin")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", p.Host)
	assert.Equal(t, 2049, p.PortmapPort)
	assert.Equal(t, "/export/", p.ExportPath)
	assert.Equal(t, "file.bin", p.FileName)
}

func TestParseURIRejectsWrongScheme(t *testing.T) {
	_, err := parseURI("nfsv4://10.0.0.1/export/file.bin")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidArg))
}

func TestParseURIRejectsMissingHost(t *testing.T) {
	_, err := parseURI("nfs:///export/file.bin")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidArg))
}

func TestParseURIRejectsMissingPath(t *testing.T) {
	_, err := parseURI("nfs://10.0.0.1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidArg))
}

func TestParseURIRejectsEmptyFileName(t *testing.T) {
	_, err := parseURI("nfs://10.0.0.1/export/")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidArg))
}

func TestParseURIRejectsInvalidPort(t *testing.T) {
	_, err := parseURI("nfs://10.0.0.1:notaport/export/file.bin")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidArg))
}
