package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerTagsMessagesWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	SetLevel("DEBUG")

	rpcLog := New("rpc")
	fetchLog := New("fetch")
	rpcLog.Debug("sent call xid=%d", 7)
	fetchLog.Warn("failing from state %s", "LOOKUP")

	out := buf.String()
	assert.Contains(t, out, "rpc: sent call xid=7")
	assert.Contains(t, out, "fetch: failing from state LOOKUP")
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	SetLevel("WARN")

	l := New("test")
	l.Debug("should not appear")
	l.Warn("should appear")

	out := buf.String()
	assert.False(t, strings.Contains(out, "should not appear"))
	assert.True(t, strings.Contains(out, "should appear"))
}

func TestSetLevelIgnoresUnrecognizedValue(t *testing.T) {
	SetLevel("WARN")
	SetLevel("NOT_A_LEVEL")

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	l := New("test")
	l.Debug("still filtered")
	assert.Empty(t, buf.String())

	SetLevel("INFO")
}
