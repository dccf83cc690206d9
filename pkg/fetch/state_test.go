package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "INIT", StateInit.String())
	assert.Equal(t, "MNT", StateMnt.String())
	assert.Equal(t, "UMNT", StateUmnt.String())
	assert.Equal(t, "DONE", StateDone.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "UNKNOWN", State(999).String())
}
