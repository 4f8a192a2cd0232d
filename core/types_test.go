package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationKind_String(t *testing.T) {
	assert.Equal(t, "command", OpCommand.String())
	assert.Equal(t, "query", OpQuery.String())
	assert.Equal(t, "not-allowed", OpNotAllowed.String())
}

func TestCompressionType_String(t *testing.T) {
	assert.Equal(t, "none", CompressionNone.String())
	assert.Equal(t, "snappy", CompressionSnappy.String())
	assert.Equal(t, "lz4", CompressionLZ4.String())
	assert.Equal(t, "zstd", CompressionZSTD.String())
}

func TestCloneError(t *testing.T) {
	cause := errors.New("gob: type not registered")
	err := &CloneError{Op: "Deposit", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Deposit")
	assert.True(t, IsCloneError(err))
	assert.True(t, IsCloneError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsCloneError(cause))
}
