package core

import (
	"bytes"
	"io"
)

// OperationKind classifies a call against the domain model.
type OperationKind int

const (
	// OpCommand mutates the model and is journaled before it is applied.
	OpCommand OperationKind = iota
	// OpQuery reads the model without mutation and is never journaled.
	OpQuery
	// OpNotAllowed marks an operation as permanently rejected at
	// classification time. It is never executed.
	OpNotAllowed
)

// String returns the string representation of the OperationKind.
func (k OperationKind) String() string {
	switch k {
	case OpCommand:
		return "command"
	case OpQuery:
		return "query"
	case OpNotAllowed:
		return "not-allowed"
	default:
		return "unknown"
	}
}

// Record is a single accepted command as it is persisted in the journal.
// Payload holds the formatter-encoded command arguments.
type Record struct {
	SeqNum    uint64
	CommandID string
	Name      string
	Payload   []byte
}

// CompressionType identifies the compression algorithm used.
// It is stored in the file header so readers know how to decompress.
type CompressionType byte

const (
	CompressionNone   CompressionType = 0
	CompressionSnappy CompressionType = 1
	CompressionLZ4    CompressionType = 2
	CompressionZSTD   CompressionType = 3
)

// Compressor defines the interface for compression and decompression algorithms.
type Compressor interface {
	// Compress compresses the input data.
	Compress(data []byte) ([]byte, error)
	CompressTo(dst *bytes.Buffer, src []byte) error
	// Decompress decompresses the input data.
	Decompress(data []byte) (io.ReadCloser, error)
	// Type returns the CompressionType identifier for this compressor.
	Type() CompressionType
}

// String returns the string representation of the CompressionType.
func (ct CompressionType) String() string {
	switch ct {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

// Cloner is the explicit clone capability for values crossing the
// command/result boundary. Values that do not implement it are cloned by a
// formatter round-trip instead.
type Cloner interface {
	CloneValue() (any, error)
}
