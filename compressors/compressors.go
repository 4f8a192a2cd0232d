package compressors

import (
	"fmt"

	"github.com/INLOpen/prevaldb/core"
)

// ForType returns a Compressor for the given CompressionType, as recorded in
// a file header.
func ForType(ct core.CompressionType) (core.Compressor, error) {
	switch ct {
	case core.CompressionNone:
		return &NoCompressionCompressor{}, nil
	case core.CompressionSnappy:
		return NewSnappyCompressor(), nil
	case core.CompressionLZ4:
		return NewLz4Compressor(), nil
	case core.CompressionZSTD:
		return NewZstdCompressor()
	default:
		return nil, fmt.Errorf("unsupported compression type: %d", ct)
	}
}
