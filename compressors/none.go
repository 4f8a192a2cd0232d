package compressors

import (
	"bytes"
	"io"

	"github.com/INLOpen/prevaldb/core"
)

// NoCompressionCompressor implements the Compressor interface without performing compression.
type NoCompressionCompressor struct{}

type plainTextDecoder struct {
	*bytes.Reader
}

func (p *plainTextDecoder) Close() error {
	return nil
}

var _ core.Compressor = (*NoCompressionCompressor)(nil)

func (c *NoCompressionCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (c *NoCompressionCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	return &plainTextDecoder{Reader: bytes.NewReader(data)}, nil
}

func (c *NoCompressionCompressor) Type() core.CompressionType {
	return core.CompressionNone
}

// CompressTo "compresses" src data into the dst buffer by simply writing it.
func (c *NoCompressionCompressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	dst.Reset()
	_, err := dst.Write(src)
	return err
}
