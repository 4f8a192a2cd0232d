package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/INLOpen/prevaldb/core"
	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor implements the Compressor interface using zstd.
// The underlying encoder and decoder are safe for concurrent use through
// EncodeAll/DecodeAll.
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

type zstdReadCloser struct {
	*bytes.Reader
}

func (zrc *zstdReadCloser) Close() error {
	return nil
}

var _ core.Compressor = (*ZstdCompressor)(nil)

func NewZstdCompressor() (*ZstdCompressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(100*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompressor{enc: enc, dec: dec}, nil
}

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

func (c *ZstdCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	decompressed, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress error: %w", err)
	}
	return &zstdReadCloser{Reader: bytes.NewReader(decompressed)}, nil
}

func (c *ZstdCompressor) Type() core.CompressionType {
	return core.CompressionZSTD
}

// CompressTo compresses src into the dst buffer.
func (c *ZstdCompressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	dst.Reset()
	dst.Write(c.enc.EncodeAll(src, nil))
	return nil
}
