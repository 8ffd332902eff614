// Package compression compresses article and draft content at rest.
package compression

import "fmt"

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// ForName returns the compressor configured by name: "zstd", "gzip" or
// "none".
func ForName(name string) (Compressor, error) {
	switch name {
	case "", "zstd":
		return ZstdCompressor{}, nil
	case "gzip":
		return GzipCompressor{}, nil
	case "none":
		return NoopCompressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}

type NoopCompressor struct{}

func (NoopCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoopCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
