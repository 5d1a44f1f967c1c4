package storage

import (
	"bytes"
	"compress/gzip"
	"compress/lzw"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz/lzma"
)

// Compression selects how a record payload is compressed.
type Compression uint8

// Compression schemes. The value is written into every record header, so
// existing values must not be renumbered.
const (
	CompressNone Compression = iota
	CompressLZW
	CompressGZIP
	CompressZstd
	CompressLZMA
)

// MaxDecompressedSize bounds the size of a decompressed record.
const MaxDecompressedSize = 64 << 20

// String returns the scheme name.
func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressLZW:
		return "lzw"
	case CompressGZIP:
		return "gzip"
	case CompressZstd:
		return "zstd"
	case CompressLZMA:
		return "lzma"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// Compress compresses data using the specified scheme.
func Compress(data []byte, scheme Compression) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressLZW:
		return compressLZW(data)
	case CompressGZIP:
		return compressGZIP(data)
	case CompressZstd:
		return compressZstd(data)
	case CompressLZMA:
		return compressLZMA(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, scheme)
	}
}

// Decompress decompresses data using the specified scheme.
func Decompress(data []byte, scheme Compression) ([]byte, error) {
	switch scheme {
	case CompressNone:
		return data, nil
	case CompressLZW:
		return decompressLZW(data)
	case CompressGZIP:
		return decompressGZIP(data)
	case CompressZstd:
		return decompressZstd(data)
	case CompressLZMA:
		return decompressLZMA(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, scheme)
	}
}

// readLimited reads r to the end, failing once MaxDecompressedSize is passed.
func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, MaxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxDecompressedSize {
		return nil, ErrDecompressedTooLarge
	}
	return out, nil
}

func compressLZW(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.LSB, 8)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZW(data []byte) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(data), lzw.LSB, 8)
	defer r.Close()
	return readLimited(r)
}

func compressGZIP(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressGZIP(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readLimited(r)
}

func compressZstd(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return readLimited(decoder)
}

func compressLZMA(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZMA(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return readLimited(r)
}
