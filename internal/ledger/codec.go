package ledger

import (
	"bytes"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Codec names the compression applied to a snapshot payload.
type Codec string

const (
	CodecZlib Codec = "zlib"
	CodecGzip Codec = "gzip"
	CodecZstd Codec = "zstd"
)

// DefaultCodec is used when none is configured.
const DefaultCodec = CodecZlib

type codec interface {
	compress(uncompressed []byte) ([]byte, error)
	decompress(compressed []byte) ([]byte, error)
}

var codecs = map[Codec]codec{
	CodecZlib: zlibCodec{},
	CodecGzip: gzipCodec{},
	CodecZstd: zstdCodec{},
}

// ParseCodec validates a codec name.
func ParseCodec(s string) (Codec, error) {
	c := Codec(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return DefaultCodec, nil
	}
	if _, ok := codecs[c]; !ok {
		return "", errors.WithHint(errors.Newf("unknown codec %q", s), "use zlib, gzip or zstd")
	}
	return c, nil
}

// Compress encodes b with codec c.
func Compress(c Codec, b []byte) ([]byte, error) {
	impl, ok := codecs[c]
	if !ok {
		return nil, errors.Newf("unknown codec %q", c)
	}
	return impl.compress(b)
}

// Decompress decodes b, which was encoded with codec c.
func Decompress(c Codec, b []byte) ([]byte, error) {
	impl, ok := codecs[c]
	if !ok {
		return nil, errors.Newf("unknown codec %q", c)
	}
	return impl.decompress(b)
}

type zlibCodec struct{}
type gzipCodec struct{}
type zstdCodec struct{}

func (zlibCodec) compress(uncompressed []byte) ([]byte, error) {
	return compressUsing(uncompressed, func(buf io.Writer) (io.WriteCloser, error) {
		return zlib.NewWriterLevel(buf, zlib.BestCompression)
	})
}

func (zlibCodec) decompress(compressed []byte) ([]byte, error) {
	return decompressUsing(compressed, func(buf io.Reader) (io.ReadCloser, error) {
		return zlib.NewReader(buf)
	})
}

func (gzipCodec) compress(uncompressed []byte) ([]byte, error) {
	return compressUsing(uncompressed, func(buf io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriterLevel(buf, gzip.BestCompression)
	})
}

func (gzipCodec) decompress(compressed []byte) ([]byte, error) {
	return decompressUsing(compressed, func(buf io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(buf)
	})
}

func (zstdCodec) compress(uncompressed []byte) ([]byte, error) {
	return compressUsing(uncompressed, func(buf io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(buf)
	})
}

type readCloserNoError interface {
	io.Reader
	Close()
}

type noErrorCloser struct {
	readCloserNoError
}

func (c noErrorCloser) Close() error {
	c.readCloserNoError.Close()
	return nil
}

func (zstdCodec) decompress(compressed []byte) ([]byte, error) {
	return decompressUsing(compressed, func(buf io.Reader) (io.ReadCloser, error) {
		r, err := zstd.NewReader(buf)
		if err != nil {
			return nil, err
		}
		return noErrorCloser{readCloserNoError: r}, nil
	})
}

func compressUsing(uncompressed []byte, getImpl func(buf io.Writer) (io.WriteCloser, error)) ([]byte, error) {
	var buf bytes.Buffer
	w, err := getImpl(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compress")
	}
	if _, err := w.Write(uncompressed); err != nil {
		return nil, errors.Wrap(err, "failed to compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to compress")
	}
	return buf.Bytes(), nil
}

func decompressUsing(compressed []byte, getImpl func(buf io.Reader) (io.ReadCloser, error)) (_ []byte, err error) {
	r, err := getImpl(bytes.NewReader(compressed))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress")
	}
	defer func() {
		err = errors.CombineErrors(err, r.Close())
	}()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress")
	}
	return out, nil
}
