package container

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	kgzip "github.com/klauspost/compress/gzip"

	"github.com/openscape/cachefs/pkg/storeerr"
)

// bzip2Magic is the 4-byte stream magic ("BZh1") the on-disk format omits;
// the decoder must prepend it and the encoder must strip it.
var bzip2Magic = []byte("BZh1")

// bzip2BlockSize is the 100KiB block-size unit the synthesized header fixes
// at 1. See SPEC_FULL.md's open question on this.
const bzip2BlockSize = 1

func bzip2Decompress(compressed []byte) ([]byte, error) {
	r, err := bzip2.NewReader(io.MultiReader(bytes.NewReader(bzip2Magic), bytes.NewReader(compressed)), nil)
	if err != nil {
		return nil, storeerr.CompressionFailure("bzip2.Decompress", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, storeerr.CompressionFailure("bzip2.Decompress", err)
	}
	return out, nil
}

func bzip2Compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2BlockSize})
	if err != nil {
		return nil, storeerr.CompressionFailure("bzip2.Compress", err)
	}
	if _, err := w.Write(payload); err != nil {
		return nil, storeerr.CompressionFailure("bzip2.Compress", err)
	}
	if err := w.Close(); err != nil {
		return nil, storeerr.CompressionFailure("bzip2.Compress", err)
	}

	framed := buf.Bytes()
	if len(framed) < len(bzip2Magic) || !bytes.Equal(framed[:len(bzip2Magic)], bzip2Magic) {
		return nil, storeerr.CompressionFailure("bzip2.Compress", fmt.Errorf("unexpected stream header"))
	}
	return framed[len(bzip2Magic):], nil
}

func gzipDecompress(compressed []byte) ([]byte, error) {
	r, err := kgzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, storeerr.CompressionFailure("gzip.Decompress", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, storeerr.CompressionFailure("gzip.Decompress", err)
	}
	return out, nil
}

func gzipCompress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := kgzip.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, storeerr.CompressionFailure("gzip.Compress", err)
	}
	if err := w.Close(); err != nil {
		return nil, storeerr.CompressionFailure("gzip.Compress", err)
	}
	return buf.Bytes(), nil
}
