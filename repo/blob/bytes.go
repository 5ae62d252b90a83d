package blob

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Bytes is a re-readable payload for PutBlob. Reader() may be called multiple
// times, returning an independent reader each time, which makes storage-level
// retries and multipart restarts safe.
type Bytes interface {
	// Length returns the total payload size in bytes.
	Length() int64

	// Reader returns a fresh reader positioned at the start of the payload.
	Reader() (io.ReadCloser, error)
}

type memoryBytes struct {
	data []byte
}

func (b memoryBytes) Length() int64 {
	return int64(len(b.data))
}

func (b memoryBytes) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// BytesOf returns Bytes backed by the provided in-memory buffer.
func BytesOf(data []byte) Bytes {
	return memoryBytes{data}
}

type fileBytes struct {
	path   string
	length int64
}

func (b fileBytes) Length() int64 {
	return b.length
}

func (b fileBytes) Reader() (io.ReadCloser, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening payload file")
	}

	return f, nil
}

// FileBytes returns Bytes backed by a local file. The file size is captured
// at call time; the file must not change until the upload completes.
func FileBytes(path string) (Bytes, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "error examining payload file")
	}

	return fileBytes{path: path, length: fi.Size()}, nil
}
