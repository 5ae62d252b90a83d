// Package blob implements simple storage of arbitrary BLOBs.
package blob

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// ErrBlobNotFound is returned when a BLOB cannot be found in storage.
var ErrBlobNotFound = errors.New("BLOB not found")

// ID is a string that represents a blob identifier (the full object key within a bucket).
type ID string

// Metadata represents metadata about a single BLOB in a storage.
type Metadata struct {
	BlobID    ID        `json:"id"`
	Length    int64     `json:"length"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *Metadata) String() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// Storage encapsulates API for connecting to blob storage.
//
// The underlying storage system must provide:
//
// * high durability and availability
// * read-after-write - a blob written using PutBlob() must be immediately readable using GetBlob() and ListBlobs()
// * atomicity - it mustn't be possible to observe partial results of PutBlob() via either GetBlob() or ListBlobs()
//
// The required semantics are provided by S3-compatible object stores.
type Storage interface {
	// PutBlob uploads the blob with given data to the storage or replaces an existing blob
	// with the provided id.
	PutBlob(ctx context.Context, blobID ID, data Bytes) error

	// GetBlob returns full contents of a blob with given ID.
	// Returns ErrBlobNotFound when the blob does not exist.
	GetBlob(ctx context.Context, blobID ID) ([]byte, error)

	// GetMetadata returns Metadata about a single blob.
	// Returns ErrBlobNotFound when the blob does not exist.
	GetMetadata(ctx context.Context, blobID ID) (Metadata, error)

	// ListBlobs invokes the provided callback for each blob whose ID has the given prefix.
	// Iteration stops when the callback returns an error or after all matching blobs
	// have been reported.
	ListBlobs(ctx context.Context, prefix ID, cb func(bm Metadata) error) error

	// ListPrefixes returns the first-level common prefixes directly under the given
	// prefix, without the trailing separator. The key hierarchy itself is the only
	// index the storage maintains.
	ListPrefixes(ctx context.Context, prefix ID) ([]string, error)

	// DeleteBlob removes a single blob from storage. Deleting a non-existent blob
	// is not an error.
	DeleteBlob(ctx context.Context, blobID ID) error

	// DeletePrefix removes all blobs whose IDs have the given prefix, issuing batched
	// delete requests. It returns the number of objects removed.
	DeletePrefix(ctx context.Context, prefix ID) (int, error)

	// ConnectionInfo returns JSON-serializable data structure containing information required to
	// connect to storage.
	ConnectionInfo() ConnectionInfo

	// Close releases all resources associated with storage.
	Close(ctx context.Context) error

	// DisplayName returns the name of the storage used for quick identification by humans.
	DisplayName() string
}

// ConnectionInfo represents JSON-serializable storage connection information.
type ConnectionInfo struct {
	Type   string      `json:"type"`
	Config interface{} `json:"config"`
}

// ListAllBlobs returns Metadata for all blobs in a given storage that have the provided ID prefix.
func ListAllBlobs(ctx context.Context, st Storage, prefix ID) ([]Metadata, error) {
	var result []Metadata

	err := st.ListBlobs(ctx, prefix, func(bm Metadata) error {
		result = append(result, bm)
		return nil
	})

	return result, err
}
