// Package store implements the namespaced backup object store.
//
// All backup artifacts live under a single namespace (typically the owner of
// the backed-up repositories) using the key layout
//
//	{namespace}/{itemID}/{snapshotID}/{filename}
//
// The layout is a public contract relied upon by external listing/restore
// tooling: the key hierarchy itself is the index, no secondary index object
// is maintained. The per-namespace state mirror lives at
// {namespace}/state.json, next to the item prefixes.
package store

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/repo/blob"
	"github.com/gitvault/gitvault/repo/logging"
)

var log = logging.Module("store")

// StateObjectName is the well-known name of the state mirror object within a namespace.
const StateObjectName = "state.json"

// Store provides item/snapshot-addressed access to backup artifacts on top of
// a blob storage backend.
type Store struct {
	st        blob.Storage
	namespace string
}

// New returns a Store for the given namespace.
func New(st blob.Storage, namespace string) (*Store, error) {
	if namespace == "" {
		return nil, errors.New("namespace must be specified")
	}

	if strings.Contains(namespace, "/") {
		return nil, errors.Errorf("invalid namespace %q", namespace)
	}

	return &Store{st: st, namespace: namespace}, nil
}

// Namespace returns the namespace all keys of this store live under.
func (s *Store) Namespace() string {
	return s.namespace
}

// ObjectID returns the blob ID for the given artifact.
func (s *Store) ObjectID(itemID, snapshotID, filename string) blob.ID {
	return blob.ID(s.namespace + "/" + itemID + "/" + snapshotID + "/" + filename)
}

// Put uploads a single artifact for the given item and snapshot.
func (s *Store) Put(ctx context.Context, itemID, snapshotID, filename string, data blob.Bytes) error {
	if err := validateComponent(itemID); err != nil {
		return errors.Wrap(err, "invalid item ID")
	}

	if err := validateComponent(snapshotID); err != nil {
		return errors.Wrap(err, "invalid snapshot ID")
	}

	if filename == "" {
		return errors.New("filename must not be empty")
	}

	id := s.ObjectID(itemID, snapshotID, filename)

	log(ctx).Debugf("uploading %v (%v bytes)", id, data.Length())

	return errors.Wrapf(s.st.PutBlob(ctx, id, data), "error uploading %v", id)
}

// PutFile uploads a local file as an artifact and returns its size.
func (s *Store) PutFile(ctx context.Context, itemID, snapshotID, filename, localPath string) (int64, error) {
	data, err := blob.FileBytes(localPath)
	if err != nil {
		return 0, err
	}

	if err := s.Put(ctx, itemID, snapshotID, filename, data); err != nil {
		return 0, err
	}

	return data.Length(), nil
}

// ListItems returns the IDs of all items that have at least one stored object.
func (s *Store) ListItems(ctx context.Context) ([]string, error) {
	items, err := s.st.ListPrefixes(ctx, blob.ID(s.namespace+"/"))
	if err != nil {
		return nil, errors.Wrap(err, "error listing items")
	}

	return items, nil
}

// ListSnapshotIDs returns the union of snapshot IDs across all items, sorted
// newest first. Snapshot IDs sort chronologically, so reverse lexicographic
// order is reverse chronological order.
func (s *Store) ListSnapshotIDs(ctx context.Context) ([]string, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}

	for _, item := range items {
		ids, err := s.ItemSnapshotIDs(ctx, item)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(result)))

	return result, nil
}

// ItemSnapshotIDs returns the snapshot IDs stored for a single item, sorted
// newest first.
func (s *Store) ItemSnapshotIDs(ctx context.Context, itemID string) ([]string, error) {
	ids, err := s.st.ListPrefixes(ctx, blob.ID(s.namespace+"/"+itemID+"/"))
	if err != nil {
		return nil, errors.Wrapf(err, "error listing snapshots of %v", itemID)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	return ids, nil
}

// DeleteSnapshot removes the given snapshot across all items and returns the
// number of objects removed.
func (s *Store) DeleteSnapshot(ctx context.Context, snapshotID string) (int, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return 0, err
	}

	var deleted int

	for _, item := range items {
		n, err := s.st.DeletePrefix(ctx, blob.ID(s.namespace+"/"+item+"/"+snapshotID+"/"))
		if err != nil {
			return deleted, errors.Wrapf(err, "error deleting snapshot %v of %v", snapshotID, item)
		}

		deleted += n
	}

	log(ctx).Infof("deleted snapshot %v (%v objects)", snapshotID, deleted)

	return deleted, nil
}

// SnapshotFiles returns metadata of all objects belonging to the given snapshot.
func (s *Store) SnapshotFiles(ctx context.Context, snapshotID string) ([]blob.Metadata, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	var result []blob.Metadata

	for _, item := range items {
		bms, err := blob.ListAllBlobs(ctx, s.st, blob.ID(s.namespace+"/"+item+"/"+snapshotID+"/"))
		if err != nil {
			return nil, errors.Wrapf(err, "error listing snapshot %v of %v", snapshotID, item)
		}

		result = append(result, bms...)
	}

	return result, nil
}

// SnapshotSize returns the total size in bytes of all objects belonging to
// the given snapshot.
func (s *Store) SnapshotSize(ctx context.Context, snapshotID string) (int64, error) {
	bms, err := s.SnapshotFiles(ctx, snapshotID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, bm := range bms {
		total += bm.Length
	}

	return total, nil
}

// GetFile fetches the contents of a single stored artifact.
func (s *Store) GetFile(ctx context.Context, itemID, snapshotID, filename string) ([]byte, error) {
	return s.st.GetBlob(ctx, s.ObjectID(itemID, snapshotID, filename)) //nolint:wrapcheck
}

func (s *Store) stateObjectID() blob.ID {
	return blob.ID(s.namespace + "/" + StateObjectName)
}

// UploadState mirrors the state document to the storage backend.
func (s *Store) UploadState(ctx context.Context, data []byte) error {
	return errors.Wrap(s.st.PutBlob(ctx, s.stateObjectID(), blob.BytesOf(data)), "error uploading state")
}

// DownloadState fetches the mirrored state document. Returns
// blob.ErrBlobNotFound when no state object exists.
func (s *Store) DownloadState(ctx context.Context) ([]byte, error) {
	return s.st.GetBlob(ctx, s.stateObjectID()) //nolint:wrapcheck
}

// StateExists reports whether the storage backend holds a mirrored state
// document at all. Its absence is meaningful: the state manager interprets it
// as evidence the remote store was reset.
func (s *Store) StateExists(ctx context.Context) (bool, error) {
	_, err := s.st.GetMetadata(ctx, s.stateObjectID())

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, blob.ErrBlobNotFound):
		return false, nil
	default:
		return false, errors.Wrap(err, "error checking for mirrored state")
	}
}

func validateComponent(v string) error {
	if v == "" {
		return errors.New("must not be empty")
	}

	if strings.Contains(v, "/") {
		return errors.Errorf("%q must not contain '/'", v)
	}

	return nil
}
