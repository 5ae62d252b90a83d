// Package blobtesting implements storage with fake contents used for testing.
package blobtesting

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/internal/clock"
	"github.com/gitvault/gitvault/repo/blob"
)

// DataMap is a map of blob ID to their contents.
type DataMap map[blob.ID][]byte

type mapStorage struct {
	data    DataMap
	keyTime map[blob.ID]time.Time
	timeNow func() time.Time
	mutex   sync.RWMutex

	// PutCount is incremented on every successful PutBlob.
	putCount int
}

func (s *mapStorage) GetBlob(ctx context.Context, id blob.ID) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, ok := s.data[id]
	if !ok {
		return nil, blob.ErrBlobNotFound
	}

	return append([]byte(nil), data...), nil
}

func (s *mapStorage) GetMetadata(ctx context.Context, id blob.ID) (blob.Metadata, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, ok := s.data[id]
	if !ok {
		return blob.Metadata{}, blob.ErrBlobNotFound
	}

	return blob.Metadata{
		BlobID:    id,
		Length:    int64(len(data)),
		Timestamp: s.keyTime[id],
	}, nil
}

func (s *mapStorage) PutBlob(ctx context.Context, id blob.ID, data blob.Bytes) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, err := data.Reader()
	if err != nil {
		return errors.Wrap(err, "Reader")
	}
	defer r.Close() //nolint:errcheck

	v, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "ReadAll")
	}

	s.keyTime[id] = s.timeNow()
	s.data[id] = v
	s.putCount++

	return nil
}

func (s *mapStorage) DeleteBlob(ctx context.Context, id blob.ID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.data, id)
	delete(s.keyTime, id)

	return nil
}

func (s *mapStorage) DeletePrefix(ctx context.Context, prefix blob.ID) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var deleted int

	for id := range s.data {
		if strings.HasPrefix(string(id), string(prefix)) {
			delete(s.data, id)
			delete(s.keyTime, id)
			deleted++
		}
	}

	return deleted, nil
}

func (s *mapStorage) ListBlobs(ctx context.Context, prefix blob.ID, callback func(blob.Metadata) error) error {
	s.mutex.RLock()

	keys := []blob.ID{}

	for k := range s.data {
		if strings.HasPrefix(string(k), string(prefix)) {
			keys = append(keys, k)
		}
	}

	s.mutex.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		s.mutex.RLock()
		v, ok := s.data[k]
		ts := s.keyTime[k]
		s.mutex.RUnlock()

		if !ok {
			continue
		}

		if err := callback(blob.Metadata{
			BlobID:    k,
			Length:    int64(len(v)),
			Timestamp: ts,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (s *mapStorage) ListPrefixes(ctx context.Context, prefix blob.ID) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	seen := map[string]struct{}{}

	for k := range s.data {
		if !strings.HasPrefix(string(k), string(prefix)) {
			continue
		}

		rest := string(k[len(prefix):])

		i := strings.IndexByte(rest, '/')
		if i <= 0 {
			continue
		}

		seen[rest[:i]] = struct{}{}
	}

	result := make([]string, 0, len(seen))
	for p := range seen {
		result = append(result, p)
	}

	sort.Strings(result)

	return result, nil
}

func (s *mapStorage) PutCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.putCount
}

func (s *mapStorage) Close(ctx context.Context) error {
	return nil
}

func (s *mapStorage) ConnectionInfo() blob.ConnectionInfo {
	// unsupported
	return blob.ConnectionInfo{}
}

func (s *mapStorage) DisplayName() string {
	return "Map"
}

// MapStorage is an in-memory blob.Storage for tests that also counts writes.
type MapStorage interface {
	blob.Storage

	// PutCount returns the number of PutBlob calls performed so far.
	PutCount() int
}

// NewMapStorage returns an implementation of Storage backed by the contents of given map.
// Used primarily for testing.
func NewMapStorage(data DataMap, keyTime map[blob.ID]time.Time, timeNow func() time.Time) MapStorage {
	if keyTime == nil {
		keyTime = make(map[blob.ID]time.Time)
	}

	if timeNow == nil {
		timeNow = clock.Now
	}

	return &mapStorage{data: data, keyTime: keyTime, timeNow: timeNow}
}
