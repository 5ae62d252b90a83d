// Package manifest implements a Source and ArtifactProducer backed by a local
// JSON manifest file. It lets the backup engine run end-to-end against
// pre-staged artifacts, without talking to an upstream hosting provider.
package manifest

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/backup"
)

// FileSpec names one artifact file of an item.
type FileSpec struct {
	// Name is the artifact filename within the snapshot. Defaults to the
	// base name of Path.
	Name string `json:"name,omitempty"`

	// Path is the local path of the artifact.
	Path string `json:"path"`
}

// ItemSpec describes one item in the manifest.
type ItemSpec struct {
	ID string `json:"id"`

	// VersionToken is the opaque change-detection token. When empty, it is
	// derived from the newest modification time of the item's files, so
	// touching a file makes the item eligible for backup again.
	VersionToken string `json:"versionToken,omitempty"`

	Files []FileSpec `json:"files"`

	Private  bool `json:"private,omitempty"`
	Fork     bool `json:"fork,omitempty"`
	Archived bool `json:"archived,omitempty"`
}

// Manifest is the on-disk document format.
type Manifest struct {
	Items []ItemSpec `json:"items"`
}

// Source lists and produces items from a manifest file. It implements both
// backup.Source and backup.ArtifactProducer.
type Source struct {
	path string
}

// NewSource returns a Source reading from the given manifest file.
func NewSource(path string) *Source {
	return &Source{path: path}
}

func (s *Source) load() (*Manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading manifest")
	}

	var m Manifest

	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "error parsing manifest")
	}

	return &m, nil
}

// ListItems implements backup.Source.
func (s *Source) ListItems(ctx context.Context) ([]backup.SourceItem, error) {
	m, err := s.load()
	if err != nil {
		return nil, err
	}

	result := make([]backup.SourceItem, 0, len(m.Items))

	for _, it := range m.Items {
		if it.ID == "" {
			return nil, errors.New("manifest item without id")
		}

		token := it.VersionToken
		if token == "" {
			token, err = derivedToken(it.Files)
			if err != nil {
				return nil, errors.Wrapf(err, "item %v", it.ID)
			}
		}

		result = append(result, backup.SourceItem{
			ID:           it.ID,
			VersionToken: token,
			Private:      it.Private,
			Fork:         it.Fork,
			Archived:     it.Archived,
		})
	}

	return result, nil
}

// Produce implements backup.ArtifactProducer. Artifacts are already staged on
// local disk, so production is just validation.
func (s *Source) Produce(ctx context.Context, item backup.SourceItem, scratchDir string) ([]backup.Artifact, error) {
	m, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, it := range m.Items {
		if it.ID != item.ID {
			continue
		}

		result := make([]backup.Artifact, 0, len(it.Files))

		for _, f := range it.Files {
			fi, err := os.Stat(f.Path)
			if err != nil {
				return nil, errors.Wrapf(err, "artifact of %v", item.ID)
			}

			name := f.Name
			if name == "" {
				name = fi.Name()
			}

			result = append(result, backup.Artifact{
				Name: name,
				Path: f.Path,
				Size: fi.Size(),
			})
		}

		return result, nil
	}

	return nil, errors.Errorf("item %v not present in manifest", item.ID)
}

func derivedToken(files []FileSpec) (string, error) {
	var newest time.Time

	for _, f := range files {
		fi, err := os.Stat(f.Path)
		if err != nil {
			return "", errors.Wrap(err, "error examining artifact")
		}

		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
	}

	return newest.UTC().Format(time.RFC3339Nano), nil
}
