package backup

import "context"

// SourceItem describes one backup candidate as reported by the item
// directory.
type SourceItem struct {
	// ID is the item's stable identifier, used as a storage key component.
	ID string `json:"id"`

	// VersionToken is a stable opaque string that changes whenever the
	// item's content changes. It is treated as black-box data and compared
	// by exact string inequality only.
	VersionToken string `json:"versionToken"`

	Private  bool `json:"private,omitempty"`
	Fork     bool `json:"fork,omitempty"`
	Archived bool `json:"archived,omitempty"`
}

// Source enumerates backup candidates. Implementations talk to the upstream
// system (e.g. a hosting provider's API) and are external to the engine.
type Source interface {
	ListItems(ctx context.Context) ([]SourceItem, error)
}

// Artifact is one named backup artifact produced for an item, staged as a
// local file.
type Artifact struct {
	// Name is the artifact's filename within the snapshot.
	Name string

	// Path is the local path of the staged artifact.
	Path string

	// Size is the artifact size in bytes.
	Size int64
}

// ArtifactProducer materializes the backup artifacts of a single item into
// the given scratch directory. Returning no artifacts is valid and means the
// item has nothing to back up; it is not an error.
type ArtifactProducer interface {
	Produce(ctx context.Context, item SourceItem, scratchDir string) ([]Artifact, error)
}

// Notifier receives the structured result of a finished run. Implementations
// dispatch human-facing notifications and are external to the engine.
type Notifier interface {
	BackupFinished(ctx context.Context, result *Result)
}
