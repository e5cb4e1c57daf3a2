package repositories

import (
	"context"
	"io"
	"time"

	"github.com/satriahrh/talking-avatar/domain/entities"
)

// Namespace isolates the artifacts of one request from every other request.
// The zero value addresses the shared canned artifacts.
type Namespace string

// Artifact extensions
const (
	ExtMP3  = "mp3"
	ExtWAV  = "wav"
	ExtJSON = "json"
)

// ArtifactStore is the transient holding area for audio and timing files
type ArtifactStore interface {
	// Allocate reserves a fresh, collision-free namespace
	Allocate() (Namespace, error)
	// Path derives the location of an artifact without touching the disk
	Path(ns Namespace, name, ext string) string
	Save(path string, r io.Reader) error
	ReadAudio(path string) (string, error)
	ReadLipSync(path string) (entities.LipSync, error)
	Remove(path string) error
	// Release deletes every artifact of the namespace
	Release(ns Namespace) error
}

// ArtifactSweeper removes namespaces abandoned by requests that never released them
type ArtifactSweeper interface {
	// Sweep deletes namespaces last modified before cutoff and reports how many went
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}
