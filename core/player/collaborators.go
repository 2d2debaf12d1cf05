package player

import (
	"context"

	"github.com/samber/mo"
)

// MediaSource is a fetched and decoded source that has not been attached yet.
type MediaSource interface {
	// Release frees a source that will never be attached.
	Release()
}

// MediaOutput is the audio decode/render handle the session drives. Only the session touches it.
// Completion and failure listeners may be invoked from any goroutine but never while a
// MediaOutput method is executing on the caller's stack.
type MediaOutput interface {
	// Open fetches and decodes url. It may block on the network and leaves the attached source
	// untouched.
	Open(ctx context.Context, url string) (MediaSource, error)
	// Attach replaces whatever was attached with src, paused. It does not block.
	Attach(src MediaSource) error
	Play() error
	Pause()
	Seek(seconds float64) error
	// Position and Duration are in seconds; Duration is 0 until the source reports it.
	Position() float64
	Duration() float64
	SetVolume(v float64)
	// OnCompleted registers fn for the natural end of the attached source and returns a func
	// that removes it again.
	OnCompleted(fn func()) (unsubscribe func())
	// OnFailed registers fn for errors that end the attached source early.
	OnFailed(fn func(error)) (unsubscribe func())
	Close() error
}

// Resolver turns storage keys into short-lived playable URLs.
type Resolver interface {
	ResolveStreamURL(ctx context.Context, storageKey string, token mo.Option[string]) (string, error)
	ResolveDownloadURL(ctx context.Context, storageKey, filename, token string) (string, error)
}

// InteractionRecorder logs stream/download events against the catalog.
type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, ev Interaction) error
}

// LibraryService is the catalog side of the saved-tracks library.
type LibraryService interface {
	ListLibrary(ctx context.Context, token string) ([]string, error)
	AddToLibrary(ctx context.Context, token, trackID string) error
	RemoveFromLibrary(ctx context.Context, token, trackID string) error
}

// TokenSource supplies bearer tokens. Token may fail or time out.
type TokenSource interface {
	Authenticated() bool
	Token(ctx context.Context) (string, error)
}

// Downloader hands a resolved download URL to whatever stores the file.
type Downloader interface {
	Save(ctx context.Context, url, filename string) error
}
