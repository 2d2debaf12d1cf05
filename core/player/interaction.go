package player

import "github.com/samber/mo"

// InteractionKind is the wire name of an interaction event.
type InteractionKind string

const (
	KindStream   InteractionKind = "stream"
	KindDownload InteractionKind = "download"
)

// Interaction is one of StreamEvent or DownloadEvent.
type Interaction interface {
	Kind() InteractionKind
	SongID() string
	AuthToken() mo.Option[string]
	interaction()
}

// StreamEvent may be anonymous.
type StreamEvent struct {
	TrackID string
	Token   mo.Option[string]
}

func (e StreamEvent) Kind() InteractionKind        { return KindStream }
func (e StreamEvent) SongID() string               { return e.TrackID }
func (e StreamEvent) AuthToken() mo.Option[string] { return e.Token }
func (StreamEvent) interaction()                   {}

// DownloadEvent always carries a token; callers gate on authentication first.
type DownloadEvent struct {
	TrackID string
	Token   string
}

func (e DownloadEvent) Kind() InteractionKind        { return KindDownload }
func (e DownloadEvent) SongID() string               { return e.TrackID }
func (e DownloadEvent) AuthToken() mo.Option[string] { return mo.Some(e.Token) }
func (DownloadEvent) interaction()                   {}
