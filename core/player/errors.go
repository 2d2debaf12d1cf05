package player

import "errors"

var (
	ErrPlaybackFailed = errors.New("playback failed")
	ErrSuperseded     = errors.New("superseded by a newer play request")
	ErrAuthRequired   = errors.New("authentication required")
	ErrInvalidIndex   = errors.New("invalid queue index")
	ErrClosed         = errors.New("session closed")
	ErrNoDownloader   = errors.New("no downloader configured")
)
