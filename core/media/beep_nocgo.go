//go:build !cgo

package media

import "nuvyx/core/player"

// AudioAvailable reports whether this build can produce sound. Audio needs cgo.
const AudioAvailable = false

// NewOutput returns a NullOutput in builds without cgo.
func NewOutput() (player.MediaOutput, error) {
	return NewNullOutput(), nil
}
