package player

import (
	"slices"

	"github.com/samber/lo"
)

// Queue is the ordered play list plus the current-position pointer.
// Position is -1 when nothing is selected. Bounds are enforced by Session, not here.
type Queue struct {
	tracks   []Track
	position int
}

// NewQueue returns an empty queue with no selection.
func NewQueue() *Queue {
	return &Queue{position: -1}
}

// Replace swaps the whole backing slice. The position pointer is left alone.
func (q *Queue) Replace(tracks []Track) {
	q.tracks = slices.Clone(tracks)
}

// Append adds one track to the end.
func (q *Queue) Append(t Track) {
	q.tracks = append(q.tracks, t)
}

// FindPosition returns the first index holding trackID, or -1.
func (q *Queue) FindPosition(trackID string) int {
	_, idx, ok := lo.FindIndexOf(q.tracks, func(t Track) bool {
		return t.ID == trackID
	})
	if !ok {
		return -1
	}
	return idx
}

func (q *Queue) SetPosition(index int) {
	q.position = index
}

func (q *Queue) Position() int {
	return q.position
}

func (q *Queue) Len() int {
	return len(q.tracks)
}

// At returns the track at index and whether index was in range.
func (q *Queue) At(index int) (Track, bool) {
	if index < 0 || index >= len(q.tracks) {
		return Track{}, false
	}
	return q.tracks[index], true
}

// Tracks returns a copy of the queue contents.
func (q *Queue) Tracks() []Track {
	return slices.Clone(q.tracks)
}
