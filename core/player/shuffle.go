package player

import (
	"math/rand/v2"
	"slices"

	"github.com/samber/lo"
)

// Shuffler picks queue positions without repeating one until every position has been
// presented in the current cycle. When the cycle is exhausted it starts over, so the position
// played last may come up again straight away.
type Shuffler struct {
	enabled bool
	played  map[int]struct{}
	intn    func(n int) int
}

func NewShuffler() *Shuffler {
	return &Shuffler{
		played: make(map[int]struct{}),
		intn:   rand.IntN,
	}
}

func (s *Shuffler) Enabled() bool {
	return s.enabled
}

// Enable turns shuffle on with a fresh cycle. current (if >= 0) counts as already presented.
func (s *Shuffler) Enable(current int) {
	s.enabled = true
	s.played = make(map[int]struct{})
	if current >= 0 {
		s.played[current] = struct{}{}
	}
}

// Disable turns shuffle off. The exclusion set is kept but ignored until the next Enable.
func (s *Shuffler) Disable() {
	s.enabled = false
}

// PickNext chooses the next position in [0, n). n must be positive; -1 is returned otherwise.
func (s *Shuffler) PickNext(n int) int {
	if n <= 0 {
		return -1
	}

	unplayed := lo.Filter(lo.Range(n), func(i int, _ int) bool {
		_, seen := s.played[i]
		return !seen
	})

	var pick int
	if len(unplayed) == 0 {
		s.played = make(map[int]struct{})
		pick = s.intn(n)
	} else {
		pick = unplayed[s.intn(len(unplayed))]
	}
	s.played[pick] = struct{}{}
	return pick
}

// Played lists the positions presented in the current cycle, ascending.
func (s *Shuffler) Played() []int {
	out := lo.Keys(s.played)
	slices.Sort(out)
	return out
}
