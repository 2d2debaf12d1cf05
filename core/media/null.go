package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"nuvyx/core/player"
	"nuvyx/logger"
)

var (
	errNoSource      = errors.New("media: no source loaded")
	errForeignSource = errors.New("media: source opened by another output")
)

// NullOutput is a silent output. Position follows the wall clock while playing, the duration is
// never known and the source never completes.
type NullOutput struct {
	mu      sync.Mutex
	url     string
	playing bool
	started time.Time
	offset  time.Duration
	volume  float64
	now     func() time.Time
	subs    listeners[struct{}]
	fails   listeners[error]
}

type nullSource struct{ url string }

func (nullSource) Release() {}

func NewNullOutput() *NullOutput {
	return &NullOutput{now: time.Now}
}

// Open only remembers url; nothing is fetched.
func (n *NullOutput) Open(_ context.Context, url string) (player.MediaSource, error) {
	return nullSource{url: url}, nil
}

func (n *NullOutput) Attach(src player.MediaSource) error {
	ns, ok := src.(nullSource)
	if !ok {
		return errForeignSource
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	url := ns.url
	n.url = url
	n.playing = false
	n.offset = 0
	logger.Debug("null output attached source", logger.String("url", url))
	return nil
}

func (n *NullOutput) Play() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.url == "" {
		return errNoSource
	}
	if !n.playing {
		n.playing = true
		n.started = n.now()
	}
	return nil
}

func (n *NullOutput) Pause() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.playing {
		n.offset += n.now().Sub(n.started)
		n.playing = false
	}
}

func (n *NullOutput) Seek(seconds float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.url == "" {
		return errNoSource
	}
	n.offset = time.Duration(seconds * float64(time.Second))
	if n.playing {
		n.started = n.now()
	}
	return nil
}

func (n *NullOutput) Position() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	pos := n.offset
	if n.playing {
		pos += n.now().Sub(n.started)
	}
	return pos.Seconds()
}

func (n *NullOutput) Duration() float64 { return 0 }

func (n *NullOutput) SetVolume(v float64) {
	n.mu.Lock()
	n.volume = v
	n.mu.Unlock()
}

func (n *NullOutput) OnCompleted(fn func()) func() {
	return n.subs.add(func(struct{}) { fn() })
}

// OnFailed registers fn; a silent source never fails.
func (n *NullOutput) OnFailed(fn func(error)) func() {
	return n.fails.add(fn)
}

func (n *NullOutput) Close() error {
	n.Pause()
	return nil
}
