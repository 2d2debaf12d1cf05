//go:build cgo

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"nuvyx/core/player"
	"nuvyx/logger"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

// AudioAvailable reports whether this build can produce sound.
const AudioAvailable = true

const outputRate = beep.SampleRate(44100)

var speakerOnce struct {
	sync.Once
	err error
}

// NewOutput returns a BeepOutput playing through the default sound device.
func NewOutput() (player.MediaOutput, error) {
	speakerOnce.Do(func() {
		speakerOnce.err = speaker.Init(outputRate, outputRate.N(time.Second/10))
	})
	if speakerOnce.err != nil {
		return nil, fmt.Errorf("init speaker: %w", speakerOnce.err)
	}
	return NewBeepOutput(http.DefaultClient), nil
}

// BeepOutput fetches an MP3 over HTTP, decodes it in memory and plays it on the speaker.
type BeepOutput struct {
	mu sync.Mutex

	client   *http.Client
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64
	gen      uint64
	subs     listeners[struct{}]
	fails    listeners[error]
}

// beepSource is a decoded MP3 waiting to be attached.
type beepSource struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
}

func (s *beepSource) Release() {
	if err := s.streamer.Close(); err != nil {
		logger.Warn("close decoder failed", logger.ErrorField(err))
	}
}

func NewBeepOutput(client *http.Client) *BeepOutput {
	return &BeepOutput{client: client, level: 1}
}

// Open downloads and decodes url. The speaker keeps playing whatever is attached meanwhile.
func (b *BeepOutput) Open(ctx context.Context, url string) (player.MediaSource, error) {
	data, err := b.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	streamer, format, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	return &beepSource{streamer: streamer, format: format}, nil
}

// Attach replaces the current source. The new source starts paused.
func (b *BeepOutput) Attach(src player.MediaSource) error {
	bs, ok := src.(*beepSource)
	if !ok {
		return errors.New("media: source opened by another output")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()
	b.gen++
	gen := b.gen
	streamer := bs.streamer

	b.streamer = streamer
	b.format = bs.format
	b.ctrl = &beep.Ctrl{Streamer: beep.Resample(4, bs.format.SampleRate, outputRate, streamer), Paused: true}
	b.volume = &effects.Volume{Streamer: b.ctrl, Base: 2}
	b.applyVolumeLocked()

	speaker.Play(beep.Seq(b.volume, beep.Callback(func() {
		// the speaker lock is held here; a decode error also ends the sequence early
		go b.finished(gen, streamer.Err())
	})))
	return nil
}

func (b *BeepOutput) Play() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctrl == nil {
		return errors.New("media: no source loaded")
	}
	speaker.Lock()
	b.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (b *BeepOutput) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctrl != nil {
		speaker.Lock()
		b.ctrl.Paused = true
		speaker.Unlock()
	}
}

func (b *BeepOutput) Seek(seconds float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streamer == nil {
		return nil
	}

	speaker.Lock()
	defer speaker.Unlock()

	n := b.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	n = max(0, min(n, b.streamer.Len()-1))
	return b.streamer.Seek(n)
}

func (b *BeepOutput) Position() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := b.streamer.Position()
	speaker.Unlock()
	return b.format.SampleRate.D(pos).Seconds()
}

func (b *BeepOutput) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streamer == nil {
		return 0
	}
	return b.format.SampleRate.D(b.streamer.Len()).Seconds()
}

// SetVolume takes a linear level in [0, 1].
func (b *BeepOutput) SetVolume(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = v
	b.applyVolumeLocked()
}

func (b *BeepOutput) OnCompleted(fn func()) func() {
	return b.subs.add(func(struct{}) { fn() })
}

func (b *BeepOutput) OnFailed(fn func(error)) func() {
	return b.fails.add(fn)
}

func (b *BeepOutput) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	return nil
}

// finished drops callbacks of replaced sources. A source that ended on an error is reported
// as failed, never as completed.
func (b *BeepOutput) finished(gen uint64, err error) {
	b.mu.Lock()
	current := gen == b.gen && b.streamer != nil
	b.mu.Unlock()
	if !current {
		return
	}
	if err != nil {
		logger.Warn("audio stream ended on error", logger.ErrorField(err))
		b.fails.fire(err)
		return
	}
	b.subs.fire(struct{}{})
}

func (b *BeepOutput) applyVolumeLocked() {
	if b.volume == nil {
		return
	}
	speaker.Lock()
	if b.level <= 0 {
		b.volume.Silent = true
	} else {
		b.volume.Silent = false
		b.volume.Volume = math.Log2(b.level)
	}
	speaker.Unlock()
}

func (b *BeepOutput) stopLocked() {
	if b.ctrl != nil {
		speaker.Clear()
	}
	if b.streamer != nil {
		if err := b.streamer.Close(); err != nil {
			logger.Warn("close decoder failed", logger.ErrorField(err))
		}
	}
	b.gen++
	b.streamer = nil
	b.ctrl = nil
	b.volume = nil
}

func (b *BeepOutput) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	return data, nil
}

// nopCloser wraps a bytes.Reader to implement io.ReadCloser.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
