package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"nuvyx/logger"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// restartThreshold is how far into a track Previous restarts it instead of moving back.
const restartThreshold = 3.0

// DefaultVolume is applied when Options.Volume is absent.
const DefaultVolume = 0.75

// State is the transport state of a Session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "loading":
		*s = StateLoading
	case "playing":
		*s = StatePlaying
	case "paused":
		*s = StatePaused
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// Options wires a Session to its collaborators. Media and Resolver are required.
type Options struct {
	Media      MediaOutput
	Resolver   Resolver
	Recorder   InteractionRecorder
	Library    LibraryService
	Auth       TokenSource
	Downloader Downloader
	// Login is called when an operation needs authentication that is not there.
	Login  func()
	Volume mo.Option[float64]
}

// Snapshot is everything a presentation layer renders.
type Snapshot struct {
	State        State    `json:"state"`
	CurrentTrack *Track   `json:"currentTrack"`
	IsPlaying    bool     `json:"isPlaying"`
	Position     float64  `json:"position"`
	Duration     float64  `json:"duration"`
	Queue        []Track  `json:"queue"`
	QueueIndex   int      `json:"queueIndex"`
	Shuffle      bool     `json:"shuffle"`
	Volume       float64  `json:"volume"`
	Library      []string `json:"library"`
}

// loadTicket identifies one play request. Only the ticket matching Session.loadSeq may apply
// its result.
type loadTicket struct {
	seq   uint64
	track Track
}

// Session is one user's playback engine: queue, shuffle cycle, transport state and the
// media handle. All state lives behind mu; async continuations re-read it after they resume.
type Session struct {
	mu sync.Mutex

	media      MediaOutput
	resolver   Resolver
	recorder   InteractionRecorder
	auth       TokenSource
	downloader Downloader
	login      func()
	library    *Library

	queue    *Queue
	shuffle  *Shuffler
	current  *Track
	state    State
	position float64
	volume   float64
	loadSeq  uint64
	// cancelLoad aborts the in-flight resolve/open of the latest load
	cancelLoad context.CancelFunc

	subs    map[int]chan Snapshot
	nextSub int

	ctx         context.Context
	cancel      context.CancelFunc
	bg          sync.WaitGroup
	unsubscribe []func()
	closed      bool
}

// NewSession builds a session and subscribes to the media handle's completion and failure
// signals.
// Call Close to release it.
func NewSession(opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		media:      opts.Media,
		resolver:   opts.Resolver,
		recorder:   opts.Recorder,
		auth:       opts.Auth,
		downloader: opts.Downloader,
		login:      opts.Login,
		queue:      NewQueue(),
		shuffle:    NewShuffler(),
		state:      StateIdle,
		volume:     clampVolume(opts.Volume.OrElse(DefaultVolume)),
		subs:       make(map[int]chan Snapshot),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.library = NewLibrary(opts.Library, opts.Auth, opts.Login, s.notify)
	s.media.SetVolume(s.volume)
	s.unsubscribe = []func(){
		s.media.OnCompleted(s.handleCompleted),
		s.media.OnFailed(s.handleFailed),
	}
	return s
}

// Play starts track. If track is already current this is TogglePlay. A track already in the
// queue is played from its existing position; otherwise it is appended first.
func (s *Session) Play(ctx context.Context, track Track) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.current != nil && s.current.ID == track.ID {
		s.toggleLocked()
		s.mu.Unlock()
		return nil
	}

	idx := s.queue.FindPosition(track.ID)
	if idx < 0 {
		s.queue.Append(track)
		idx = s.queue.Len() - 1
	}
	ticket := s.beginLoadLocked(idx)
	s.mu.Unlock()

	return s.load(ctx, ticket)
}

// PlayAt plays the queue entry at index.
func (s *Session) PlayAt(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if index < 0 || index >= s.queue.Len() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	ticket := s.beginLoadLocked(index)
	s.mu.Unlock()

	return s.load(ctx, ticket)
}

// TogglePlay pauses or resumes the current track. No-op without one or while loading.
func (s *Session) TogglePlay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggleLocked()
}

// Next moves forward: a fresh shuffle pick, or the following index wrapping to 0.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	n := s.queue.Len()
	if n == 0 {
		s.mu.Unlock()
		return nil
	}

	var idx int
	if s.shuffle.Enabled() {
		idx = s.shuffle.PickNext(n)
	} else {
		idx = s.queue.Position() + 1
		if idx >= n {
			idx = 0
		}
	}
	ticket := s.beginLoadLocked(idx)
	s.mu.Unlock()

	return s.load(ctx, ticket)
}

// Previous restarts the current track once it is past restartThreshold seconds, otherwise
// moves back one index, wrapping to the last.
func (s *Session) Previous(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	n := s.queue.Len()
	if n == 0 {
		s.mu.Unlock()
		return nil
	}

	if s.current != nil && s.media.Position() > restartThreshold {
		if err := s.media.Seek(0); err != nil {
			logger.Warn("restart track failed", logger.ErrorField(err))
		}
		s.position = 0
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}

	idx := s.queue.Position() - 1
	if idx < 0 || idx >= n {
		idx = n - 1
	}
	ticket := s.beginLoadLocked(idx)
	s.mu.Unlock()

	return s.load(ctx, ticket)
}

// Seek moves the media handle to seconds. Callers clamp to [0, duration].
func (s *Session) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.media.Seek(seconds); err != nil {
		logger.Warn("seek failed", logger.Float64("seconds", seconds), logger.ErrorField(err))
		return
	}
	s.position = seconds
	s.publishLocked()
}

// SetVolume clamps v to [0, 1] and applies it.
func (s *Session) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = clampVolume(v)
	s.media.SetVolume(s.volume)
	s.publishLocked()
}

// ToggleShuffle flips shuffle. Turning it on starts a new cycle with the current position
// already counted.
func (s *Session) ToggleShuffle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuffle.Enabled() {
		s.shuffle.Disable()
	} else {
		s.shuffle.Enable(s.queue.Position())
	}
	s.publishLocked()
}

// ReplaceQueue swaps the queue contents without moving the position pointer; use SetPosition
// afterwards if the current track moved.
func (s *Session) ReplaceQueue(tracks []Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.Replace(tracks)
	s.publishLocked()
}

// SetPosition moves the position pointer without starting playback. -1 clears it.
func (s *Session) SetPosition(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < -1 || index >= s.queue.Len() {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	s.queue.SetPosition(index)
	s.publishLocked()
	return nil
}

// Enqueue appends track to the queue.
func (s *Session) Enqueue(track Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.Append(track)
	s.publishLocked()
}

// RefreshLibrary rebuilds the library cache for the current authentication state.
func (s *Session) RefreshLibrary(ctx context.Context) error {
	return s.library.Refresh(ctx)
}

func (s *Session) AddToLibrary(ctx context.Context, trackID string) error {
	return s.library.Add(ctx, trackID)
}

func (s *Session) RemoveFromLibrary(ctx context.Context, trackID string) error {
	return s.library.Remove(ctx, trackID)
}

// InLibrary reports library membership for rendering.
func (s *Session) InLibrary(trackID string) bool {
	return s.library.IsMember(trackID)
}

// Download resolves a download URL for track, hands it to the Downloader, then records the
// download and saves the track to the library in the background.
func (s *Session) Download(ctx context.Context, track Track) error {
	if s.downloader == nil {
		return ErrNoDownloader
	}
	if s.auth == nil || !s.auth.Authenticated() {
		if s.login != nil {
			s.login()
		}
		return ErrAuthRequired
	}
	token, err := s.auth.Token(ctx)
	if err != nil {
		logger.Error("Download failed", logger.String("trackId", track.ID), logger.ErrorField(err))
		return fmt.Errorf("download: acquire token: %w", err)
	}

	filename := DownloadFilename(track)
	url, err := s.resolver.ResolveDownloadURL(ctx, track.StorageKey, filename, token)
	if err != nil {
		logger.Error("Download failed", logger.String("trackId", track.ID), logger.ErrorField(err))
		return fmt.Errorf("download: resolve url: %w", err)
	}
	if err := s.downloader.Save(ctx, url, filename); err != nil {
		logger.Error("Download failed", logger.String("trackId", track.ID), logger.ErrorField(err))
		return fmt.Errorf("download: save %q: %w", filename, err)
	}

	s.recordAsync(DownloadEvent{TrackID: track.ID, Token: token})
	s.goBackground(func(ctx context.Context) {
		_ = s.library.Add(ctx, track.ID)
	})
	return nil
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives a Snapshot after every state change, and a func
// to stop receiving. Slow receivers miss snapshots rather than block the session.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 16)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close detaches from the media handle, waits for background work and closes the handle.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.loadSeq++
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.cancel()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.bg.Wait()
	return s.media.Close()
}

// beginLoadLocked points the queue at index and marks its track current and loading.
func (s *Session) beginLoadLocked(index int) loadTicket {
	s.queue.SetPosition(index)
	track, _ := s.queue.At(index)
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.loadSeq++
	s.current = &track
	s.state = StateLoading
	s.position = 0
	s.publishLocked()
	return loadTicket{seq: s.loadSeq, track: track}
}

// load resolves and opens the ticket's track without holding the lock, then attaches it. The
// result is dropped if another play request started in the meantime.
func (s *Session) load(ctx context.Context, ticket loadTicket) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if ticket.seq != s.loadSeq {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.cancelLoad = cancel
	s.mu.Unlock()

	token := s.streamToken(ctx)
	url, err := s.resolver.ResolveStreamURL(ctx, ticket.track.StorageKey, token)
	var src MediaSource
	if err == nil && !s.stale(ticket) {
		src, err = s.media.Open(ctx, url)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.seq != s.loadSeq {
		if src != nil {
			src.Release()
		}
		logger.Debug("discarding stale load",
			logger.String("trackId", ticket.track.ID),
			logger.Uint64("seq", ticket.seq),
			logger.Uint64("latest", s.loadSeq))
		return ErrSuperseded
	}
	s.cancelLoad = nil
	if err != nil {
		s.failLocked(ticket.track, err)
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}
	if err := s.media.Attach(src); err != nil {
		src.Release()
		s.failLocked(ticket.track, err)
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}
	if err := s.media.Play(); err != nil {
		s.failLocked(ticket.track, err)
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}

	s.state = StatePlaying
	s.publishLocked()
	logger.Info("now playing",
		logger.String("trackId", ticket.track.ID),
		logger.String("title", ticket.track.Title),
		logger.Int("index", s.queue.Position()))

	if token.IsPresent() {
		s.recordAsync(StreamEvent{TrackID: ticket.track.ID, Token: token})
	}
	return nil
}

func (s *Session) stale(ticket loadTicket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ticket.seq != s.loadSeq
}

// streamToken returns a token when authenticated. Failing to get one degrades to anonymous
// streaming.
func (s *Session) streamToken(ctx context.Context) mo.Option[string] {
	if s.auth == nil || !s.auth.Authenticated() {
		return mo.None[string]()
	}
	token, err := s.auth.Token(ctx)
	if err != nil {
		logger.Warn("Failed to get token, streaming anonymously", logger.ErrorField(err))
		return mo.None[string]()
	}
	return mo.Some(token)
}

func (s *Session) failLocked(track Track, err error) {
	logger.Error("Playback failed",
		logger.String("trackId", track.ID),
		logger.String("storageKey", track.StorageKey),
		logger.ErrorField(err))
	s.current = nil
	s.state = StateIdle
	s.position = 0
	s.publishLocked()
}

func (s *Session) toggleLocked() {
	if s.current == nil {
		return
	}
	switch s.state {
	case StatePlaying:
		s.media.Pause()
		s.state = StatePaused
	case StatePaused:
		if err := s.media.Play(); err != nil {
			s.failLocked(*s.current, err)
			return
		}
		s.state = StatePlaying
	default:
		return
	}
	s.publishLocked()
}

// handleCompleted runs when the media handle reaches the natural end of a source. It advances
// sequentially, and stops at the last index instead of wrapping.
func (s *Session) handleCompleted() {
	s.mu.Lock()
	if s.closed || s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	s.state = StatePaused

	idx := s.queue.Position()
	if idx >= s.queue.Len()-1 {
		s.publishLocked()
		s.mu.Unlock()
		return
	}
	ticket := s.beginLoadLocked(idx + 1)
	ctx := s.ctx
	s.mu.Unlock()

	if err := s.load(ctx, ticket); err != nil && !errors.Is(err, ErrSuperseded) {
		logger.Warn("auto-advance failed", logger.ErrorField(err))
	}
}

// handleFailed runs when the media handle loses the attached source mid-playback. The session
// goes idle; it never advances.
func (s *Session) handleFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.current == nil {
		return
	}
	if s.state != StatePlaying && s.state != StatePaused {
		return
	}
	s.failLocked(*s.current, err)
}

// recordAsync sends ev without holding up playback; failures are only logged.
func (s *Session) recordAsync(ev Interaction) {
	if s.recorder == nil {
		return
	}
	s.goBackground(func(ctx context.Context) {
		if err := s.recorder.RecordInteraction(ctx, ev); err != nil {
			logger.Warn("Failed to record interaction",
				logger.String("type", string(ev.Kind())),
				logger.String("songId", ev.SongID()),
				logger.ErrorField(err))
		}
	})
}

func (s *Session) goBackground(fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn(s.ctx)
	}()
}

func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked()
}

func (s *Session) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      s.state,
		IsPlaying:  s.state == StatePlaying,
		Position:   s.position,
		Queue:      s.queue.Tracks(),
		QueueIndex: s.queue.Position(),
		Shuffle:    s.shuffle.Enabled(),
		Volume:     s.volume,
		Library:    s.library.IDs(),
	}
	if s.current != nil {
		track := *s.current
		snap.CurrentTrack = &track
		if s.state == StatePlaying || s.state == StatePaused {
			snap.Position = s.media.Position()
			snap.Duration = s.media.Duration()
		}
	}
	return snap
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return lo.Clamp(v, 0, 1)
}
