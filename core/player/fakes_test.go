package player

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/mo"
)

var errBoom = errors.New("boom")

type fakeMedia struct {
	mu        sync.Mutex
	loaded    []string
	playing   bool
	position  float64
	duration  float64
	volume    float64
	loadErr   error
	attachErr error
	playErr   error
	gates     map[string]chan struct{}
	opened    chan string
	sources   []*fakeSource
	callbacks map[int]func()
	failures  map[int]func(error)
	nextCB    int
	closed    bool
}

type fakeSource struct {
	url      string
	mu       sync.Mutex
	released bool
}

func (f *fakeSource) Release() {
	f.mu.Lock()
	f.released = true
	f.mu.Unlock()
}

func (f *fakeSource) isReleased() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		callbacks: make(map[int]func()),
		failures:  make(map[int]func(error)),
		gates:     make(map[string]chan struct{}),
		opened:    make(chan string, 16),
		duration:  180,
	}
}

// hold makes Open of url block until the returned func is called.
func (m *fakeMedia) hold(url string) func() {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gates[url] = gate
	m.mu.Unlock()
	return func() { close(gate) }
}

func (m *fakeMedia) Open(ctx context.Context, url string) (MediaSource, error) {
	m.mu.Lock()
	gate := m.gates[url]
	err := m.loadErr
	m.mu.Unlock()

	select {
	case m.opened <- url:
	default:
	}
	if gate != nil {
		// a cancelled load still waits for the gate so tests can decide when Open returns
		<-gate
	}
	if err != nil {
		return nil, err
	}
	src := &fakeSource{url: url}
	m.mu.Lock()
	m.sources = append(m.sources, src)
	m.mu.Unlock()
	return src, nil
}

func (m *fakeMedia) Attach(src MediaSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return m.attachErr
	}
	m.loaded = append(m.loaded, src.(*fakeSource).url)
	m.position = 0
	return nil
}

func (m *fakeMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.playing = true
	return nil
}

func (m *fakeMedia) Pause() {
	m.mu.Lock()
	m.playing = false
	m.mu.Unlock()
}

func (m *fakeMedia) Seek(seconds float64) error {
	m.mu.Lock()
	m.position = seconds
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *fakeMedia) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *fakeMedia) SetVolume(v float64) {
	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()
}

func (m *fakeMedia) OnCompleted(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextCB
	m.nextCB++
	m.callbacks[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.callbacks, id)
		m.mu.Unlock()
	}
}

func (m *fakeMedia) OnFailed(fn func(error)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextCB
	m.nextCB++
	m.failures[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.failures, id)
		m.mu.Unlock()
	}
}

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Complete simulates the natural end of the attached source.
func (m *fakeMedia) Complete() {
	m.mu.Lock()
	m.playing = false
	cbs := make([]func(), 0, len(m.callbacks))
	for _, cb := range m.callbacks {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// Fail simulates a decode or network error that ends the attached source early.
func (m *fakeMedia) Fail(err error) {
	m.mu.Lock()
	m.playing = false
	fns := make([]func(error), 0, len(m.failures))
	for _, fn := range m.failures {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (m *fakeMedia) setPosition(p float64) {
	m.mu.Lock()
	m.position = p
	m.mu.Unlock()
}

func (m *fakeMedia) loads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loaded...)
}

func (m *fakeMedia) isPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *fakeMedia) listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callbacks) + len(m.failures)
}

func (m *fakeMedia) openedSources() []*fakeSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*fakeSource(nil), m.sources...)
}

type fakeResolver struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	entered chan string
	errs    map[string]error
	tokens  []mo.Option[string]
	calls   int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 16),
		errs:    make(map[string]error),
	}
}

// hold makes resolutions of key block until the returned func is called.
func (r *fakeResolver) hold(key string) func() {
	gate := make(chan struct{})
	r.mu.Lock()
	r.gates[key] = gate
	r.mu.Unlock()
	return func() { close(gate) }
}

func (r *fakeResolver) ResolveStreamURL(ctx context.Context, key string, token mo.Option[string]) (string, error) {
	r.mu.Lock()
	r.calls++
	r.tokens = append(r.tokens, token)
	gate := r.gates[key]
	err := r.errs[key]
	r.mu.Unlock()

	select {
	case r.entered <- key:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return "https://cdn.test/" + key, nil
}

func (r *fakeResolver) ResolveDownloadURL(_ context.Context, key, filename, _ string) (string, error) {
	r.mu.Lock()
	err := r.errs[key]
	r.mu.Unlock()
	if err != nil {
		return "", err
	}
	return "https://cdn.test/" + key + "?download=" + filename, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []Interaction
	err    error
}

func (r *fakeRecorder) RecordInteraction(_ context.Context, ev Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *fakeRecorder) recorded() []Interaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Interaction(nil), r.events...)
}

type fakeLibrarySvc struct {
	mu      sync.Mutex
	ids     []string
	listErr error
	addErr  error
	rmErr   error
	added   []string
}

func (f *fakeLibrarySvc) ListLibrary(context.Context, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.ids...), nil
}

func (f *fakeLibrarySvc) AddToLibrary(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, id)
	return nil
}

func (f *fakeLibrarySvc) RemoveFromLibrary(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rmErr
}

func (f *fakeLibrarySvc) addCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added...)
}

type fakeAuth struct {
	mu     sync.Mutex
	authed bool
	token  string
	err    error
}

func (a *fakeAuth) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authed
}

func (a *fakeAuth) Token(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	return a.token, nil
}

type fakeDownloader struct {
	mu    sync.Mutex
	saved map[string]string
	err   error
}

func (d *fakeDownloader) Save(_ context.Context, url, filename string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if d.saved == nil {
		d.saved = make(map[string]string)
	}
	d.saved[filename] = url
	return nil
}

func track(id string) Track {
	return Track{ID: id, Title: "Title " + id, Artist: "Artist", StorageKey: "songs/" + id + ".mp3"}
}

func tracks(ids ...string) []Track {
	out := make([]Track, 0, len(ids))
	for _, id := range ids {
		out = append(out, track(id))
	}
	return out
}
