package media

import "sync"

// listeners is the subscriber set shared by the outputs. Completion listeners use struct{}.
type listeners[T any] struct {
	mu   sync.Mutex
	fns  map[int]func(T)
	next int
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

// fire runs each listener on its own goroutine so none of them runs on the audio callback stack.
func (l *listeners[T]) fire(v T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		go fn(v)
	}
}

func (l *listeners[T]) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
