package player

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"nuvyx/logger"

	"github.com/samber/lo"
)

// Library caches the ids of the tracks the user has saved. Local state changes only after
// the catalog call succeeds; a failed call leaves it untouched.
type Library struct {
	mu  sync.RWMutex
	ids map[string]struct{}

	svc      LibraryService
	auth     TokenSource
	login    func()
	onChange func()
}

// NewLibrary builds an empty cache. login is invoked when a mutation is attempted without
// authentication; onChange after every local change. Both may be nil.
func NewLibrary(svc LibraryService, auth TokenSource, login func(), onChange func()) *Library {
	return &Library{
		ids:      make(map[string]struct{}),
		svc:      svc,
		auth:     auth,
		login:    login,
		onChange: onChange,
	}
}

// Refresh clears the cache when logged out, otherwise replaces it with the catalog's list.
func (l *Library) Refresh(ctx context.Context) error {
	if l.auth == nil || !l.auth.Authenticated() {
		l.replace(nil)
		return nil
	}

	token, err := l.auth.Token(ctx)
	if err != nil {
		logger.Warn("Failed to get token, skipping library refresh", logger.ErrorField(err))
		return fmt.Errorf("library refresh: %w", err)
	}
	ids, err := l.svc.ListLibrary(ctx, token)
	if err != nil {
		logger.Warn("Failed to fetch library", logger.ErrorField(err))
		return fmt.Errorf("library refresh: %w", err)
	}
	l.replace(ids)
	return nil
}

// Add saves trackID. Adding an id that is already present is a success.
func (l *Library) Add(ctx context.Context, trackID string) error {
	token, err := l.token(ctx)
	if err != nil {
		return err
	}
	if err := l.svc.AddToLibrary(ctx, token, trackID); err != nil {
		logger.Warn("Failed to add to library",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		return fmt.Errorf("add to library: %w", err)
	}

	l.mu.Lock()
	l.ids[trackID] = struct{}{}
	l.mu.Unlock()
	l.changed()
	return nil
}

// Remove is the mirror of Add.
func (l *Library) Remove(ctx context.Context, trackID string) error {
	token, err := l.token(ctx)
	if err != nil {
		return err
	}
	if err := l.svc.RemoveFromLibrary(ctx, token, trackID); err != nil {
		logger.Warn("Failed to remove from library",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		return fmt.Errorf("remove from library: %w", err)
	}

	l.mu.Lock()
	delete(l.ids, trackID)
	l.mu.Unlock()
	l.changed()
	return nil
}

func (l *Library) IsMember(trackID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[trackID]
	return ok
}

// IDs returns the member ids in sorted order.
func (l *Library) IDs() []string {
	l.mu.RLock()
	ids := lo.Keys(l.ids)
	l.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (l *Library) token(ctx context.Context) (string, error) {
	if l.auth == nil || !l.auth.Authenticated() {
		if l.login != nil {
			l.login()
		}
		return "", ErrAuthRequired
	}
	token, err := l.auth.Token(ctx)
	if err != nil {
		logger.Warn("Failed to get token", logger.ErrorField(err))
		return "", fmt.Errorf("acquire token: %w", err)
	}
	return token, nil
}

func (l *Library) replace(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	l.mu.Lock()
	l.ids = next
	l.mu.Unlock()
	l.changed()
}

func (l *Library) changed() {
	if l.onChange != nil {
		l.onChange()
	}
}
