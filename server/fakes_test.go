package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"nuvyx/model"
	"nuvyx/repository"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var errDB = errors.New("db down")

type memSongs struct {
	mu    sync.Mutex
	songs map[string]*model.Song
}

func (m *memSongs) GetByID(_ context.Context, id string) (*model.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (m *memSongs) Search(_ context.Context, query, mood string, limit int) ([]*model.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	out := lo.Filter(lo.Values(m.songs), func(s *model.Song, _ int) bool {
		if mood != "" && s.MoodType != mood {
			return false
		}
		return strings.Contains(strings.ToLower(s.Title), q) || strings.Contains(strings.ToLower(s.Artist), q)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSongs) Create(_ context.Context, s *model.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.NewString()
	m.songs[s.ID] = s
	return nil
}

func (m *memSongs) Update(_ context.Context, id string, patch repository.SongPatch) (*model.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Title != "" {
		s.Title = patch.Title
	}
	if patch.Artist != "" {
		s.Artist = patch.Artist
	}
	if patch.MoodType != "" {
		s.MoodType = patch.MoodType
	}
	if patch.Duration != "" {
		s.Duration = patch.Duration
	}
	if patch.Tags != nil {
		s.Tags = model.StringList(patch.Tags)
	}
	return s, nil
}

func (m *memSongs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.songs, id)
	return nil
}

func (m *memSongs) ReferencesObject(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.SomeBy(lo.Values(m.songs), func(s *model.Song) bool { return s.R2ObjectKey == key }), nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*model.User // by wallet
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByWallet(_ context.Context, wallet string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[wallet]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) UpsertWallet(_ context.Context, wallet string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[wallet]; ok {
		return u, nil
	}
	u := &model.User{ID: uuid.NewString(), WalletAddress: wallet}
	m.users[wallet] = u
	return u, nil
}

type pair struct{ user, song string }

type memLibrary struct {
	mu      sync.Mutex
	entries map[pair]bool
	err     error
}

func (m *memLibrary) List(_ context.Context, userID string) ([]*model.LibraryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.LibraryEntry
	for p := range m.entries {
		if p.user == userID {
			out = append(out, &model.LibraryEntry{UserID: p.user, SongID: p.song})
		}
	}
	return out, nil
}

func (m *memLibrary) Add(_ context.Context, userID, songID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries[pair{userID, songID}] = true
	return nil
}

func (m *memLibrary) Remove(_ context.Context, userID, songID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, pair{userID, songID})
	return nil
}

type memLikes struct {
	mu    sync.Mutex
	likes map[pair]bool
}

func (m *memLikes) IsLiked(_ context.Context, userID, songID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[pair{userID, songID}], nil
}

func (m *memLikes) List(_ context.Context, userID string) ([]*model.LikedSong, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LikedSong
	for p := range m.likes {
		if p.user == userID {
			out = append(out, &model.LikedSong{UserID: p.user, SongID: p.song})
		}
	}
	return out, nil
}

func (m *memLikes) Like(_ context.Context, userID, songID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.likes[pair{userID, songID}] = true
	return nil
}

func (m *memLikes) Unlike(_ context.Context, userID, songID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.likes, pair{userID, songID})
	return nil
}

type memInteractions struct {
	mu        sync.Mutex
	streams   []pair
	downloads map[pair]bool
	ranked    []repository.RankedSong
	rankErr   error
	// since records the window start of each ranking query
	since []time.Time
	limit []int
}

func (m *memInteractions) TopStreamed(_ context.Context, since time.Time, limit int) ([]repository.RankedSong, error) {
	return m.rank(since, limit)
}

func (m *memInteractions) TopDownloaded(_ context.Context, since time.Time, limit int) ([]repository.RankedSong, error) {
	return m.rank(since, limit)
}

func (m *memInteractions) rank(since time.Time, limit int) ([]repository.RankedSong, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = append(m.since, since)
	m.limit = append(m.limit, limit)
	if m.rankErr != nil {
		return nil, m.rankErr
	}
	return m.ranked, nil
}

func (m *memInteractions) RecordStream(_ context.Context, userID, songID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = append(m.streams, pair{userID, songID})
	return nil
}

func (m *memInteractions) RecordDownload(_ context.Context, userID, songID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[pair{userID, songID}] = true
	return nil
}

func (m *memInteractions) History(_ context.Context, userID string, limit int) ([]repository.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.HistoryEntry
	seen := map[string]bool{}
	for i := len(m.streams) - 1; i >= 0 && len(out) < limit; i-- {
		p := m.streams[i]
		if p.user != userID || seen[p.song] {
			continue
		}
		seen[p.song] = true
		out = append(out, repository.HistoryEntry{SongID: p.song, StreamedAt: time.Now()})
	}
	return out, nil
}

type fakeSigner struct {
	err error
}

func (s fakeSigner) PresignStream(_ context.Context, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://s3.test/" + key, nil
}

func (s fakeSigner) PresignDownload(_ context.Context, key, filename string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://s3.test/" + key + "?filename=" + filename, nil
}

type fakeObjects struct {
	mu      sync.Mutex
	removed []string
	err     error
}

func (f *fakeObjects) PresignUpload(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://s3.test/" + key + "?X-Amz-Signature=put", nil
}

func (f *fakeObjects) RemoveObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, key)
	return nil
}
