package player

// Track is a playable unit. ID and StorageKey identify the track and never change; the display
// fields may be refreshed from the catalog without touching playback state.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	MoodType   string `json:"moodType,omitempty"`
	CoverURL   string `json:"coverUrl,omitempty"`
	StorageKey string `json:"r2ObjectKey"`
}
