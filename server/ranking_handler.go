package server

import (
	"net/http"
	"time"

	"nuvyx/logger"
	"nuvyx/repository"
)

// TrendingHandler 最近 7 天播放次数排行
// GET /api/ranking/trending
func (h *APIHandler) TrendingHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.repos.Interactions.TopStreamed(r.Context(), h.now().Add(-repository.TrendingWindow), repository.TrendingLimit)
	h.writeRanking(w, "trending", songs, err)
}

// TopMintsHandler 最近 24 小时下载次数排行
// GET /api/ranking/top-mints
func (h *APIHandler) TopMintsHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.repos.Interactions.TopDownloaded(r.Context(), h.now().Add(-repository.TopMintsWindow), repository.TopMintsLimit)
	h.writeRanking(w, "topMints", songs, err)
}

func (h *APIHandler) writeRanking(w http.ResponseWriter, name string, songs []repository.RankedSong, err error) {
	if err != nil {
		logger.Error("[Ranking] 查询失败", logger.String("ranking", name), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if songs == nil {
		songs = []repository.RankedSong{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		name:          songs,
		"generatedAt": h.now().UTC().Format(time.RFC3339),
	})
}
