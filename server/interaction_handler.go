package server

import (
	"errors"
	"net/http"

	"nuvyx/logger"
	"nuvyx/repository"
)

type interactionRequest struct {
	Type   string `json:"type"`
	SongID string `json:"songId"`
}

// RecordInteractionHandler 记录播放或下载
// POST /api/interactions {type, songId}
func (h *APIHandler) RecordInteractionHandler(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SongID == "" {
		writeError(w, http.StatusBadRequest, "Missing songId")
		return
	}

	ctx := r.Context()
	userID := userIDFromContext(ctx)

	if _, err := h.repos.Songs.GetByID(ctx, req.SongID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Song not found")
			return
		}
		logger.Error("[Interaction] 查询歌曲失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var err error
	switch req.Type {
	case "stream":
		err = h.repos.Interactions.RecordStream(ctx, userID, req.SongID)
	case "download":
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required for downloads")
			return
		}
		err = h.repos.Interactions.RecordDownload(ctx, userID, req.SongID)
	default:
		writeError(w, http.StatusBadRequest, "Invalid interaction type")
		return
	}
	if err != nil {
		logger.Error("[Interaction] 记录失败",
			logger.String("type", req.Type),
			logger.String("songId", req.SongID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to record interaction")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HistoryHandler 返回最近播放的歌曲
// GET /api/interactions
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	history, err := h.repos.Interactions.History(r.Context(), userIDFromContext(r.Context()), repository.HistoryLimit)
	if err != nil {
		logger.Error("[Interaction] 查询历史失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	if history == nil {
		history = []repository.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}
