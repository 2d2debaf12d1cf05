package server

import (
	"net/http"

	"nuvyx/logger"
	"nuvyx/model"
)

type songRequest struct {
	SongID string `json:"songId"`
}

// GetLibraryHandler GET /api/library
func (h *APIHandler) GetLibraryHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repos.Library.List(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		logger.Error("[Library] 查询曲库失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load library")
		return
	}
	if entries == nil {
		entries = []*model.LibraryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"library": entries})
}

// AddToLibraryHandler POST /api/library {songId}
func (h *APIHandler) AddToLibraryHandler(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SongID == "" {
		writeError(w, http.StatusBadRequest, "Missing songId")
		return
	}

	if err := h.repos.Library.Add(r.Context(), userIDFromContext(r.Context()), req.SongID); err != nil {
		logger.Error("[Library] 添加失败",
			logger.String("songId", req.SongID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to add to library")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RemoveFromLibraryHandler DELETE /api/library {songId}
func (h *APIHandler) RemoveFromLibraryHandler(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SongID == "" {
		writeError(w, http.StatusBadRequest, "Missing songId")
		return
	}

	if err := h.repos.Library.Remove(r.Context(), userIDFromContext(r.Context()), req.SongID); err != nil {
		logger.Error("[Library] 移除失败",
			logger.String("songId", req.SongID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to remove from library")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
