package server

import (
	"net/http"

	"nuvyx/logger"
	"nuvyx/model"
)

type likeRequest struct {
	SongID string `json:"songId"`
	Action string `json:"action"`
}

// GetLikesHandler 带 songId 时返回是否喜欢，否则返回喜欢列表
// GET /api/likes[?songId=]
func (h *APIHandler) GetLikesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)

	if songID := r.URL.Query().Get("songId"); songID != "" {
		liked, err := h.repos.Likes.IsLiked(ctx, userID, songID)
		if err != nil {
			logger.Error("[Likes] 查询失败", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to check like")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
		return
	}

	likes, err := h.repos.Likes.List(ctx, userID)
	if err != nil {
		logger.Error("[Likes] 查询列表失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load likes")
		return
	}
	if likes == nil {
		likes = []*model.LikedSong{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"likes": likes})
}

// ToggleLikeHandler POST /api/likes {songId, action: like|unlike}
func (h *APIHandler) ToggleLikeHandler(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SongID == "" {
		writeError(w, http.StatusBadRequest, "Missing songId")
		return
	}

	ctx := r.Context()
	userID := userIDFromContext(ctx)

	var err error
	switch req.Action {
	case "like":
		err = h.repos.Likes.Like(ctx, userID, req.SongID)
	case "unlike":
		err = h.repos.Likes.Unlike(ctx, userID, req.SongID)
	default:
		writeError(w, http.StatusBadRequest, "Invalid action")
		return
	}
	if err != nil {
		logger.Error("[Likes] 更新失败",
			logger.String("action", req.Action),
			logger.String("songId", req.SongID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to update like")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
