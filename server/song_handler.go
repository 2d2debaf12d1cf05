package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"nuvyx/logger"
	"nuvyx/model"
	"nuvyx/repository"
)

const defaultSearchLimit = 100

type createSongRequest struct {
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	MoodType    string   `json:"moodType"`
	R2ObjectKey string   `json:"r2ObjectKey"`
	CoverURL    string   `json:"coverUrl"`
	Duration    string   `json:"duration"`
	Tags        []string `json:"tags"`
}

type updateSongRequest struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Artist   string   `json:"artist"`
	MoodType string   `json:"moodType"`
	Duration string   `json:"duration"`
	Tags     []string `json:"tags"`
}

type songIDRequest struct {
	ID string `json:"id"`
}

// GetSongsHandler 按 id 查询单曲，或按关键字/心情搜索
// GET /api/songs?id= | ?query=&mood=&limit=
func (h *APIHandler) GetSongsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		song, err := h.repos.Songs.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Song not found")
			return
		}
		if err != nil {
			logger.Error("[Songs] 查询失败", logger.String("id", id), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to load song")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"song": song})
		return
	}

	limit := defaultSearchLimit
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}
	songs, err := h.repos.Songs.Search(ctx, q.Get("query"), q.Get("mood"), limit)
	if err != nil {
		logger.Error("[Songs] 搜索失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to search songs")
		return
	}
	if songs == nil {
		songs = []*model.Song{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"songs": songs})
}

// CreateSongHandler 仅管理员钱包可创建歌曲
// POST /api/songs
func (h *APIHandler) CreateSongHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req createSongRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.MoodType == "" || req.R2ObjectKey == "" {
		writeError(w, http.StatusBadRequest, "title, moodType and r2ObjectKey are required")
		return
	}

	song := &model.Song{
		Title:       req.Title,
		Artist:      req.Artist,
		MoodType:    req.MoodType,
		R2ObjectKey: req.R2ObjectKey,
		CoverURL:    req.CoverURL,
		Duration:    req.Duration,
		Tags:        model.StringList(req.Tags),
	}
	if song.Artist == "" {
		song.Artist = "nuvyx"
	}
	if song.Duration == "" {
		song.Duration = "0:00"
	}

	if err := h.repos.Songs.Create(r.Context(), song); err != nil {
		logger.Error("[Songs] 创建失败", logger.String("title", song.Title), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to create song")
		return
	}
	logger.Info("[Songs] 创建成功",
		logger.String("id", song.ID),
		logger.String("title", song.Title),
		logger.String("by", claims.WalletAddress))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"song": song})
}

// UpdateSongHandler 管理员编辑歌曲，只修改请求中非空的字段
// PATCH /api/songs
func (h *APIHandler) UpdateSongHandler(w http.ResponseWriter, r *http.Request) {
	var req updateSongRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Missing song ID")
		return
	}

	song, err := h.repos.Songs.Update(r.Context(), req.ID, repository.SongPatch{
		Title:    strings.TrimSpace(req.Title),
		Artist:   req.Artist,
		MoodType: req.MoodType,
		Duration: req.Duration,
		Tags:     req.Tags,
	})
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Song not found")
		return
	}
	if err != nil {
		logger.Error("[Songs] 更新失败", logger.String("id", req.ID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to update song")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "song": song})
}

// DeleteSongHandler 管理员删除歌曲及其关联记录，存储对象保留，由 /api/upload/cleanup 清理
// DELETE /api/songs
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	var req songIDRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Missing song ID")
		return
	}

	err := h.repos.Songs.Delete(r.Context(), req.ID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Song not found")
		return
	}
	if err != nil {
		logger.Error("[Songs] 删除失败", logger.String("id", req.ID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete song")
		return
	}
	logger.Info("[Songs] 已删除", logger.String("id", req.ID))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
