package server

import (
	"net/http"
	"path"

	"nuvyx/logger"
)

// StreamURLHandler 返回对象的预签名播放或下载链接
// GET /api/stream?key=&download=true&filename=
func (h *APIHandler) StreamURLHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "Missing key")
		return
	}

	var (
		url string
		err error
	)
	if q.Get("download") == "true" {
		if userIDFromContext(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required for downloads")
			return
		}
		filename := q.Get("filename")
		if filename == "" {
			filename = path.Base(key)
		}
		url, err = h.urls.PresignDownload(r.Context(), key, filename)
	} else {
		url, err = h.urls.PresignStream(r.Context(), key)
	}
	if err != nil {
		logger.Error("[Stream] 生成预签名链接失败",
			logger.String("key", key),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate URL")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
