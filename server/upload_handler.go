package server

import (
	"net/http"
	"strings"

	"nuvyx/logger"
	"nuvyx/storage"
)

type presignUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type cleanupRequest struct {
	Key string `json:"key"`
}

// PresignUploadHandler 为管理员生成上传链接，客户端随后用 PUT 直传对象存储
// POST /api/upload/presign
func (h *APIHandler) PresignUploadHandler(w http.ResponseWriter, r *http.Request) {
	var req presignUploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Filename) == "" || req.ContentType == "" {
		writeError(w, http.StatusBadRequest, "Missing filename or contentType")
		return
	}

	key := storage.UploadKey(req.Filename)
	url, err := h.objects.PresignUpload(r.Context(), key)
	if err != nil {
		logger.Error("[Upload] 生成上传链接失败", logger.String("key", key), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"url": url, "key": key})
}

// CleanupUploadHandler 删除没有歌曲引用的对象，例如上传后未完成建档的文件
// DELETE /api/upload/cleanup
func (h *APIHandler) CleanupUploadHandler(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "Missing key")
		return
	}

	referenced, err := h.repos.Songs.ReferencesObject(r.Context(), req.Key)
	if err != nil {
		logger.Error("[Upload] 检查对象引用失败", logger.String("key", req.Key), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if referenced {
		writeError(w, http.StatusBadRequest, "Cannot delete: object is referenced by a song record")
		return
	}

	if err := h.objects.RemoveObject(r.Context(), req.Key); err != nil {
		logger.Error("[Upload] 删除对象失败", logger.String("key", req.Key), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Object deleted"})
}
