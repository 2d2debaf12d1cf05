package server

import (
	"errors"
	"net/http"

	"nuvyx/core/auth"
	"nuvyx/logger"
	"nuvyx/repository"
)

type verifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
}

// VerifyWalletHandler 校验钱包签名，创建或获取用户并签发 token
// POST /api/auth/verify {walletAddress, signature}
func (h *APIHandler) VerifyWalletHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WalletAddress == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "walletAddress and signature are required")
		return
	}

	address, err := auth.VerifyWalletSignature(req.WalletAddress, req.Signature)
	if err != nil {
		logger.Warn("[Auth] 签名校验失败",
			logger.String("wallet", req.WalletAddress),
			logger.ErrorField(err))
		if errors.Is(err, auth.ErrInvalidSignature) {
			writeError(w, http.StatusUnauthorized, "Invalid signature")
		} else {
			writeError(w, http.StatusBadRequest, "Invalid wallet address")
		}
		return
	}

	user, err := h.repos.Users.UpsertWallet(r.Context(), address)
	if err != nil {
		logger.Error("[Auth] 保存用户失败", logger.String("wallet", address), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.WalletAddress)
	if err != nil {
		logger.Error("[Auth] 生成Token失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	logger.Info("[Auth] 登录成功", logger.String("wallet", address))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

// CheckUserHandler GET /api/auth/check?address=
func (h *APIHandler) CheckUserHandler(w http.ResponseWriter, r *http.Request) {
	address, err := auth.ChecksumAddress(r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid wallet address")
		return
	}

	user, err := h.repos.Users.GetByWallet(r.Context(), address)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"exists": false, "user": nil})
		return
	}
	if err != nil {
		logger.Error("[Auth] 查询用户失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exists": true, "user": user})
}
