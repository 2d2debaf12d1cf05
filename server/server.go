package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nuvyx/config"
	"nuvyx/core/auth"
	"nuvyx/logger"
	"nuvyx/repository"

	"github.com/gorilla/mux"
)

// URLSigner issues presigned object URLs for streaming and downloading.
type URLSigner interface {
	PresignStream(ctx context.Context, key string) (string, error)
	PresignDownload(ctx context.Context, key, filename string) (string, error)
}

// ObjectStore is the admin side of object storage.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key string) (string, error)
	RemoveObject(ctx context.Context, key string) error
}

// Repositories groups the data access the API needs.
type Repositories struct {
	Songs        repository.SongRepository
	Users        repository.UserRepository
	Library      repository.LibraryRepository
	Likes        repository.LikeRepository
	Interactions repository.InteractionRepository
}

// APIHandler 处理所有 API 请求
type APIHandler struct {
	repos   Repositories
	urls    URLSigner
	objects ObjectStore
	tokens  *auth.TokenIssuer
	cfg     *config.Config
	now     func() time.Time
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(repos Repositories, urls URLSigner, objects ObjectStore, tokens *auth.TokenIssuer, cfg *config.Config) *APIHandler {
	return &APIHandler{repos: repos, urls: urls, objects: objects, tokens: tokens, cfg: cfg, now: time.Now}
}

// Router builds the gorilla/mux router for the API.
func (h *APIHandler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/stream", h.OptionalAuth(h.StreamURLHandler)).Methods(http.MethodGet)

	api.HandleFunc("/interactions", h.OptionalAuth(h.RecordInteractionHandler)).Methods(http.MethodPost)
	api.HandleFunc("/interactions", h.RequireAuth(h.HistoryHandler)).Methods(http.MethodGet)

	api.HandleFunc("/library", h.RequireAuth(h.GetLibraryHandler)).Methods(http.MethodGet)
	api.HandleFunc("/library", h.RequireAuth(h.AddToLibraryHandler)).Methods(http.MethodPost)
	api.HandleFunc("/library", h.RequireAuth(h.RemoveFromLibraryHandler)).Methods(http.MethodDelete)

	api.HandleFunc("/likes", h.RequireAuth(h.GetLikesHandler)).Methods(http.MethodGet)
	api.HandleFunc("/likes", h.RequireAuth(h.ToggleLikeHandler)).Methods(http.MethodPost)

	api.HandleFunc("/songs", h.GetSongsHandler).Methods(http.MethodGet)
	api.HandleFunc("/songs", h.RequireAdmin(h.CreateSongHandler)).Methods(http.MethodPost)
	api.HandleFunc("/songs", h.RequireAdmin(h.UpdateSongHandler)).Methods(http.MethodPatch)
	api.HandleFunc("/songs", h.RequireAdmin(h.DeleteSongHandler)).Methods(http.MethodDelete)

	api.HandleFunc("/ranking/trending", h.TrendingHandler).Methods(http.MethodGet)
	api.HandleFunc("/ranking/top-mints", h.TopMintsHandler).Methods(http.MethodGet)

	api.HandleFunc("/upload/presign", h.RequireAdmin(h.PresignUploadHandler)).Methods(http.MethodPost)
	api.HandleFunc("/upload/cleanup", h.RequireAdmin(h.CleanupUploadHandler)).Methods(http.MethodDelete)

	api.HandleFunc("/auth/verify", h.VerifyWalletHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/check", h.RequireAuth(h.CheckUserHandler)).Methods(http.MethodGet)

	// CORS 预检请求需要路由命中
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return router
}

// Start serves the API on cfg.ServerAddr until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, cfg *config.Config, h *APIHandler) error {
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      h.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
