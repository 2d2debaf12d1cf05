package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nuvyx/cache"
	"nuvyx/core/auth"
	"nuvyx/db"
	"nuvyx/logger"
	"nuvyx/model"
	"nuvyx/repository"
	"nuvyx/server"
	"nuvyx/storage"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 Nuvyx 目录/流媒体服务",
	Long:  `启动 HTTP API 服务：预签名播放链接、播放/下载记录、曲库、喜欢、歌曲搜索与管理、排行榜、上传和钱包登录。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

func runServer(ctx context.Context) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	gdb, err := db.ConnectGormDB(cfg)
	if err != nil {
		return err
	}
	defer db.CloseGormDB()
	if err := db.AutoMigrateModels(model.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Redis 不可用时不缓存预签名链接
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, presigned URLs will not be cached", logger.ErrorField(err))
	} else {
		defer cache.CloseRedis()
	}

	gateway, err := storage.NewGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	repos := server.Repositories{
		Songs:        repository.NewGormSongRepository(gdb),
		Users:        repository.NewGormUserRepository(gdb),
		Library:      repository.NewGormLibraryRepository(gdb),
		Likes:        repository.NewGormLikeRepository(gdb),
		Interactions: repository.NewGormInteractionRepository(gdb),
	}
	urls := cache.NewStreamURLCache(gateway, cache.RedisClient, gateway.Expiry())
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)

	return server.Start(ctx, cfg, server.NewAPIHandler(repos, urls, gateway, tokens, cfg))
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
