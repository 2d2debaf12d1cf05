package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nuvyx/core/auth"
	"nuvyx/core/catalog"
	"nuvyx/core/media"
	"nuvyx/core/player"
	"nuvyx/core/surface"
	"nuvyx/core/utils"
	"nuvyx/logger"

	"github.com/gorilla/mux"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
)

var (
	playQueueFile string
	playToken     string
	playStart     bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "运行播放引擎",
	Long:  `运行一个无界面的播放会话，通过本地 websocket 控制端口接收命令并推送状态。--queue 指定的 JSON 文件变化时会替换播放队列。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runPlayer(ctx)
	},
}

func runPlayer(ctx context.Context) error {
	out, err := media.NewOutput()
	if err != nil {
		return err
	}
	if !media.AudioAvailable {
		logger.Warn("audio output unavailable in this build, playing silently")
	}

	var tokens player.TokenSource = auth.KeyringTokenSource{}
	if playToken != "" {
		tokens = auth.StaticTokenSource(playToken)
	}

	client := catalog.NewClient(cfg.APIBaseURL)
	session := player.NewSession(player.Options{
		Media:      out,
		Resolver:   client,
		Recorder:   client,
		Library:    client,
		Auth:       auth.WithTimeout(tokens, cfg.AuthTimeout),
		Downloader: utils.NewFileDownloader(cfg.DownloadDir),
		Login: func() {
			logger.Warn("login required: run `nuvyx login --token <token>`")
		},
		Volume: mo.Some(cfg.DefaultVolume),
	})
	defer session.Close()

	if err := session.RefreshLibrary(ctx); err != nil {
		logger.Warn("failed to load library", logger.ErrorField(err))
	}

	if playQueueFile != "" {
		tracks, err := utils.LoadQueueFile(playQueueFile)
		if err != nil {
			return err
		}
		session.ReplaceQueue(tracks)
		if playStart && len(tracks) > 0 {
			if err := session.PlayAt(ctx, 0); err != nil {
				logger.Warn("failed to start playback", logger.ErrorField(err))
			}
		}
		go func() {
			err := utils.WatchQueueFile(ctx, playQueueFile, session.ReplaceQueue)
			if err != nil {
				logger.Error("queue watcher stopped", logger.ErrorField(err))
			}
		}()
	}

	bridge := surface.NewBridge(session)
	defer bridge.Close()
	go bridge.Run(ctx)

	router := mux.NewRouter()
	router.Handle("/ws", bridge)
	srv := &http.Server{Addr: cfg.ControlAddr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control surface listening", logger.String("addr", "ws://"+cfg.ControlAddr+"/ws"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	playCmd.Flags().StringVarP(&playQueueFile, "queue", "q", "", "JSON 队列文件，变化时自动重新加载")
	playCmd.Flags().StringVar(&playToken, "token", "", "使用指定 token 而不是钥匙串中的")
	playCmd.Flags().BoolVar(&playStart, "start", false, "加载队列后立即播放第一首")
	rootCmd.AddCommand(playCmd)
}
