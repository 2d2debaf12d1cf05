package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"nuvyx/core/player"
	"nuvyx/logger"

	"github.com/fsnotify/fsnotify"
)

// LoadQueueFile reads a JSON array of tracks.
func LoadQueueFile(path string) ([]player.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tracks []player.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("parse queue file %s: %w", path, err)
	}
	return tracks, nil
}

// WatchQueueFile calls onChange with the parsed contents every time path is written, until ctx
// is done. Unparseable writes are logged and skipped.
func WatchQueueFile(ctx context.Context, path string, onChange func([]player.Track)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// 监听目录，编辑器保存时常常是替换文件
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != abs || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			tracks, err := LoadQueueFile(abs)
			if err != nil {
				logger.Warn("队列文件读取失败", logger.String("path", abs), logger.ErrorField(err))
				continue
			}
			logger.Info("队列文件已更新", logger.String("path", abs), logger.Int("tracks", len(tracks)))
			onChange(tracks)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", logger.ErrorField(err))
		}
	}
}
