package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// FileDownloader saves resolved download URLs under Dir.
type FileDownloader struct {
	Dir    string
	Client *http.Client
}

func NewFileDownloader(dir string) *FileDownloader {
	return &FileDownloader{Dir: dir, Client: http.DefaultClient}
}

// Save 下载文件到 Dir/filename，先写临时文件再重命名
func (d *FileDownloader) Save(ctx context.Context, url, filename string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("下载文件失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("下载文件失败，状态码: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	dst := filepath.Join(d.Dir, filepath.Base(filename))
	out, err := os.CreateTemp(d.Dir, ".download-*")
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer os.Remove(out.Name())

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("保存文件失败: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("保存文件失败: %w", err)
	}
	if err := os.Rename(out.Name(), dst); err != nil {
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return nil
}
