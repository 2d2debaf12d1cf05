package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nuvyx/core/player"
	"nuvyx/logger"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// ErrUnauthorized is returned when the service rejects the bearer token.
var ErrUnauthorized = errors.New("catalog: unauthorized")

// Client 目录服务 API 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建新的 API 客户端
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
	}
}

// SetTimeout 设置请求超时时间
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// ResolveStreamURL asks the service for a presigned stream URL. The token is optional.
func (c *Client) ResolveStreamURL(ctx context.Context, storageKey string, token mo.Option[string]) (string, error) {
	q := url.Values{"key": {storageKey}}
	return c.resolve(ctx, q, token)
}

// ResolveDownloadURL asks for a presigned URL that downloads as filename.
func (c *Client) ResolveDownloadURL(ctx context.Context, storageKey, filename, token string) (string, error) {
	q := url.Values{
		"key":      {storageKey},
		"download": {"true"},
		"filename": {filename},
	}
	return c.resolve(ctx, q, mo.Some(token))
}

func (c *Client) resolve(ctx context.Context, q url.Values, token mo.Option[string]) (string, error) {
	var result struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/stream?"+q.Encode(), token, nil, &result); err != nil {
		return "", fmt.Errorf("获取播放地址失败: %w", err)
	}
	if result.URL == "" {
		return "", errors.New("获取播放地址失败: empty url")
	}
	return result.URL, nil
}

// RecordInteraction posts a stream or download event.
func (c *Client) RecordInteraction(ctx context.Context, ev player.Interaction) error {
	body := map[string]string{
		"type":   string(ev.Kind()),
		"songId": ev.SongID(),
	}
	if err := c.do(ctx, http.MethodPost, "/api/interactions", ev.AuthToken(), body, nil); err != nil {
		return fmt.Errorf("记录交互失败: %w", err)
	}
	return nil
}

type libraryEntry struct {
	SongID string `json:"songId"`
}

// ListLibrary returns the ids of the songs in the caller's library.
func (c *Client) ListLibrary(ctx context.Context, token string) ([]string, error) {
	var result struct {
		Library []libraryEntry `json:"library"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/library", mo.Some(token), nil, &result); err != nil {
		return nil, fmt.Errorf("获取曲库失败: %w", err)
	}
	return lo.Map(result.Library, func(e libraryEntry, _ int) string {
		return e.SongID
	}), nil
}

func (c *Client) AddToLibrary(ctx context.Context, token, songID string) error {
	return c.do(ctx, http.MethodPost, "/api/library", mo.Some(token), map[string]string{"songId": songID}, nil)
}

func (c *Client) RemoveFromLibrary(ctx context.Context, token, songID string) error {
	return c.do(ctx, http.MethodDelete, "/api/library", mo.Some(token), map[string]string{"songId": songID}, nil)
}

// do sends one JSON request. A non-2xx status becomes an error carrying the service's message.
func (c *Client) do(ctx context.Context, method, path string, token mo.Option[string], in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("编码请求失败: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t, ok := token.Get(); ok {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		logger.Debug("catalog request failed",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
			logger.String("error", apiErr.Error))
		return fmt.Errorf("API返回错误状态码: %d %s", resp.StatusCode, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
