package surface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nuvyx/core/player"
	"nuvyx/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Controller is the session surface the bridge drives.
type Controller interface {
	Play(ctx context.Context, track player.Track) error
	PlayAt(ctx context.Context, index int) error
	TogglePlay()
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(seconds float64)
	SetVolume(v float64)
	ToggleShuffle()
	ReplaceQueue(tracks []player.Track)
	SetPosition(index int) error
	Enqueue(track player.Track)
	AddToLibrary(ctx context.Context, trackID string) error
	RemoveFromLibrary(ctx context.Context, trackID string) error
	Download(ctx context.Context, track player.Track) error
	Snapshot() player.Snapshot
	Subscribe() (<-chan player.Snapshot, func())
}

// Bridge exposes a Controller to presentation clients over websocket and pushes every state
// change back to them.
type Bridge struct {
	ctrl     Controller
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Client 一个已连接的展示层
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	bridge *Bridge

	mu     sync.Mutex
	closed bool
}

func NewBridge(ctrl Controller) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 控制端口只监听本地
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run forwards session snapshots to every client until ctx is done or Close is called.
func (b *Bridge) Run(ctx context.Context) {
	updates, unsubscribe := b.ctrl.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			b.broadcast(newMessage(MsgTypeState, snap))
		}
	}
}

// Close disconnects every client and waits for in-flight commands.
func (b *Bridge) Close() {
	b.cancel()
	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		c.closeSend()
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	c := &Client{conn: conn, send: make(chan []byte, sendBuffer), bridge: b}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	logger.Info("control client connected", logger.String("remote", r.RemoteAddr))

	c.enqueue(newMessage(MsgTypeState, b.ctrl.Snapshot()))
	go c.writePump()
	c.readPump(b.ctx)
}

func (b *Bridge) broadcast(data []byte) {
	if data == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		c.enqueue(data)
	}
}

func (b *Bridge) unregister(c *Client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.closeSend()
	}
	b.mu.Unlock()
}

// handle dispatches one command. Commands that wait on the network run on their own goroutine
// so a newer command can supersede them.
func (b *Bridge) handle(ctx context.Context, c *Client, msg *WSMessage) {
	switch msg.Type {
	case MsgTypePing:
		c.enqueue(newMessage(MsgTypePong, nil))
	case MsgTypeToggle:
		b.ctrl.TogglePlay()
	case MsgTypeShuffle:
		b.ctrl.ToggleShuffle()
	case MsgTypeSeek:
		var d SeekData
		if b.decode(c, msg, &d) {
			b.ctrl.Seek(d.Seconds)
		}
	case MsgTypeVolume:
		var d VolumeData
		if b.decode(c, msg, &d) {
			b.ctrl.SetVolume(d.Volume)
		}
	case MsgTypeQueue:
		var d QueueData
		if b.decode(c, msg, &d) {
			b.ctrl.ReplaceQueue(d.Tracks)
			if d.Position != nil {
				b.reply(c, msg.Type, b.ctrl.SetPosition(*d.Position))
			}
		}
	case MsgTypeEnqueue:
		var t player.Track
		if b.decode(c, msg, &t) {
			b.ctrl.Enqueue(t)
		}
	case MsgTypePlay:
		var d PlayData
		if !b.decode(c, msg, &d) {
			return
		}
		switch {
		case d.Track != nil:
			track := *d.Track
			b.async(c, msg.Type, func() error { return b.ctrl.Play(ctx, track) })
		case d.Index != nil:
			idx := *d.Index
			b.async(c, msg.Type, func() error { return b.ctrl.PlayAt(ctx, idx) })
		default:
			b.reply(c, msg.Type, errors.New("play needs a track or an index"))
		}
	case MsgTypeNext:
		b.async(c, msg.Type, func() error { return b.ctrl.Next(ctx) })
	case MsgTypePrevious:
		b.async(c, msg.Type, func() error { return b.ctrl.Previous(ctx) })
	case MsgTypeLibraryAdd, MsgTypeLibraryRemove:
		var d SongData
		if !b.decode(c, msg, &d) {
			return
		}
		if msg.Type == MsgTypeLibraryAdd {
			b.async(c, msg.Type, func() error { return b.ctrl.AddToLibrary(ctx, d.SongID) })
		} else {
			b.async(c, msg.Type, func() error { return b.ctrl.RemoveFromLibrary(ctx, d.SongID) })
		}
	case MsgTypeDownload:
		var t player.Track
		if b.decode(c, msg, &t) {
			b.async(c, msg.Type, func() error { return b.ctrl.Download(ctx, t) })
		}
	default:
		b.reply(c, msg.Type, fmt.Errorf("unknown command %q", msg.Type))
	}
}

func (b *Bridge) async(c *Client, cmd MessageType, fn func() error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.reply(c, cmd, fn())
	}()
}

// reply reports err to the client. A superseded play is not a failure.
func (b *Bridge) reply(c *Client, cmd MessageType, err error) {
	if err == nil || errors.Is(err, player.ErrSuperseded) {
		return
	}
	logger.Warn("control command failed", logger.String("command", string(cmd)), logger.ErrorField(err))
	c.enqueue(newMessage(MsgTypeError, ErrorData{
		Command:      cmd,
		Message:      err.Error(),
		AuthRequired: errors.Is(err, player.ErrAuthRequired),
	}))
}

func (b *Bridge) decode(c *Client, msg *WSMessage, v interface{}) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		b.reply(c, msg.Type, fmt.Errorf("invalid %s data: %w", msg.Type, err))
		return false
	}
	return true
}

func newMessage(t MessageType, data interface{}) []byte {
	msg := WSMessage{Type: t, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			logger.Error("encode message failed", logger.String("type", string(t)), logger.ErrorField(err))
			return nil
		}
		msg.Data = raw
	}
	out, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return out
}

// enqueue 缓冲区满时丢弃消息
func (c *Client) enqueue(data []byte) {
	if data == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump 读取消息循环
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.bridge.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("invalid message format", logger.ErrorField(err))
			c.enqueue(newMessage(MsgTypeError, ErrorData{Message: "invalid message format"}))
			continue
		}
		c.bridge.handle(ctx, c, &msg)
	}
}

// writePump 写入消息循环
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
