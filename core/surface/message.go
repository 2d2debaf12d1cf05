package surface

import (
	"encoding/json"

	"nuvyx/core/player"
)

// MessageType 消息类型
type MessageType string

const (
	// 控制命令（客户端 -> 播放器）
	MsgTypePlay          MessageType = "play"           // 播放歌曲，data: track 或 {index}
	MsgTypeToggle        MessageType = "toggle"         // 播放/暂停
	MsgTypeNext          MessageType = "next"           // 下一首
	MsgTypePrevious      MessageType = "previous"       // 上一首
	MsgTypeSeek          MessageType = "seek"           // 跳转，data: {seconds}
	MsgTypeVolume        MessageType = "volume"         // 音量，data: {volume}
	MsgTypeShuffle       MessageType = "shuffle"        // 切换随机播放
	MsgTypeQueue         MessageType = "queue"          // 替换队列，data: {tracks, position}
	MsgTypeEnqueue       MessageType = "enqueue"        // 追加到队列，data: track
	MsgTypeLibraryAdd    MessageType = "library_add"    // 收藏，data: {songId}
	MsgTypeLibraryRemove MessageType = "library_remove" // 取消收藏，data: {songId}
	MsgTypeDownload      MessageType = "download"       // 下载，data: track
	MsgTypePing          MessageType = "ping"           // 心跳

	// 推送（播放器 -> 客户端）
	MsgTypeState MessageType = "state" // 播放状态快照
	MsgTypeError MessageType = "error" // 错误消息
	MsgTypePong  MessageType = "pong"  // 心跳响应
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// PlayData selects a track either by value or by queue index.
type PlayData struct {
	Track *player.Track `json:"track,omitempty"`
	Index *int          `json:"index,omitempty"`
}

type SeekData struct {
	Seconds float64 `json:"seconds"`
}

type VolumeData struct {
	Volume float64 `json:"volume"`
}

// QueueData replaces the queue. Position is applied afterwards when present.
type QueueData struct {
	Tracks   []player.Track `json:"tracks"`
	Position *int           `json:"position,omitempty"`
}

type SongData struct {
	SongID string `json:"songId"`
}

// ErrorData 错误消息数据
type ErrorData struct {
	Command MessageType `json:"command,omitempty"`
	Message string      `json:"message"`
	// AuthRequired tells the client to show its login flow.
	AuthRequired bool `json:"authRequired,omitempty"`
}
