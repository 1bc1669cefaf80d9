package xpush

import (
	"encoding/json"
	"net/url"

	"github.com/omeyang/ordkit/internal/restcore"
)

// MessageKind 入站消息的类别标签。闭集，新增类别必须同步更新 dataKinds。
type MessageKind string

const (
	// KindEtching 符文蚀刻事件。
	KindEtching MessageKind = "etching"

	// KindInscription 铭文事件。
	KindInscription MessageKind = "inscription"

	// KindBalance 代币余额变动事件。
	KindBalance MessageKind = "balance"

	// KindBlock 新区块事件。
	KindBlock MessageKind = "block"

	// KindPong 心跳应答，不进入通知流。
	KindPong MessageKind = "pong"

	// kindPing 出站心跳探测。
	kindPing MessageKind = "ping"
)

// dataKinds 会分发到通知流的全部数据类别。
var dataKinds = []MessageKind{KindEtching, KindInscription, KindBalance, KindBlock}

// Envelope 入站消息的统一信封。
type Envelope struct {
	Type        MessageKind     `json:"type"`
	Action      string          `json:"action,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Timestamp   int64           `json:"timestamp,omitempty"`
	BlockHeight int64           `json:"block_height,omitempty"`
}

// registration 出站订阅注册/注销消息。
type registration struct {
	Action  string            `json:"action"`
	Event   string            `json:"event"`
	Filters map[string]string `json:"filters,omitempty"`
}

// heartbeat 出站心跳探测消息。
type heartbeat struct {
	Type MessageKind `json:"type"`
}

// Subscription 登记表中的单条订阅。
type Subscription struct {
	Event   string
	Filters map[string]string
}

// key 订阅的规范化标识：同一事件加等价过滤条件映射到同一个 key。
func (s Subscription) key() string {
	vals := url.Values{}
	for k, v := range s.Filters {
		vals.Set(k, v)
	}
	return restcore.BuildKey(s.Event, restcore.ParamsToken(vals))
}

// Status 连接状态信号，推送给 Status 流的订阅者。
type Status int

const (
	// StatusConnected 连接已建立（含重连成功）。
	StatusConnected Status = iota

	// StatusReconnecting 连接丢失，已调度重连。
	StatusReconnecting

	// StatusExhausted 重连次数耗尽，不再自动重连。
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// State 连接状态机的状态。
type State int

const (
	// StateDisconnected 未连接。
	StateDisconnected State = iota

	// StateConnecting 连接建立中。
	StateConnecting

	// StateConnected 已连接。
	StateConnected

	// StateClosing 显式关闭中。
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}
