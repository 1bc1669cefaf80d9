package xpush

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 缺省配置。
const (
	DefaultPingInterval         = 30 * time.Second
	DefaultPongTimeout          = 10 * time.Second
	DefaultReconnectBase        = time.Second
	DefaultReconnectCap         = 30 * time.Second
	DefaultMaxReconnectAttempts = 10

	// defaultStreamBuffer 每条通知流的缓冲长度。
	defaultStreamBuffer = 64

	// statusBuffer 状态信号流的缓冲长度。
	statusBuffer = 16

	// closeWriteTimeout 发送关闭帧的写超时。
	closeWriteTimeout = time.Second
)

// Recorder 接收通道级事件，用于接入指标系统。实现必须轻量。
type Recorder interface {
	Connected()
	Disconnected()
	ReconnectScheduled()
	MessageReceived(kind string)
	MessageDropped(reason string)
}

// noopRecorder 缺省的空实现。
type noopRecorder struct{}

func (noopRecorder) Connected()             {}
func (noopRecorder) Disconnected()          {}
func (noopRecorder) ReconnectScheduled()    {}
func (noopRecorder) MessageReceived(string) {}
func (noopRecorder) MessageDropped(string)  {}

// Client 推送通道客户端。
// 零值不可用，必须通过 [New] 创建；所有方法并发安全。
type Client struct {
	url          string
	dialer       *websocket.Dialer
	header       http.Header
	logger       *slog.Logger
	recorder     Recorder
	pingInterval time.Duration
	pongTimeout  time.Duration
	baseInterval time.Duration
	capInterval  time.Duration
	maxAttempts  int

	mu              sync.Mutex
	state           State
	conn            *websocket.Conn
	gen             uint64
	connectDone     chan struct{}
	connectErr      error
	shouldReconnect bool
	attempts        int
	subs            map[string]Subscription
	pending         [][]byte
	pongTimer       *time.Timer
	reconnectTimer  *time.Timer
	hbStop          chan struct{}

	// writeMu 串行化对同一连接的全部写操作
	writeMu sync.Mutex

	streams map[MessageKind]chan Envelope
	status  chan Status
	wg      sync.WaitGroup
}

// Option 配置选项。
type Option func(*Client)

// WithDialer 设置自定义拨号器。
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger 设置日志器，缺省丢弃日志。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder 设置事件记录器。
func WithRecorder(rec Recorder) Option {
	return func(c *Client) {
		if rec != nil {
			c.recorder = rec
		}
	}
}

// WithPingInterval 设置心跳发送间隔。d <= 0 被忽略。
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// WithPongTimeout 设置心跳应答超时。d <= 0 被忽略。
func WithPongTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pongTimeout = d
		}
	}
}

// WithReconnectInterval 设置重连延迟的基础值与上限。非正值被忽略。
func WithReconnectInterval(base, capInterval time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseInterval = base
		}
		if capInterval > 0 {
			c.capInterval = capInterval
		}
	}
}

// WithMaxReconnectAttempts 设置连续重连失败的次数上限。n <= 0 被忽略。
func WithMaxReconnectAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// New 创建推送通道客户端。创建后处于 Disconnected 状态，需显式 Connect。
func New(endpointURL string, opts ...Option) (*Client, error) {
	if endpointURL == "" {
		return nil, ErrEmptyURL
	}
	c := &Client{
		url:          endpointURL,
		dialer:       websocket.DefaultDialer,
		header:       http.Header{},
		logger:       slog.New(slog.DiscardHandler),
		recorder:     noopRecorder{},
		pingInterval: DefaultPingInterval,
		pongTimeout:  DefaultPongTimeout,
		baseInterval: DefaultReconnectBase,
		capInterval:  DefaultReconnectCap,
		maxAttempts:  DefaultMaxReconnectAttempts,
		subs:         make(map[string]Subscription),
		streams:      make(map[MessageKind]chan Envelope, len(dataKinds)),
		status:       make(chan Status, statusBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.header.Set("X-Client-ID", uuid.NewString())
	for _, kind := range dataKinds {
		c.streams[kind] = make(chan Envelope, defaultStreamBuffer)
	}
	return c, nil
}

// State 返回当前连接状态。
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected 报告连接是否已建立。
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Status 返回连接状态信号流。缓冲写满时新信号被丢弃。
func (c *Client) Status() <-chan Status {
	return c.status
}

// Messages 返回指定类别的通知流。类别不在封闭集合内返回 ErrUnknownKind。
func (c *Client) Messages(kind MessageKind) (<-chan Envelope, error) {
	ch, ok := c.streams[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	return ch, nil
}

// Subscriptions 返回登记表的快照。
func (c *Client) Subscriptions() []Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := make([]Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	return subs
}

// Connect 建立连接。已连接立即返回；正在连接则等待进行中的尝试完成；
// 否则发起新连接。显式 Connect 会复位重连计数并重新允许自动重连。
func (c *Client) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateClosing:
		c.mu.Unlock()
		return ErrClosing
	case StateConnecting:
		done := c.connectDone
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
		c.mu.Lock()
		err := c.connectErr
		c.mu.Unlock()
		return err
	}

	// Disconnected：发起新连接，取代任何待触发的自动重连
	c.shouldReconnect = true
	c.attempts = 0
	stopTimer(&c.reconnectTimer)
	c.beginConnectLocked()
	c.mu.Unlock()

	return c.establish(ctx)
}

// beginConnectLocked 进入 Connecting 状态。调用方必须持有 c.mu。
func (c *Client) beginConnectLocked() {
	c.state = StateConnecting
	c.connectDone = make(chan struct{})
	c.connectErr = nil
}

// settleConnectLocked 结束本次连接尝试，唤醒全部挂接的等待者。调用方必须持有 c.mu。
func (c *Client) settleConnectLocked(err error) {
	c.connectErr = err
	if c.connectDone != nil {
		close(c.connectDone)
		c.connectDone = nil
	}
}

// establish 执行一次拨号并在成功后装配连接。
func (c *Client) establish(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn("push channel dial failed", "url", c.url, "error", err)
		c.mu.Lock()
		c.state = StateDisconnected
		c.settleConnectLocked(err)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// 连接期间被显式关闭
		c.state = StateDisconnected
		c.settleConnectLocked(ErrClosing)
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosing
	}
	c.gen++
	gen := c.gen
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.hbStop = make(chan struct{})
	hbStop := c.hbStop
	replay := make([]Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		replay = append(replay, s)
	}
	flush := c.pending
	c.pending = nil
	c.settleConnectLocked(nil)

	c.wg.Add(2)
	go c.readLoop(gen, conn)
	go c.heartbeatLoop(gen, conn, hbStop)
	c.mu.Unlock()

	// 先重放订阅恢复服务端状态，再冲刷断线期间积压的出站消息
	for _, s := range replay {
		c.writeConn(conn, registration{Action: "subscribe", Event: s.Event, Filters: s.Filters})
	}
	for _, raw := range flush {
		c.writeRawConn(conn, raw)
	}

	c.logger.Info("push channel connected", "url", c.url, "replayed_subscriptions", len(replay))
	c.recorder.Connected()
	c.emitStatus(StatusConnected)
	return nil
}

// Disconnect 显式断开：关闭自动重连、同步清除全部定时器、关闭连接，
// 并等待连接相关协程退出。保证此后不会再触发任何重连。
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.shouldReconnect = false
	stopTimer(&c.reconnectTimer)

	for c.state == StateConnecting {
		done := c.connectDone
		c.mu.Unlock()
		<-done
		c.mu.Lock()
	}
	if c.state != StateConnected {
		c.state = StateDisconnected
		c.mu.Unlock()
		return nil
	}

	c.state = StateClosing
	conn := c.conn
	stopTimer(&c.pongTimer)
	c.mu.Unlock()

	deadline := time.Now().Add(closeWriteTimeout)
	//nolint:errcheck // 关闭帧尽力而为，对端可能已不可达
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()

	c.wg.Wait()
	return nil
}

// Subscribe 登记订阅。已连接时同步发送注册消息；
// 未连接时只更新登记表，由下次连接成功的整表重放送达。
func (c *Client) Subscribe(event string, filters map[string]string) error {
	if event == "" {
		return ErrEmptyEvent
	}
	sub := Subscription{Event: event, Filters: filters}

	c.mu.Lock()
	c.subs[sub.key()] = sub
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected {
		c.writeConn(conn, registration{Action: "subscribe", Event: event, Filters: filters})
	}
	return nil
}

// Unsubscribe 注销订阅。已连接时同步发送注销消息。
func (c *Client) Unsubscribe(event string, filters map[string]string) error {
	if event == "" {
		return ErrEmptyEvent
	}
	sub := Subscription{Event: event, Filters: filters}

	c.mu.Lock()
	delete(c.subs, sub.key())
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected {
		c.writeConn(conn, registration{Action: "unsubscribe", Event: event, Filters: filters})
	}
	return nil
}

// Send 发送任意出站消息。未连接时进入积压队列，连接成功后按入队顺序冲刷。
func (c *Client) Send(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateConnected {
		c.pending = append(c.pending, raw)
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeRawConn(conn, raw)
	return nil
}

// readLoop 读取并分发入站消息，连接断开后走统一的善后路径。
func (c *Client) readLoop(gen uint64, conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}
		c.dispatch(gen, data)
	}
}

// dispatch 按 type 标签分发一条入站消息。
func (c *Client) dispatch(gen uint64, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("dropping malformed push message", "error", err)
		c.recorder.MessageDropped("malformed")
		return
	}

	switch env.Type {
	case KindPong:
		c.mu.Lock()
		if gen == c.gen {
			stopTimer(&c.pongTimer)
		}
		c.mu.Unlock()
	case KindEtching, KindInscription, KindBalance, KindBlock:
		c.recorder.MessageReceived(string(env.Type))
		select {
		case c.streams[env.Type] <- env:
		default:
			c.logger.Warn("dropping push message: stream buffer full", "kind", env.Type)
			c.recorder.MessageDropped("buffer_full")
		}
	default:
		c.logger.Warn("dropping push message of unknown kind", "kind", env.Type)
		c.recorder.MessageDropped("unknown_kind")
	}
}

// heartbeatLoop 周期发送心跳并武装 pong 超时定时器，stop 关闭后退出。
func (c *Client) heartbeatLoop(gen uint64, conn *websocket.Conn, stop <-chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeConn(conn, heartbeat{Type: kindPing})
			c.armPongTimer(gen, conn)
		}
	}
}

// armPongTimer 武装单发 pong 超时定时器。同类定时器先清除再武装，不会重叠。
func (c *Client) armPongTimer(gen uint64, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateConnected {
		return
	}
	stopTimer(&c.pongTimer)
	c.pongTimer = time.AfterFunc(c.pongTimeout, func() {
		c.logger.Warn("pong timeout: forcing connection close")
		_ = conn.Close()
	})
}

// handleClosed 连接断开后的统一善后：停心跳、清定时器，
// 显式关闭只落回 Disconnected，意外断开额外调度重连。
func (c *Client) handleClosed(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		// 陈旧连接的回调，当前连接已更替
		c.mu.Unlock()
		return
	}
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
	stopTimer(&c.pongTimer)
	c.conn = nil
	wasClosing := c.state == StateClosing
	c.state = StateDisconnected
	if wasClosing || !c.shouldReconnect {
		c.mu.Unlock()
		c.recorder.Disconnected()
		return
	}
	c.logger.Warn("push channel connection lost", "error", cause)
	c.scheduleReconnectLocked()
	c.mu.Unlock()
	c.recorder.Disconnected()
}

// scheduleReconnectLocked 调度下一次自动重连，次数耗尽时恰好发出一次
// StatusExhausted 并停止。调用方必须持有 c.mu。
func (c *Client) scheduleReconnectLocked() {
	if !c.shouldReconnect {
		return
	}
	if c.attempts >= c.maxAttempts {
		c.shouldReconnect = false
		c.logger.Error("push channel reconnect attempts exhausted", "attempts", c.attempts)
		c.emitStatus(StatusExhausted)
		return
	}
	c.attempts++
	delay := time.Duration(c.attempts) * c.baseInterval
	if delay > c.capInterval {
		delay = c.capInterval
	}
	c.logger.Info("scheduling push channel reconnect", "attempt", c.attempts, "delay", delay)
	c.recorder.ReconnectScheduled()
	c.emitStatus(StatusReconnecting)

	stopTimer(&c.reconnectTimer)
	c.reconnectTimer = time.AfterFunc(delay, c.autoReconnect)
}

// autoReconnect 重连定时器回调。
func (c *Client) autoReconnect() {
	c.mu.Lock()
	if !c.shouldReconnect || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.beginConnectLocked()
	c.mu.Unlock()

	//nolint:errcheck // 失败路径已在 establish 内部调度下一次重连
	_ = c.establish(context.Background())
}

// emitStatus 非阻塞发送状态信号，缓冲满时丢弃。
func (c *Client) emitStatus(s Status) {
	select {
	case c.status <- s:
	default:
	}
}

// writeConn 序列化并写出一条消息，写操作全局串行。
func (c *Client) writeConn(conn *websocket.Conn, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal outbound message", "error", err)
		return
	}
	c.writeRawConn(conn, raw)
}

// writeRawConn 写出原始字节。写失败只记日志：断开由读循环统一善后。
func (c *Client) writeRawConn(conn *websocket.Conn, raw []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.logger.Warn("push channel write failed", "error", err)
	}
}

// stopTimer 停止并清空定时器指针。调用方必须持有 c.mu。
func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
