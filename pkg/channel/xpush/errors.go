package xpush

import "errors"

var (
	// ErrEmptyURL 表示推送端点 URL 为空。
	ErrEmptyURL = errors.New("xpush: empty endpoint url")

	// ErrClosing 表示客户端正在关闭，不接受新的连接请求。
	ErrClosing = errors.New("xpush: client is closing")

	// ErrUnknownKind 表示请求了封闭集合之外的消息类别。
	ErrUnknownKind = errors.New("xpush: unknown message kind")

	// ErrEmptyEvent 表示订阅事件名为空。
	ErrEmptyEvent = errors.New("xpush: empty event name")
)
