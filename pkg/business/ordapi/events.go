package ordapi

import (
	"encoding/json"
	"fmt"

	"github.com/omeyang/ordkit/pkg/channel/xpush"
)

// Event 推送事件的封闭集合。具体类型为 [EtchingEvent]、[InscriptionEvent]、
// [BalanceEvent] 与 [BlockEvent]。
type Event interface {
	isEvent()
}

// EtchingEvent 符文蚀刻事件。
type EtchingEvent struct {
	Action      string
	Etching     Etching
	BlockHeight int64
	Timestamp   int64
}

// InscriptionEvent 铭文事件。
type InscriptionEvent struct {
	Action      string
	Inscription Inscription
	BlockHeight int64
	Timestamp   int64
}

// BalanceEvent 代币余额变动事件。
type BalanceEvent struct {
	Action      string
	Balance     TokenBalance
	BlockHeight int64
	Timestamp   int64
}

// BlockEvent 新区块事件。
type BlockEvent struct {
	Height    int64
	Timestamp int64
}

func (EtchingEvent) isEvent()     {}
func (InscriptionEvent) isEvent() {}
func (BalanceEvent) isEvent()     {}
func (BlockEvent) isEvent()       {}

// ParseEvent 把推送信封解析为类型化事件。
// 类别不在封闭集合内返回 ErrUnknownEvent。
func ParseEvent(env xpush.Envelope) (Event, error) {
	switch env.Type {
	case xpush.KindEtching:
		var etching Etching
		if err := json.Unmarshal(env.Data, &etching); err != nil {
			return nil, fmt.Errorf("ordapi: decode etching event failed: %w", err)
		}
		return EtchingEvent{
			Action:      env.Action,
			Etching:     etching,
			BlockHeight: env.BlockHeight,
			Timestamp:   env.Timestamp,
		}, nil
	case xpush.KindInscription:
		var inscription Inscription
		if err := json.Unmarshal(env.Data, &inscription); err != nil {
			return nil, fmt.Errorf("ordapi: decode inscription event failed: %w", err)
		}
		return InscriptionEvent{
			Action:      env.Action,
			Inscription: inscription,
			BlockHeight: env.BlockHeight,
			Timestamp:   env.Timestamp,
		}, nil
	case xpush.KindBalance:
		var balance TokenBalance
		if err := json.Unmarshal(env.Data, &balance); err != nil {
			return nil, fmt.Errorf("ordapi: decode balance event failed: %w", err)
		}
		return BalanceEvent{
			Action:      env.Action,
			Balance:     balance,
			BlockHeight: env.BlockHeight,
			Timestamp:   env.Timestamp,
		}, nil
	case xpush.KindBlock:
		return BlockEvent{
			Height:    env.BlockHeight,
			Timestamp: env.Timestamp,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Type)
	}
}
