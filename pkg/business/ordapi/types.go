package ordapi

import "github.com/omeyang/ordkit/internal/restcore"

// Etching 符文蚀刻。
type Etching struct {
	Name         string `json:"name"`
	SpacedName   string `json:"spaced_name"`
	Number       int64  `json:"number"`
	Symbol       string `json:"symbol"`
	Supply       string `json:"supply"`
	Divisibility int    `json:"divisibility"`
	Mints        int64  `json:"mints"`
	Holders      int64  `json:"holders"`
	BlockHeight  int64  `json:"block_height"`
	Timestamp    int64  `json:"timestamp"`
}

// Inscription 铭文。
type Inscription struct {
	ID            string `json:"id"`
	Number        int64  `json:"number"`
	Address       string `json:"address"`
	ContentType   string `json:"content_type"`
	ContentLength int64  `json:"content_length"`
	GenesisHeight int64  `json:"genesis_height"`
	Timestamp     int64  `json:"timestamp"`
}

// TokenBalance 地址持有的单个符文余额。余额以十进制字符串表示，
// 精度由 Divisibility 决定，不做浮点转换。
type TokenBalance struct {
	Address      string `json:"address"`
	Rune         string `json:"rune"`
	Symbol       string `json:"symbol"`
	Balance      string `json:"balance"`
	Divisibility int    `json:"divisibility"`
}

// RuneActivity 符文相关的一次链上动作（铸造、转移、销毁）。
// 金额以十进制字符串表示，同 [TokenBalance.Balance]。
type RuneActivity struct {
	TxID        string `json:"txid"`
	Action      string `json:"action"`
	Address     string `json:"address"`
	Rune        string `json:"rune"`
	Amount      string `json:"amount"`
	BlockHeight int64  `json:"block_height"`
	Timestamp   int64  `json:"timestamp"`
}

// InscriptionTransfer 铭文的一次转移记录。
type InscriptionTransfer struct {
	TxID        string `json:"txid"`
	From        string `json:"from"`
	To          string `json:"to"`
	BlockHeight int64  `json:"block_height"`
	Timestamp   int64  `json:"timestamp"`
}

// Paged 分页响应。
type Paged[T any] struct {
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Total   int64 `json:"total"`
	Results []T   `json:"results"`
}

// ListOptions 通用分页参数。Limit 约束到 [1,100]（缺省 20），Offset 约束到 >= 0。
type ListOptions struct {
	Limit  int
	Offset int
}

// normalize 返回约束后的分页参数。
func (o ListOptions) normalize() ListOptions {
	return ListOptions{
		Limit:  restcore.ClampLimit(o.Limit),
		Offset: restcore.ClampOffset(o.Offset),
	}
}

// EtchingFilter 蚀刻列表的过滤参数。
type EtchingFilter struct {
	ListOptions

	// Query 按名称模糊匹配。
	Query string

	// Sort 排序方式，如 "newest"、"oldest"、"trending"。
	Sort string

	// Period 配合 Sort=trending 的统计周期，如 "24h"、"7d"。
	Period string
}

// InscriptionFilter 铭文列表的过滤参数。
type InscriptionFilter struct {
	ListOptions

	// Query 按铭文内容或编号模糊匹配。
	Query string

	// Address 按持有地址过滤。
	Address string

	// ContentType 按内容 MIME 类型过滤。
	ContentType string
}
