package xregion

import (
	"container/list"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Strategy 淘汰策略标识。
type Strategy string

const (
	// StrategyLRU 淘汰最久未访问的 key（访问 = Get 或 Set）。
	StrategyLRU Strategy = "lru"

	// StrategyFIFO 淘汰 createdAt 最老的条目，不关心访问。
	StrategyFIFO Strategy = "fifo"
)

// evictionPolicy 维护区域内 key 的淘汰顺序。
// 所有方法在区域锁内调用；policy 只管理顺序，key→条目 映射由 Region 持有。
type evictionPolicy interface {
	// noteInsert 记录 key 写入。已存在的 key 被移动到"最新"位置
	//（LRU 的最近使用端 / FIFO 的队尾，对应 createdAt 刷新）。
	noteInsert(key string)

	// noteAccess 记录 key 读取。FIFO 忽略读取。
	noteAccess(key string)

	// remove 清除 key 的顺序记录（显式删除或过期删除时调用）。
	remove(key string)

	// evict 弹出并返回当前的淘汰候选。区域为空时返回 false。
	evict() (string, bool)

	// clear 清空全部顺序记录。
	clear()
}

// lruPolicy 基于 hashicorp simplelru 的访问顺序实现。
// 淘汰由 Region 显式触发，simplelru 自身的容量上限永远不会被触及。
type lruPolicy struct {
	order *simplelru.LRU[string, struct{}]
}

func newLRUPolicy(capacity int) *lruPolicy {
	// capacity 已在 Region 构造期校验为正数，NewLRU 不会返回错误
	order, _ := simplelru.NewLRU[string, struct{}](capacity, nil) //nolint:errcheck // capacity > 0 时不会失败
	return &lruPolicy{order: order}
}

func (p *lruPolicy) noteInsert(key string) { p.order.Add(key, struct{}{}) }

func (p *lruPolicy) noteAccess(key string) { p.order.Get(key) }

func (p *lruPolicy) remove(key string) { p.order.Remove(key) }

func (p *lruPolicy) evict() (string, bool) {
	key, _, ok := p.order.RemoveOldest()
	return key, ok
}

func (p *lruPolicy) clear() { p.order.Purge() }

// fifoPolicy 维护插入顺序队列，读取不改变顺序。
type fifoPolicy struct {
	queue    *list.List
	elements map[string]*list.Element
}

func newFIFOPolicy() *fifoPolicy {
	return &fifoPolicy{
		queue:    list.New(),
		elements: make(map[string]*list.Element),
	}
}

func (p *fifoPolicy) noteInsert(key string) {
	if elem, ok := p.elements[key]; ok {
		// 覆盖写刷新 createdAt，条目移动到队尾
		p.queue.MoveToBack(elem)
		return
	}
	p.elements[key] = p.queue.PushBack(key)
}

func (p *fifoPolicy) noteAccess(string) {}

func (p *fifoPolicy) remove(key string) {
	if elem, ok := p.elements[key]; ok {
		p.queue.Remove(elem)
		delete(p.elements, key)
	}
}

func (p *fifoPolicy) evict() (string, bool) {
	front := p.queue.Front()
	if front == nil {
		return "", false
	}
	key := front.Value.(string) //nolint:errcheck // 队列只存放 string key
	p.queue.Remove(front)
	delete(p.elements, key)
	return key, true
}

func (p *fifoPolicy) clear() {
	p.queue.Init()
	p.elements = make(map[string]*list.Element)
}

// newPolicy 按策略创建淘汰顺序实现。
func newPolicy(strategy Strategy, capacity int) (evictionPolicy, error) {
	switch strategy {
	case StrategyLRU:
		return newLRUPolicy(capacity), nil
	case StrategyFIFO:
		return newFIFOPolicy(), nil
	default:
		return nil, ErrInvalidStrategy
	}
}

// 编译期接口检查。
var (
	_ evictionPolicy = (*lruPolicy)(nil)
	_ evictionPolicy = (*fifoPolicy)(nil)
)
