package ordapi

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/omeyang/ordkit/internal/restcore"
)

// healthProbeAddress 余额探测用的公开地址（创世块 coinbase 地址）。
// 探测只关心端点可达，空余额列表也算健康。
const healthProbeAddress = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

// healthRegion 缓存自测专用区域，与业务区域隔离。
const healthRegion = "health"

// SearchResults 跨资源搜索的合并结果。部分资源失败时 Partial 为 true，
// 失败明细记录在 Errors 中，成功资源的结果照常返回。
type SearchResults struct {
	Query        string
	Etchings     []Etching
	Inscriptions []Inscription
	Balances     []TokenBalance
	Partial      bool
	Errors       map[string]error
}

// HealthCheck 逐项探测各子系统，返回子系统名到健康状态的映射。
// 键为 etchings、inscriptions、balances、channel、cache。
// 各项探测互相独立，单项失败不影响其余项。
func (c *Client) HealthCheck(ctx context.Context) map[string]bool {
	probes := map[string]func(context.Context) error{
		"etchings": func(ctx context.Context) error {
			_, err := c.ListEtchings(ctx, EtchingFilter{ListOptions: ListOptions{Limit: 1}})
			return err
		},
		"inscriptions": func(ctx context.Context) error {
			_, err := c.ListInscriptions(ctx, InscriptionFilter{ListOptions: ListOptions{Limit: 1}})
			return err
		},
		"balances": func(ctx context.Context) error {
			_, err := c.ListBalances(ctx, healthProbeAddress, ListOptions{Limit: 1})
			return err
		},
		"cache": func(context.Context) error {
			key := restcore.BuildKey("health", "probe")
			if err := c.cache.Set(healthRegion, key, true); err != nil {
				return err
			}
			_, hit, err := c.cache.Get(healthRegion, key)
			if err == nil && !hit {
				err = errors.New("ordapi: cache probe write not readable")
			}
			_, _ = c.cache.Delete(healthRegion, key) //nolint:errcheck // 探测残留无关紧要
			return err
		},
	}

	var mu sync.Mutex
	result := map[string]bool{
		"channel": c.push.Connected(),
	}

	var wg sync.WaitGroup
	for name, probe := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			healthy := runProbe(ctx, probe)
			mu.Lock()
			result[name] = healthy
			mu.Unlock()
		}()
	}
	wg.Wait()
	return result
}

// runProbe 执行单项探测，panic 按不健康处理。
func runProbe(ctx context.Context, probe func(context.Context) error) (healthy bool) {
	defer func() {
		if recover() != nil {
			healthy = false
		}
	}()
	return probe(ctx) == nil
}

// Search 在各类资源中并发搜索，合并结果。
// 单个资源失败不使整体失败，调用方通过 Partial 与 Errors 判断完整性。
//
// 蚀刻与铭文始终参与搜索；余额账本按地址建键，不支持关键词检索，
// 仅当关键词形似比特币地址时追加余额查询。
func (c *Client) Search(ctx context.Context, query string, opts ListOptions) (*SearchResults, error) {
	if query == "" {
		return nil, ErrEmptyName
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}

	results := &SearchResults{
		Query:  query,
		Errors: make(map[string]error),
	}
	withBalances := looksLikeAddress(query)

	var (
		wg              sync.WaitGroup
		etchingPage     *Paged[Etching]
		inscriptionPage *Paged[Inscription]
		balancePage     *Paged[TokenBalance]
		etchingErr      error
		inscriptionErr  error
		balanceErr      error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		etchingPage, etchingErr = c.ListEtchings(ctx, EtchingFilter{ListOptions: opts, Query: query})
	}()
	go func() {
		defer wg.Done()
		inscriptionPage, inscriptionErr = c.ListInscriptions(ctx, InscriptionFilter{ListOptions: opts, Query: query})
	}()
	if withBalances {
		wg.Add(1)
		go func() {
			defer wg.Done()
			balancePage, balanceErr = c.ListBalances(ctx, query, opts)
		}()
	}
	wg.Wait()

	failed := 0
	if etchingErr != nil {
		results.Errors["etchings"] = etchingErr
		failed++
	} else {
		results.Etchings = etchingPage.Results
	}
	if inscriptionErr != nil {
		results.Errors["inscriptions"] = inscriptionErr
		failed++
	} else {
		results.Inscriptions = inscriptionPage.Results
	}
	if withBalances {
		if balanceErr != nil {
			results.Errors["balances"] = balanceErr
			failed++
		} else {
			results.Balances = balancePage.Results
		}
	}
	results.Partial = failed > 0

	// 全部资源都失败时返回其中一个错误，避免调用方拿到空结果误判
	dispatched := 2
	if withBalances {
		dispatched = 3
	}
	if failed == dispatched {
		return nil, etchingErr
	}
	return results, nil
}

// looksLikeAddress 报告关键词是否形似比特币地址
// （bech32 的 bc1/tb1 前缀，或 26-35 位以 1/3 开头的 base58）。
func looksLikeAddress(query string) bool {
	lower := strings.ToLower(query)
	if strings.HasPrefix(lower, "bc1") || strings.HasPrefix(lower, "tb1") {
		return len(query) >= 14
	}
	return len(query) >= 26 && len(query) <= 35 && (query[0] == '1' || query[0] == '3')
}

// Trending 返回指定周期内的热门符文蚀刻，period 如 "24h"、"7d"。
func (c *Client) Trending(ctx context.Context, period string, opts ListOptions) (*Paged[Etching], error) {
	return c.ListEtchings(ctx, EtchingFilter{
		ListOptions: opts,
		Sort:        "trending",
		Period:      period,
	})
}
