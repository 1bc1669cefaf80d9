package ordapi

import (
	"context"
	"net/url"
	"strconv"

	"github.com/omeyang/ordkit/internal/restcore"
	"github.com/omeyang/ordkit/pkg/config/xconf"
)

// ListBalances 分页列出地址持有的符文余额。地址为空返回 ErrEmptyName。
// 余额属于高频变动数据，所在缓存区域的 TTL 较短。
func (c *Client) ListBalances(ctx context.Context, address string, opts ListOptions) (*Paged[TokenBalance], error) {
	if address == "" {
		return nil, ErrEmptyName
	}
	normalized := opts.normalize()
	params := url.Values{}
	params.Set("limit", strconv.Itoa(normalized.Limit))
	params.Set("offset", strconv.Itoa(normalized.Offset))

	key := restcore.BuildKey("balances", "list", address, restcore.ParamsToken(params))
	return fetchCached(ctx, c, xconf.RegionBalances, key, func(ctx context.Context) (*Paged[TokenBalance], error) {
		var out Paged[TokenBalance]
		if err := c.rest.get(ctx, "/addresses/"+url.PathEscape(address)+"/runes", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// AddressActivity 分页列出地址相关的符文链上动作。
func (c *Client) AddressActivity(ctx context.Context, address string, opts ListOptions) (*Paged[RuneActivity], error) {
	if address == "" {
		return nil, ErrEmptyName
	}
	normalized := opts.normalize()
	params := url.Values{}
	params.Set("limit", strconv.Itoa(normalized.Limit))
	params.Set("offset", strconv.Itoa(normalized.Offset))

	key := restcore.BuildKey("balances", "activity", address, restcore.ParamsToken(params))
	return fetchCached(ctx, c, xconf.RegionActivity, key, func(ctx context.Context) (*Paged[RuneActivity], error) {
		var out Paged[RuneActivity]
		if err := c.rest.get(ctx, "/addresses/"+url.PathEscape(address)+"/activity", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// InvalidateBalances 使指定地址的全部余额缓存失效，返回删除的条目数。
// 收到余额变动推送后调用，避免读到过期余额。
func (c *Client) InvalidateBalances(address string) (int, error) {
	if address == "" {
		return 0, ErrEmptyName
	}
	pattern := restcore.BuildKey("balances", "list", address) + ":*"
	return c.cache.InvalidateMatching(xconf.RegionBalances, pattern)
}
