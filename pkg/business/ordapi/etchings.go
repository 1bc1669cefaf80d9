package ordapi

import (
	"context"
	"net/url"
	"strconv"

	"github.com/omeyang/ordkit/internal/restcore"
	"github.com/omeyang/ordkit/pkg/config/xconf"
)

// GetEtching 按名称获取单个符文蚀刻。名称为空返回 ErrEmptyName，
// 不存在返回 ErrNotFound。
func (c *Client) GetEtching(ctx context.Context, name string) (*Etching, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	key := restcore.BuildKey("etchings", "get", name)
	return fetchCached(ctx, c, xconf.RegionEtchings, key, func(ctx context.Context) (*Etching, error) {
		var out Etching
		if err := c.rest.get(ctx, "/runes/etchings/"+url.PathEscape(name), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// ListEtchings 分页列出符文蚀刻，支持名称模糊匹配、排序与热门周期。
func (c *Client) ListEtchings(ctx context.Context, filter EtchingFilter) (*Paged[Etching], error) {
	opts := filter.normalize()
	params := url.Values{}
	params.Set("limit", strconv.Itoa(opts.Limit))
	params.Set("offset", strconv.Itoa(opts.Offset))
	if filter.Query != "" {
		params.Set("q", filter.Query)
	}
	if filter.Sort != "" {
		params.Set("sort", filter.Sort)
	}
	if filter.Period != "" {
		params.Set("period", filter.Period)
	}

	key := restcore.BuildKey("etchings", "list", restcore.ParamsToken(params))
	return fetchCached(ctx, c, xconf.RegionEtchings, key, func(ctx context.Context) (*Paged[Etching], error) {
		var out Paged[Etching]
		if err := c.rest.get(ctx, "/runes/etchings", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// EtchingActivity 分页列出指定符文的链上动作（铸造、转移、销毁）。
// 动作数据高频变动，所在缓存区域的 TTL 很短。
func (c *Client) EtchingActivity(ctx context.Context, name string, opts ListOptions) (*Paged[RuneActivity], error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	normalized := opts.normalize()
	params := url.Values{}
	params.Set("limit", strconv.Itoa(normalized.Limit))
	params.Set("offset", strconv.Itoa(normalized.Offset))

	key := restcore.BuildKey("etchings", "activity", name, restcore.ParamsToken(params))
	return fetchCached(ctx, c, xconf.RegionActivity, key, func(ctx context.Context) (*Paged[RuneActivity], error) {
		var out Paged[RuneActivity]
		if err := c.rest.get(ctx, "/runes/etchings/"+url.PathEscape(name)+"/activity", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}
