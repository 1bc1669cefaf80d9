package ordapi

import (
	"context"
	"net/url"
	"strconv"

	"github.com/omeyang/ordkit/internal/restcore"
	"github.com/omeyang/ordkit/pkg/config/xconf"
)

// GetInscription 按 ID 获取单个铭文。ID 为空返回 ErrEmptyName，
// 不存在返回 ErrNotFound。
func (c *Client) GetInscription(ctx context.Context, id string) (*Inscription, error) {
	if id == "" {
		return nil, ErrEmptyName
	}
	key := restcore.BuildKey("inscriptions", "get", id)
	return fetchCached(ctx, c, xconf.RegionInscriptions, key, func(ctx context.Context) (*Inscription, error) {
		var out Inscription
		if err := c.rest.get(ctx, "/inscriptions/"+url.PathEscape(id), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// ListInscriptions 分页列出铭文，支持内容匹配、地址与 MIME 类型过滤。
func (c *Client) ListInscriptions(ctx context.Context, filter InscriptionFilter) (*Paged[Inscription], error) {
	opts := filter.normalize()
	params := url.Values{}
	params.Set("limit", strconv.Itoa(opts.Limit))
	params.Set("offset", strconv.Itoa(opts.Offset))
	if filter.Query != "" {
		params.Set("q", filter.Query)
	}
	if filter.Address != "" {
		params.Set("address", filter.Address)
	}
	if filter.ContentType != "" {
		params.Set("content_type", filter.ContentType)
	}

	key := restcore.BuildKey("inscriptions", "list", restcore.ParamsToken(params))
	return fetchCached(ctx, c, xconf.RegionInscriptions, key, func(ctx context.Context) (*Paged[Inscription], error) {
		var out Paged[Inscription]
		if err := c.rest.get(ctx, "/inscriptions", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// InscriptionTransfers 分页列出铭文的转移记录。
func (c *Client) InscriptionTransfers(ctx context.Context, id string, opts ListOptions) (*Paged[InscriptionTransfer], error) {
	if id == "" {
		return nil, ErrEmptyName
	}
	normalized := opts.normalize()
	params := url.Values{}
	params.Set("limit", strconv.Itoa(normalized.Limit))
	params.Set("offset", strconv.Itoa(normalized.Offset))

	key := restcore.BuildKey("inscriptions", "transfers", id, restcore.ParamsToken(params))
	return fetchCached(ctx, c, xconf.RegionActivity, key, func(ctx context.Context) (*Paged[InscriptionTransfer], error) {
		var out Paged[InscriptionTransfer]
		if err := c.rest.get(ctx, "/inscriptions/"+url.PathEscape(id)+"/transfers", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}
