package ordapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/omeyang/ordkit/internal/restcore"
)

const (
	// maxResponseSize 最大响应体大小（10MB），防止异常响应导致内存溢出。
	maxResponseSize = 10 * 1024 * 1024

	// apiKeyHeader 静态凭证头。
	apiKeyHeader = "X-API-Key"
)

// restClient 面向上游提供方的最小 HTTP 客户端。
// 只负责单次请求与响应归一化，限流与重试由上层执行器处理。
type restClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func newRESTClient(baseURL, apiKey string, timeout time.Duration, custom *http.Client) *restClient {
	client := custom
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: timeout,
		}
	}
	return &restClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// get 发送 GET 请求并把响应解码到 out。
// 错误响应体形如 {error, message, statusCode, details?}，归一化为 *restcore.APIError。
func (c *restClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("ordapi: create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return restcore.Normalize(err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // Close 错误无法传播

	// 多读 1 字节用于检测截断
	lr := &io.LimitedReader{R: resp.Body, N: maxResponseSize + 1}
	body, err := io.ReadAll(lr)
	if err != nil {
		return restcore.Normalize(err)
	}
	if len(body) > maxResponseSize {
		return fmt.Errorf("ordapi: response exceeds %d bytes", maxResponseSize)
	}

	if resp.StatusCode >= 400 {
		return restcore.FromResponse(resp.StatusCode, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("ordapi: unmarshal response failed: %w", err)
		}
	}
	return nil
}
