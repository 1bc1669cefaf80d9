package restcore

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// maxParamsToken 参数串的最大明文长度。
// 超过此长度时改用 xxhash 指纹，避免超长查询参数产生超长缓存 key。
const maxParamsToken = 64

// BuildKey 按 "part:part:..." 拼接缓存 key。空片段被跳过。
func BuildKey(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}

// ParamsToken 把查询参数编码为稳定的 key 片段。
// url.Values.Encode 按 key 排序，保证同一组参数产生同一 token。
// 超过 maxParamsToken 字节的参数串压缩为 "h:<xxhash>" 指纹。
func ParamsToken(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	encoded := params.Encode()
	if len(encoded) <= maxParamsToken {
		return encoded
	}
	return fmt.Sprintf("h:%016x", xxhash.Sum64String(encoded))
}
