package signing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BuildPolyHmacSignature 构建 Polymarket CLOB HMAC 签名
//
// 消息为 timestamp + method + requestPath + body，body 为 nil 时不拼接。
func BuildPolyHmacSignature(
	secret string,
	timestamp int64,
	method string,
	requestPath string,
	body *string,
) (string, error) {
	message := strconv.FormatInt(timestamp, 10) + method + requestPath
	if body != nil {
		message += *body
	}

	keyData, err := decodeSecret(secret)
	if err != nil {
		return "", fmt.Errorf("解码 secret 失败: %w", err)
	}

	mac := hmac.New(sha256.New, keyData)
	mac.Write([]byte(message))

	// URL 安全的 base64，保留 = 后缀
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// decodeSecret 兼容 base64url 和标准 base64，忽略非 base64 字符
func decodeSecret(secret string) ([]byte, error) {
	sanitized := strings.ReplaceAll(secret, "-", "+")
	sanitized = strings.ReplaceAll(sanitized, "_", "/")
	sanitized = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') || r == '+' || r == '/' || r == '=' {
			return r
		}
		return -1
	}, sanitized)
	if sanitized == "" {
		return nil, fmt.Errorf("secret 为空")
	}
	return base64.StdEncoding.DecodeString(sanitized)
}

// CanonicalBody 把请求体序列化为签名和发送共用的字符串
//
// string/[]byte 原样使用；其他值按 JSON 序列化（结构体字段顺序、map 键排序），
// 不转义 HTML 字符，不带结尾换行。nil 返回 nil。
func CanonicalBody(body any) (*string, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return &b, nil
	case *string:
		return b, nil
	case []byte:
		s := string(b)
		return &s, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}
	s := strings.TrimSuffix(buf.String(), "\n")
	return &s, nil
}
