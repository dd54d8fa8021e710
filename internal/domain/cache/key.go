package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// MaxKeyLength Normalize 输出的最大字符数
const MaxKeyLength = 500

// Normalize 将原始查询文本转为缓存 key：
// 小写、去首尾空白、连续空白折叠为单个空格、去掉非单词非空格字符、截断到 500 字符。
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Join(strings.Fields(s), " ")

	var sb strings.Builder
	sb.Grow(len(s))
	count := 0
	for _, r := range s {
		if r != ' ' && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if count == MaxKeyLength {
			break
		}
		sb.WriteRune(r)
		count++
	}
	return sb.String()
}

// CompositeKey 生成结构化请求的缓存 key = prefix + hash(prefix + canonical JSON)。
// map 字段由 encoding/json 按 key 排序，保证同一请求得到同一 key。
// 哈希碰撞视为可接受的误命中。
func CompositeKey(prefix string, request any) string {
	data, err := json.Marshal(request)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", request))
	}

	h := sha256.New()
	h.Write([]byte(prefix))
	h.Write([]byte{':'})
	h.Write(data)
	sum := h.Sum(nil)

	return prefix + ":" + fmt.Sprintf("%x", sum[:12])
}
