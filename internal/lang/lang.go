package lang

import (
	"fmt"
	"strings"
)

// indonesianWords 常见印尼语虚词与地名，命中任意一个即视为印尼语
var indonesianWords = map[string]struct{}{
	"dan": {}, "atau": {}, "yang": {}, "di": {}, "ini": {}, "itu": {}, "dengan": {},
	"untuk": {}, "dalam": {}, "tidak": {}, "pada": {}, "dari": {}, "jika": {}, "maka": {},
	"akan": {}, "oleh": {}, "saya": {}, "kamu": {}, "mereka": {}, "kami": {},
	"indonesia": {}, "jakarta": {}, "adalah": {}, "bisa": {}, "dapat": {}, "tahun": {},
	"menurut": {}, "tentang": {},
}

// IsIndonesian 按空白切词后精确匹配词表；不做词干化，也不做部分匹配
func IsIndonesian(text string) bool {
	if text == "" {
		return false
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, ok := indonesianWords[w]; ok {
			return true
		}
	}
	return false
}

// IsIndonesianValue 接受任意值，先转成字符串再判断；nil 直接返回 false
func IsIndonesianValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return IsIndonesian(t)
	case fmt.Stringer:
		return IsIndonesian(safeString(t))
	default:
		return IsIndonesian(fmt.Sprint(v))
	}
}

// safeString Stringer 实现可能 panic（例如 nil 指针接收者），此时按空串处理
func safeString(s fmt.Stringer) (out string) {
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()
	return s.String()
}
