package processor

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// sourceAliases 域名片段到展示名，按顺序匹配，命中即覆盖之前的推断
var sourceAliases = []struct {
	key  string
	name string
}{
	{"kompas", "Kompas"},
	{"detik", "Detik"},
	{"tempo", "Tempo"},
	{"republika", "Republika"},
	{"liputan6", "Liputan 6"},
	{"tribunnews", "Tribun News"},
	{"cnbcindonesia", "CNBC Indonesia"},
	{"klikdokter", "Klik Dokter"},
}

const unknownSource = "Unknown"

// SourceName 推断订阅源条目的展示来源：
// 域名首段 -> 聚合站（News/Google）时改用条目来源字段或标题 " - 来源" 后缀 -> 别名表覆盖
func SourceName(link, title, explicit string) string {
	source := domainLabel(link)

	if source == "News" || source == "Google" {
		if s := strings.TrimSpace(explicit); s != "" {
			source = s
		} else if idx := strings.LastIndex(title, " - "); idx >= 0 {
			if s := strings.TrimSpace(title[idx+3:]); s != "" {
				source = s
			}
		}
	}

	lower := strings.ToLower(source)
	for _, a := range sourceAliases {
		if strings.Contains(lower, a.key) {
			return a.name
		}
	}
	if source == "" {
		return unknownSource
	}
	return source
}

// domainLabel 取主机名去掉 www. 后的第一段并首字母大写
func domainLabel(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return ""
	}
	label, _, _ := strings.Cut(host, ".")
	return capitalize(label)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
