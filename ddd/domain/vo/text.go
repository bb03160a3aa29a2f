package vo

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const ellipsis = "..."

// Truncate 按字符数截断，超长时以 "..." 结尾且总长不超过 limit
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}

// NormalizeText NFC 归一化，每行内连续空白压缩为一个空格，去掉首尾空行
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.FieldsFunc(line, unicode.IsSpace), " ")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

// SanitizeOverlay 叠加字幕文本：去掉 <>"'& 并限制 200 字符
func SanitizeOverlay(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'', '&':
			return -1
		}
		return r
	}, NormalizeText(s))
	runes := []rune(s)
	if len(runes) > 200 {
		runes = runes[:200]
	}
	return string(runes)
}
