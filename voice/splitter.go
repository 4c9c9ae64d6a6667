package voice

import (
	"strings"
	"unicode"
)

func isSentenceDelimiter(r rune) bool {
	switch r {
	case '.', '!', '?', '~', '…':
		return true
	}
	return false
}

// SplitSentences 按 . ! ? ~ … 切句。
//
// 分隔符只有位于末尾或后跟空白时才结束句子，因此 "3.5" 与 "A.B"
// 保持完整。结果已去除首尾空白并丢弃空句。
func SplitSentences(text string) []string {
	runes := []rune(text)
	var (
		out   []string
		start int
	)
	for i, r := range runes {
		if !isSentenceDelimiter(r) {
			continue
		}
		if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}
