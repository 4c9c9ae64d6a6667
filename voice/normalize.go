package voice

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
)

type phraseRule struct {
	re   *regexp.Regexp
	repl string
}

func rules(canonical string, aliases ...string) []phraseRule {
	out := make([]phraseRule, 0, len(aliases))
	for _, a := range aliases {
		out = append(out, phraseRule{re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(a)), repl: canonical})
	}
	return out
}

// 顺序即替换顺序
var phraseRules = concatRules(
	rules("A구역", "에이 구역", "에이구역", "a구역", "a 구역"),
	rules("B구역", "비 구역", "비구역", "b구역", "b 구역"),
	rules("냉장고1", "첫번째 냉장고", "첫 번째 냉장고", "1번 냉장고", "일번 냉장고", "냉장고 1번", "냉장고1번"),
	// "이번 냉장고" 是 "2번" 的常见误识别
	rules("냉장고2", "두번째 냉장고", "두 번째 냉장고", "2번 냉장고", "이번 냉장고", "냉장고 2번", "냉장고2번"),
)

func concatRules(groups ...[]phraseRule) []phraseRule {
	var out []phraseRule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// PreprocessQuery 去掉转写结果的尾部空白，再依次去掉一个结尾的 "." 和 "?"
func PreprocessQuery(raw string) string {
	s := strings.TrimRightFunc(raw, unicode.IsSpace)
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSuffix(s, "?")
}

// NormalizeQuery 把口语化的区域、冰箱说法折叠为规范写法（不区分大小写）
func NormalizeQuery(s string) string {
	for _, r := range phraseRules {
		s = r.re.ReplaceAllLiteralString(s, r.repl)
	}
	return s
}

// BuildPrompt 用查询填充模板；模板为空时使用默认模板
func BuildPrompt(template, query string) string {
	if template == "" {
		template = config.DefaultPromptTemplate
	}
	return strings.ReplaceAll(template, "{query}", query)
}
