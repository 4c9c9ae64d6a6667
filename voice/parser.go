package voice

import (
	"fmt"
	"regexp"
	"strings"
)

// IntentCall 从 LLM 补全中解析出的一次函数调用
type IntentCall struct {
	Token  string            `json:"token"`
	Params map[string]string `json:"params"`
}

// <jarvis_4> 或 <jarvis_4>(product=7, name="a, b")
var callPattern = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9_]*)>`)

// ParseIntents 解析形如 <jarvis_N>(k=v, k2="v2") 的补全，可能包含多次调用。
//
// 值可以带单引号、双引号或不带引号；True/False 原样保留。
func ParseIntents(completion string) ([]IntentCall, error) {
	locs := callPattern.FindAllStringSubmatchIndex(completion, -1)
	if len(locs) == 0 {
		return nil, ErrNoIntent
	}

	calls := make([]IntentCall, 0, len(locs))
	for _, loc := range locs {
		call := IntentCall{
			Token:  completion[loc[0]:loc[1]],
			Params: make(map[string]string),
		}

		rest := strings.TrimLeft(completion[loc[1]:], " \t")
		if strings.HasPrefix(rest, "(") {
			body, ok := argumentList(rest)
			if !ok {
				return nil, fmt.Errorf("%w: unterminated argument list for %s", ErrNoIntent, call.Token)
			}
			if err := parseArguments(body, call.Params); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrNoIntent, call.Token, err)
			}
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// ParseIntent 返回第一次调用
func ParseIntent(completion string) (IntentCall, error) {
	calls, err := ParseIntents(completion)
	if err != nil {
		return IntentCall{}, err
	}
	return calls[0], nil
}

// argumentList 返回 "(...)" 中的内容，引号内的右括号不结束参数表
func argumentList(s string) (string, bool) {
	var quote rune
	for i, r := range s {
		if i == 0 {
			continue
		}
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ')':
			return s[1:i], true
		}
	}
	return "", false
}

func parseArguments(body string, dst map[string]string) error {
	for _, arg := range splitArguments(body) {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("argument %q has no value", arg)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("argument %q has no name", arg)
		}
		dst[key] = unquote(strings.TrimSpace(value))
	}
	return nil
}

func splitArguments(body string) []string {
	var (
		out   []string
		quote rune
		start int
	)
	for i, r := range body {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ',':
			out = append(out, body[start:i])
			start = i + 1
		}
	}
	return append(out, body[start:])
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
