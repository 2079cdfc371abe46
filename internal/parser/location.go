package parser

import "strings"

// ExtractLocation 提取最可能的居住地
// 匹配 "City, Region" 形状：已知地名加分，云服务/编程术语形状巧合重罚，
// 个人信息上下文加分。与邮箱/电话不同，这里要求最高分严格为正才返回，
// 否则宁可为空也不冒险返回 "Lambda, Functions" 这类假地名。
func ExtractLocation(text string) string {
	candidates := collectCandidates(text, locationPatterns)
	if len(candidates) == 0 {
		return ""
	}

	rules := []ScoreRule{
		func(c Candidate, _ string) int {
			if containsAny(strings.ToLower(c.Text), realLocationNames) {
				return 10
			}
			return 0
		},
		func(c Candidate, _ string) int {
			if containsAny(strings.ToLower(c.Text), locationFalsePositives) {
				return -20
			}
			return 0
		},
		func(c Candidate, doc string) int {
			if containsAny(contextWindow(c, doc, 50), personalInfoContextWords) {
				return 5
			}
			return 0
		},
	}

	best, ok := selectBest(text, candidates, rules, true)
	if !ok {
		return ""
	}
	return best.Text
}
