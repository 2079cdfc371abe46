package parser

import (
	"regexp"
	"strings"
)

// ExtractEmail 提取最可能属于本人的邮箱地址
// 对每个RFC形状的匹配做带符号整数打分：命中姓名token、个人邮箱域名加分，
// 行政前缀、业务域名、推荐人上下文扣分。只要存在语法匹配就返回最高分者，
// 即使所有得分为负——这是有意保留的尽力而为行为，不是缺陷。
// name 是已经提取出的姓名（可为空），用于辅助识别个人邮箱。
func ExtractEmail(text string, name string) string {
	candidates := collectCandidates(text, []*regexp.Regexp{emailPattern})
	if len(candidates) == 0 {
		return ""
	}

	var nameTokens []string
	for _, part := range strings.Fields(strings.ToLower(name)) {
		if len(part) > 2 {
			nameTokens = append(nameTokens, part)
		}
	}

	rules := []ScoreRule{
		// 姓名token出现在@前的本地部分，强个人邮箱信号
		func(c Candidate, _ string) int {
			local := strings.ToLower(c.Text)
			if at := strings.Index(local, "@"); at >= 0 {
				local = local[:at]
			}
			score := 0
			for _, token := range nameTokens {
				if strings.Contains(local, token) {
					score += 10
				}
			}
			return score
		},
		// 个人邮箱服务商域名
		func(c Candidate, _ string) int {
			if containsAny(strings.ToLower(c.Text), personalEmailDomains) {
				return 5
			}
			return 0
		},
		// 行政/系统邮箱前缀
		func(c Candidate, _ string) int {
			if containsAny(strings.ToLower(c.Text), adminEmailTokens) {
				return -20
			}
			return 0
		},
		// 业务域名嫌疑
		func(c Candidate, _ string) int {
			if containsAny(strings.ToLower(c.Text), businessEmailTokens) {
				return -5
			}
			return 0
		},
		// 推荐人上下文：邮箱出现在 contact/reference/manager/supervisor 附近
		func(c Candidate, doc string) int {
			if containsAny(contextWindow(c, doc, 50), referenceContextWords) {
				return -15
			}
			return 0
		},
	}

	best, ok := selectBest(text, candidates, rules, false)
	if !ok {
		return ""
	}
	return best.Text
}

// ExtractPhone 提取最可能属于本人的电话号码
// 依序应用区域电话正则；归一化成"数字加前导加号"后长度不足10的匹配丢弃。
// 推荐人上下文扣分，个人电话标签加分，出现在文档前30%加分。
// 与邮箱一样：只要有合格候选就返回最高分者，分数全负也不放弃。
func ExtractPhone(text string) string {
	var candidates []Candidate
	for _, pattern := range phonePatterns {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			matched := text[loc[0]:loc[1]]
			if len(normalizePhone(matched)) < 10 {
				continue
			}
			candidates = append(candidates, Candidate{Text: matched, Offset: loc[0]})
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	rules := []ScoreRule{
		func(c Candidate, doc string) int {
			if containsAny(contextWindow(c, doc, 100), referencePhoneIndicators) {
				return -10
			}
			return 0
		},
		func(c Candidate, doc string) int {
			if containsAny(contextWindow(c, doc, 100), personalPhoneLabels) {
				return 5
			}
			return 0
		},
		// 个人联系方式通常在文档开头
		func(c Candidate, doc string) int {
			if c.Offset < len(doc)*3/10 {
				return 3
			}
			return 0
		},
	}

	best, ok := selectBest(text, candidates, rules, false)
	if !ok {
		return ""
	}
	return strings.TrimSpace(best.Text)
}

// normalizePhone 只保留数字和前导加号
func normalizePhone(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
