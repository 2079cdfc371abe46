package parser

import (
	"regexp"
	"strings"
)

// Candidate 单个字段提取过程中的临时候选值
// 只在消歧期间存在，从不持久化
type Candidate struct {
	Text   string // 匹配到的原始子串
	Offset int    // 在原文中的字符偏移
	Score  int    // 累计得分
}

// ScoreRule 对单个候选打分的规则
// 必须是全函数：任何输入都返回一个可比较的整数，从不panic
type ScoreRule func(c Candidate, doc string) int

// collectCandidates 用一组正则在文档中找出所有候选（按出现顺序）
func collectCandidates(doc string, patterns []*regexp.Regexp) []Candidate {
	var candidates []Candidate
	for _, pattern := range patterns {
		for _, loc := range pattern.FindAllStringIndex(doc, -1) {
			candidates = append(candidates, Candidate{
				Text:   doc[loc[0]:loc[1]],
				Offset: loc[0],
			})
		}
	}
	return candidates
}

// selectBest 对候选逐一应用规则求和，返回得分最高者
// 平分时取偏移更早者。requirePositive 为真时要求最高分严格为正，
// 否则只要存在候选就返回最高分者（即使全为负，显式的尽力而为行为）
func selectBest(doc string, candidates []Candidate, rules []ScoreRule, requirePositive bool) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	best := -1
	for i := range candidates {
		for _, rule := range rules {
			candidates[i].Score += rule(candidates[i], doc)
		}
		if best < 0 ||
			candidates[i].Score > candidates[best].Score ||
			(candidates[i].Score == candidates[best].Score && candidates[i].Offset < candidates[best].Offset) {
			best = i
		}
	}

	if requirePositive && candidates[best].Score <= 0 {
		return Candidate{}, false
	}
	return candidates[best], true
}

// contextWindow 返回候选前后各 radius 个字符的小写上下文窗口
func contextWindow(c Candidate, doc string, radius int) string {
	start := c.Offset - radius
	if start < 0 {
		start = 0
	}
	end := c.Offset + len(c.Text) + radius
	if end > len(doc) {
		end = len(doc)
	}
	return strings.ToLower(doc[start:end])
}

// containsAny 判断 s（调用方负责小写化）是否包含词表中任意一项
func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
