package parser

import (
	"regexp"
	"strings"
)

// 每个技能预编译的整词匹配正则
// "C++"、"C#" 这类以非单词字符结尾的技能不能直接套 \b，按首尾字符决定边界
var skillMatchPatterns = buildSkillPatterns()

func buildSkillPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(technicalSkillVocabulary))
	for _, skill := range technicalSkillVocabulary {
		lowered := strings.ToLower(skill)
		expr := regexp.QuoteMeta(lowered)
		if isWordRune(rune(lowered[0])) {
			expr = `\b` + expr
		}
		if isWordRune(rune(lowered[len(lowered)-1])) {
			expr += `\b`
		}
		patterns[skill] = regexp.MustCompile(expr)
	}
	return patterns
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// ExtractSkills 从固定技术词表提取文中出现的技能
// 优先定位技能/技术章节并只在其中搜索，找不到章节则搜整个文档。
// 命中后先减掉假阳性词表，再丢弃全大写、纯字母且超过4个字符的残留
// （章节标题泄漏的启发式），保留AWS、GCP这类合法短缩写。
// 返回顺序与词表声明顺序一致，保证结果确定。
func ExtractSkills(text string) []string {
	var sectionText strings.Builder
	for _, pattern := range skillsSectionPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			sectionText.WriteString(" ")
			sectionText.WriteString(m[1])
		}
	}

	searchText := strings.ToLower(text)
	if strings.TrimSpace(sectionText.String()) != "" {
		searchText = strings.ToLower(sectionText.String())
	}

	var skills []string
	for _, skill := range technicalSkillVocabulary {
		if skillFalsePositives[skill] {
			continue
		}
		if isUppercaseLeak(skill) {
			continue
		}
		if skillMatchPatterns[skill].MatchString(searchText) {
			skills = append(skills, skill)
		}
	}
	return skills
}

// isUppercaseLeak 全大写、纯字母、长度大于4的token多半是章节标题泄漏
func isUppercaseLeak(s string) bool {
	if len(s) <= 4 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
