package parser

import (
	"strings"

	"resume-rag-go/internal/types"
)

// 教育章节行扫描器的状态
type eduScanState int

const (
	eduStateScanning  eduScanState = iota // 尚未遇到学位行
	eduStateEntryOpen                     // 有一个在填充中的条目
)

// ExtractEducation 提取教育经历
// 先隔离教育章节（下一个全大写标题或文末为止），逐行扫描：学位行开启新
// 条目（已有未关闭条目则先发射），院校关键词行、日期区间、地点模式逐步
// 填充当前条目；章节结束时有学位或院校的条目也会发射。
// 章节扫描一无所获时退化为全文档学位模式兜底，发射只含学位的条目。
func ExtractEducation(text string) []types.EducationEntry {
	var entries []types.EducationEntry
	if section := educationSectionText(text); section != "" {
		entries = scanEducationSection(section)
	}
	if len(entries) == 0 {
		entries = fallbackDegreeScan(text)
	}
	return entries
}

// educationSectionText 取教育标题行之后、下一个全大写标题之前的文本
func educationSectionText(text string) string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if educationHeadingPattern.MatchString(line) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		if isAllCapsHeading(strings.TrimSpace(lines[i])) {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n")
}

// isAllCapsHeading 全大写且超过3个字符的行视为下一个章节标题
func isAllCapsHeading(line string) bool {
	if len(line) <= 3 {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

func scanEducationSection(section string) []types.EducationEntry {
	var entries []types.EducationEntry
	var current types.EducationEntry
	state := eduStateScanning

	emit := func() {
		for _, e := range entries {
			if e == current {
				return
			}
		}
		entries = append(entries, current)
	}

	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 {
			continue
		}

		if degree, ok := matchDegreeLine(line); ok {
			// 新学位开启新条目，先发射填充中的旧条目
			if state == eduStateEntryOpen && current != (types.EducationEntry{}) {
				emit()
				current = types.EducationEntry{}
			}
			current.Degree = degree
			state = eduStateEntryOpen
		}

		lowered := strings.ToLower(line)
		for _, keyword := range educationKeywords {
			if strings.Contains(lowered, keyword) {
				current.Institution = line
				state = eduStateEntryOpen
				break
			}
		}

		if d := dateRangePattern.FindString(line); d != "" {
			current.Dates = strings.TrimSpace(d)
		}

		for _, pattern := range educationLocationPatterns {
			if loc := pattern.FindString(line); loc != "" {
				current.Location = loc
				break
			}
		}
	}

	if current.Degree != "" || current.Institution != "" {
		emit()
	}
	return entries
}

// matchDegreeLine 依序匹配学位行模式，返回规整后的学位名
func matchDegreeLine(line string) (string, bool) {
	for _, pattern := range degreeLinePatterns {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if len(m) > 2 && m[2] != "" {
			return titleCase(strings.TrimSpace(m[1] + " " + m[2])), true
		}
		return titleCase(strings.TrimSpace(m[0])), true
	}
	return "", false
}

// fallbackDegreeScan 全文档学位模式兜底，只填学位字段
func fallbackDegreeScan(text string) []types.EducationEntry {
	var entries []types.EducationEntry
	for _, pattern := range degreeFallbackPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			candidate := m[0]
			if len(m) > 1 && m[1] != "" {
				candidate = m[1]
			}
			candidate = strings.TrimSpace(candidate)
			if len(candidate) > 3 {
				entries = append(entries, types.EducationEntry{Degree: candidate})
			}
		}
	}
	return entries
}
