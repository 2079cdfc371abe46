package parser

import (
	"strings"
	"unicode"

	"resume-rag-go/internal/constants"
	"resume-rag-go/internal/types"
)

// ExtractCompanies 从工作经历提取公司记录
// 以职位标题词为切分点把文本分成若干候选工作段；段内找第一个含公司后缀
// 的行作为公司行，再向下看至多两行找日期区间。紧邻找到日期置信度15，
// 否则10。最后按名称包含关系去重。
func ExtractCompanies(text string) []types.CompanyRecord {
	matches := roleTitlePattern.FindAllStringIndex(text, -1)

	var records []types.CompanyRecord
	for i, m := range matches {
		title := strings.TrimSpace(text[m[0]:m[1]])
		sectionEnd := len(text)
		if i+1 < len(matches) {
			sectionEnd = matches[i+1][0]
		}
		section := text[m[1]:sectionEnd]

		companyLine, dateLine := findCompanyLine(section)
		if companyLine == "" {
			continue
		}

		position := constants.DefaultPosition
		if title != "" {
			position = titleCase(title)
		}
		dates := constants.DateNotSpecified
		confidence := 10
		if dateLine != "" {
			dates = dateLine
			confidence = 15
		}

		records = append(records, types.CompanyRecord{
			Name:       companyLine,
			Position:   position,
			Dates:      dates,
			Confidence: confidence,
		})
	}

	return dedupeCompanies(records)
}

// findCompanyLine 段内找第一个公司行，并在其后至多两行内找日期区间
func findCompanyLine(section string) (companyLine, dateLine string) {
	lines := strings.Split(section, "\n")
	for j, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !lineHasCompanySuffix(line) {
			continue
		}
		companyLine = line
		for k := j + 1; k < len(lines) && k <= j+2; k++ {
			if d := dateRangePattern.FindString(lines[k]); d != "" {
				dateLine = strings.TrimSpace(d)
				break
			}
		}
		return companyLine, dateLine
	}
	return "", ""
}

func lineHasCompanySuffix(line string) bool {
	for _, suffix := range companySuffixes {
		if strings.Contains(line, suffix) {
			return true
		}
	}
	return false
}

// dedupeCompanies 按子串包含关系去重
// 新记录的名称与已保留记录互为子串时视为同一家公司：新记录名称更长、
// 或新记录有日期而已保留的没有，则替换；否则丢弃新记录
func dedupeCompanies(records []types.CompanyRecord) []types.CompanyRecord {
	var kept []types.CompanyRecord
	for _, rec := range records {
		recLower := strings.ToLower(rec.Name)
		dupIdx := -1
		for i := range kept {
			keptLower := strings.ToLower(kept[i].Name)
			if strings.Contains(recLower, keptLower) || strings.Contains(keptLower, recLower) {
				dupIdx = i
				break
			}
		}
		if dupIdx < 0 {
			kept = append(kept, rec)
			continue
		}
		existing := kept[dupIdx]
		if len(rec.Name) > len(existing.Name) ||
			(rec.Dates != constants.DateNotSpecified && existing.Dates == constants.DateNotSpecified) {
			kept[dupIdx] = rec
		}
	}
	return kept
}

// titleCase 把每个单词首字母大写、其余小写（Python str.title 的等价物）
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		if len(runes) > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
