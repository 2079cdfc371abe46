package parser

import (
	"strings"
	"unicode"

	"resume-rag-go/internal/types"
)

// 认证章节行扫描器的状态
type certScanState int

const (
	certStateOutside certScanState = iota // 还没遇到 CERTIFICATIONS 标题
	certStateInside                       // 在章节内收集行
)

// ExtractCertifications 提取认证列表
// 先归一化连字伪影，再定位 CERTIFICATIONS 标题行，收集到下一个主章节
// 标题为止的非缩进行。行内含 certified/certificate 且超过10字符的行开启
// 新认证；带括号的短行（日期子句）追加到当前认证；长的不匹配行关闭当前
// 认证且不追加。最终只保留含 "certified" 且超过10字符的条目。
func ExtractCertifications(text string) []string {
	text = NormalizeExtractedText(text)

	state := certStateOutside
	var certLines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch state {
		case certStateOutside:
			if strings.ToUpper(line) == "CERTIFICATIONS" {
				state = certStateInside
			}
		case certStateInside:
			if majorSectionHeadings[strings.ToUpper(line)] {
				state = certStateOutside
				break
			}
			if line != "" && !strings.HasPrefix(raw, " ") {
				certLines = append(certLines, line)
			}
		}
		if state == certStateOutside && len(certLines) > 0 {
			break
		}
	}

	var certifications []string
	current := ""
	appendCurrent := func() {
		for _, c := range certifications {
			if c == current {
				return
			}
		}
		certifications = append(certifications, current)
	}
	for _, line := range certLines {
		lowered := strings.ToLower(line)
		switch {
		case (strings.Contains(lowered, "certified") || strings.Contains(lowered, "certificate")) && len(line) > 10:
			if current != "" {
				appendCurrent()
			}
			current = line
		case strings.Contains(line, "(") && strings.Contains(line, ")"):
			if current != "" {
				current += " " + line
			}
		case len(line) > 20:
			// 长描述行：关闭当前认证，描述本身不追加
			if current != "" {
				appendCurrent()
				current = ""
			}
		}
	}
	if current != "" {
		appendCurrent()
	}

	var cleaned []string
	for _, cert := range certifications {
		cert = strings.Join(strings.Fields(cert), " ")
		if len(cert) > 10 && strings.Contains(strings.ToLower(cert), "certified") {
			cleaned = append(cleaned, cert)
		}
	}
	return cleaned
}

// ExtractInterests 提取兴趣爱好
// 定位兴趣标题行，收集其后的非空、非全大写行，遇到长全大写行（下一个
// 章节标题的启发式信号）或文末停止；条目标题化后按大小写不敏感去重。
func ExtractInterests(text string) []string {
	loc := interestsHeadingPattern.FindStringIndex(text)
	if loc == nil {
		return nil
	}

	var interests []string
	for _, line := range strings.Split(strings.TrimSpace(text[loc[1]:]), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) < 2 {
			continue
		}
		if isUpperString(line) && len(line) > 10 {
			break
		}
		lowered := strings.ToLower(line)
		if len(line) > 2 && !isUpperString(line) &&
			lowered != "interests" && lowered != "hobbies" && lowered != "personal" {
			interests = append(interests, titleCase(line))
		}
	}

	seen := make(map[string]bool, len(interests))
	var unique []string
	for _, interest := range interests {
		key := strings.ToLower(interest)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, interest)
		}
	}
	return unique
}

// isUpperString 含至少一个有大小写的字符，且这些字符全为大写
func isUpperString(s string) bool {
	hasCased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasCased = true
		}
	}
	return hasCased
}

// ExtractReferences 提取推荐人
// 逐行找称谓/职务前缀后跟两词大写姓名的模式，命中后在附近行窗口
// （前2行到后4行）里找邮箱和电话；只保留姓名加至少一个联系方式的条目，
// 按姓名去重。
func ExtractReferences(text string) []types.Reference {
	lines := strings.Split(text, "\n")

	var references []types.Reference
	for i, line := range lines {
		line = strings.TrimSpace(line)
		for _, pattern := range referenceIndicatorPatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			ref := types.Reference{Name: strings.TrimSpace(m[2])}

			// 附近行窗口里找联系方式
			start := i - 2
			if start < 0 {
				start = 0
			}
			end := i + 5
			if end > len(lines) {
				end = len(lines)
			}
			for j := start; j < end; j++ {
				if ref.Email == "" {
					if email := emailPattern.FindString(lines[j]); email != "" {
						ref.Email = email
					}
				}
				if ref.Phone == "" {
					for _, phonePattern := range phonePatterns[:3] {
						if phone := phonePattern.FindString(lines[j]); phone != "" {
							ref.Phone = strings.TrimSpace(phone)
							break
						}
					}
				}
			}

			if ref.Email != "" || ref.Phone != "" {
				references = append(references, ref)
			}
			break
		}
	}

	seen := make(map[string]bool, len(references))
	var unique []types.Reference
	for _, ref := range references {
		if !seen[ref.Name] {
			seen[ref.Name] = true
			unique = append(unique, ref)
		}
	}
	return unique
}
