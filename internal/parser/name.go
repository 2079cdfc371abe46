package parser

import (
	"context"
	"strings"
	"unicode"
)

// ExtractName 从文本开头提取候选姓名
// 策略一：前10个非空行中，第一个不含简历关键词、且由2-4个首字母大写单词
// 组成的行（忽略非字母token）。策略二：对前5行跑命名实体识别，取第一个
// ≥2个词的PERSON实体。recognizer 为 nil 或失败时视为未识别到实体。
// 两种策略都失败返回空字符串。
func ExtractName(ctx context.Context, text string, recognizer EntityRecognizer) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	limit := len(lines)
	if limit > 10 {
		limit = 10
	}
	for _, line := range lines[:limit] {
		if containsAny(strings.ToLower(line), nameSkipKeywords) {
			continue
		}
		if looksLikeName(line) {
			return strings.Join(strings.Fields(line), " ")
		}
	}

	if recognizer != nil {
		nerLimit := len(lines)
		if nerLimit > 5 {
			nerLimit = 5
		}
		head := strings.Join(lines[:nerLimit], " ")
		entities, err := recognizer.Recognize(ctx, head)
		if err == nil {
			for _, ent := range entities {
				if ent.Label == EntityLabelPerson && len(strings.Fields(ent.Text)) >= 2 {
					return ent.Text
				}
			}
		}
		// 识别失败等同于没有实体，解析继续
	}

	return ""
}

// looksLikeName 判断一行是否像姓名：2-4个单词，纯字母token都以大写开头
func looksLikeName(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, word := range words {
		if !isAlphabetic(word) {
			continue
		}
		runes := []rune(word)
		if !unicode.IsUpper(runes[0]) {
			return false
		}
	}
	return true
}

func isAlphabetic(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
