package parser

import "strings"

// PDF提取的文本常含连字(ligature)字形和长短横线，替换回普通字母对和连字符
// 认证章节扫描前必须做这一步，否则 "Certiﬁed" 匹配不上 "certified"
var ligatureReplacer = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"–", "-",
	"—", "-",
)

// NormalizeExtractedText 归一化上游文本提取产物中的PDF伪影
func NormalizeExtractedText(text string) string {
	return ligatureReplacer.Replace(text)
}
