package parser

import "regexp"

// PatternsVersion 模式表版本号，词表或正则调整时递增
const PatternsVersion = "2025.08"

// 公司名后缀词表（国际化），出现在行内即认为该行是公司行
var companySuffixes = []string{
	"Pty Ltd", "Ltd", "Inc", "LLC", "Corp", "Corporation",
	"GmbH", "AG", "SA", "S.A.", "BV", "AB", "AS",
	"Co.", "Company", "Group", "Holdings", "Ventures",
	"Technologies", "Systems", "Solutions", "Services",
}

// 职位标题词表，作为工作经历章节的切分点
// 长短语在前，避免被短词提前吞掉
var roleTitlePattern = regexp.MustCompile(`(?i)(programmer analyst|software engineer|devops engineer|data engineer|full[- ]stack developer|web developer|developer|engineer)`)

// 日期区间模式：MM/YYYY - MM/YYYY 或 MM/YYYY - Present
var dateRangePattern = regexp.MustCompile(`\d{1,2}/\d{4}\s*-\s*(?:\d{1,2}/\d{4}|Present)`)

// 学历关键词，出现在教育章节的行内即认为该行是院校行
var educationKeywords = []string{
	"university", "college", "institute", "school", "academy",
	"polytechnic", "state university", "community college",
}

// 学位行模式，按优先级排列
var degreeLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bachelor\s+of\s+([A-Za-z\s]+)`),
	regexp.MustCompile(`(?i)master\s+of\s+([A-Za-z\s]+)`),
	regexp.MustCompile(`(?i)(bachelor|master|phd|doctorate)\s+([A-Za-z\s]+)`),
	regexp.MustCompile(`(?i)\b(b\.?\s?(?:sc|a|e|s)|m\.?\s?(?:sc|a|e|s)|phd|ph\.?d\.?)\b`),
}

// 全文档学位兜底模式（教育章节缺失时使用）
var degreeFallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Bachelor(?:'s)?(?:\s+of\s+|\s+in\s+|\s+)([A-Z][^,\n.]+)`),
	regexp.MustCompile(`Master(?:'s)?(?:\s+of\s+|\s+in\s+|\s+)([A-Z][^,\n.]+)`),
	regexp.MustCompile(`PhD(?:\s+in\s+|\s+)([A-Z][^,\n.]+)`),
	regexp.MustCompile(`Doctor(?:ate)?(?:\s+of\s+|\s+in\s+|\s+)([A-Z][^,\n.]+)`),
	regexp.MustCompile(`Associate(?:\s+of\s+|\s+in\s+|\s+)([A-Z][^,\n.]+)`),
	regexp.MustCompile(`Diploma(?:\s+of\s+|\s+in\s+|\s+)([A-Z][^,\n.]+)`),
	regexp.MustCompile(`Certificate(?:\s+of\s+|\s+in\s+|\s+)([A-Z][^,\n.]+)`),
}

// 电话号码模式（国际化），国家码前缀的在前，通用分隔符模式兜底
var phonePatterns = []*regexp.Regexp{
	// 澳大利亚
	regexp.MustCompile(`\+61[0-9]{9}`),
	regexp.MustCompile(`\+61[-.\s][0-9][-.\s]?[0-9]{4}[-.\s]?[0-9]{4}`),
	// 美国/加拿大
	regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`),
	// 英国
	regexp.MustCompile(`\+?44[-.\s]?(?:\(?0\)?[-.\s]?)?[0-9]{2,5}[-.\s]?[0-9]{3,8}`),
	// 通用国际连续号码
	regexp.MustCompile(`\+[0-9]{10,15}`),
	// 通用分隔符模式
	regexp.MustCompile(`\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`),
	regexp.MustCompile(`[0-9]{2,4}[-.\s][0-9]{3,4}[-.\s][0-9]{4,8}`),
}

// RFC形状的邮箱模式
var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// 个人邮箱域名词表，命中加分
var personalEmailDomains = []string{
	"gmail", "yahoo", "hotmail", "outlook", "icloud",
	"protonmail", "me.com", "live.com",
}

// 行政/系统邮箱前缀词表，命中重罚
var adminEmailTokens = []string{
	"noreply", "admin", "info", "contact", "support", "help",
	"hr@", "jobs@", "careers@", "team@",
}

// 业务域名嫌疑词表，轻微扣分
var businessEmailTokens = []string{"company", "corp", "ltd"}

// 推荐人上下文词表，邮箱/电话出现在这些词附近时多半属于推荐人
var referenceContextWords = []string{"contact", "reference", "manager", "supervisor"}

// 推荐人电话上下文指示词（带冒号的标签和称谓）
var referencePhoneIndicators = []string{
	"contact:", "reference:", "manager:", "supervisor:",
	"dr.", "prof.", "mr.", "ms.", "mrs.",
}

// 个人电话标签词表，命中加分
var personalPhoneLabels = []string{"mobile:", "cell:", "phone:", "tel:"}

// 地点模式：已知地区全称/缩写在前，通用 City, Region 兜底
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z][a-z]+,\s*Queensland`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*New South Wales`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*Victoria`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*California`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*New York`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*QLD`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*NSW`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*VIC`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*ACT`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*[A-Z][a-z]+`),
}

// 真实地名词表，命中加分
var realLocationNames = []string{
	"brisbane", "sydney", "melbourne", "perth", "adelaide", "canberra",
	"queensland", "new south wales", "victoria", "qld", "nsw", "vic", "act",
	"new york", "california", "london", "toronto", "vancouver",
}

// 地点假阳性词表：云服务和编程术语碰巧匹配 City, Region 形状
var locationFalsePositives = []string{
	"lambda", "ec2", "api", "react", "python", "node", "gateway",
	"deploy", "code", "script", "elastic",
}

// 个人信息上下文词表，地点出现在附近时加分
var personalInfoContextWords = []string{"email", "phone", "address", "australia"}

// 姓名候选行需要排除的关键词（职位、联系方式等）
var nameSkipKeywords = []string{
	"software", "engineer", "developer", "manager", "analyst",
	"certified", "phone", "email", "@", "resume", "cv",
	"experience", "years", "skills", "objective", "summary",
}

// 技术技能词表（语言、框架、云服务、数据库、工具）
var technicalSkillVocabulary = []string{
	"Python", "JavaScript", "TypeScript", "Java", "C#", "C++", "Go", "Rust",
	"PHP", "Ruby", "Swift", "Kotlin", "Scala", "R", "MATLAB",
	"React", "Angular", "Vue", "Svelte", "Node.js", "Express", "Django",
	"Flask", "Spring", "Laravel", "Ruby on Rails", "ASP.NET",
	"AWS", "Lambda", "EC2", "S3", "DynamoDB", "CloudFormation", "CloudWatch",
	"API Gateway", "Elastic Beanstalk", "RDS", "VPC", "IAM", "CodePipeline",
	"CodeDeploy", "SES", "Azure", "GCP", "Google Cloud", "Kubernetes", "Docker",
	"Terraform", "Ansible", "Jenkins", "GitLab CI", "GitHub Actions",
	"MongoDB", "PostgreSQL", "MySQL", "SQLite", "Redis", "Elasticsearch",
	"Oracle", "SQL Server", "Cassandra", "Neo4j",
	"Git", "GitHub", "GitLab", "Jira", "Confluence", "Linux", "HTML", "CSS",
	"GraphQL", "REST", "API", "APIs", "JSON", "XML", "YAML",
}

// 技能假阳性词表：章节标题泄漏和歧义缩写
var skillFalsePositives = map[string]bool{
	"EXPERIENCE": true, "EDUCATION": true, "PROJECTS": true, "PERSONAL": true,
	"CERTIFICATIONS": true, "SKILLS": true, "INTERESTS": true, "WORK": true,
	"CONTACT": true, "REFERENCES": true, "SUMMARY": true,
	"ACT": true, "NFTs": true, "SPAs": true, "PWA": true,
}

// 技能章节标题模式
var skillsSectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)(?:technical\s+skills?|skills?|technologies)\s*:?\s*(.*?)(?:\n\s*[A-Z]{2,}|\n\s*$|$)`),
	regexp.MustCompile(`(?is)technologies\s*:?\s*(.*?)(?:\n\s*[A-Z]{2,}|\n\s*$|$)`),
}

// 教育章节标题模式
var educationHeadingPattern = regexp.MustCompile(`(?i)^\s*education\b`)

// 兴趣章节标题模式
var interestsHeadingPattern = regexp.MustCompile(`(?i)\binterests?\b\s*\n`)

// 认证章节之后可能出现的主章节标题，遇到即停止收集
var majorSectionHeadings = map[string]bool{
	"INTERESTS": true, "EDUCATION": true, "SKILLS": true,
	"EXPERIENCE": true, "PROJECTS": true,
}

// 推荐人行模式：称谓/职务前缀 + 两词大写姓名
var referenceIndicatorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(dr\.|prof\.|mr\.|ms\.|mrs\.)\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`),
	regexp.MustCompile(`(?i)(manager|supervisor|director|lead|head)\s*:?\s*([A-Z][a-z]+\s+[A-Z][a-z]+)`),
	regexp.MustCompile(`(?i)(contact)\s*:?\s*[^\n]*?([A-Z][a-z]+\s+[A-Z][a-z]+)`),
}

// 地点兜底模式，教育章节的行内使用
var educationLocationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z][a-z]+,\s*[A-Z]{2,3}`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*[A-Z][a-z]+`),
}
