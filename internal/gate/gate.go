// Package gate decides whether a question is in scope for the information
// security corpus. Off-topic questions get a fixed refusal instead of a model
// call. Matching is keyword-based; the lists mix Vietnamese and English terms
// because questions arrive in both.
package gate

import (
	"regexp"
	"strings"
)

// RefusalAnswer is the canned reply for out-of-scope questions.
const RefusalAnswer = "Xin lỗi, tôi chỉ hỗ trợ các câu hỏi liên quan đến An ninh An toàn thông tin."

// securityKeywords match as whole words, including two- and three-word grams.
var securityKeywords = map[string]struct{}{
	"bảo mật": {}, "an toàn thông tin": {}, "attt": {}, "cybersecurity": {}, "security": {},
	"bảo vệ thông tin": {}, "bảo vệ dữ liệu": {}, "data protection": {}, "information security": {},

	"tấn công mạng": {}, "cyber attack": {}, "hack": {}, "hacker": {}, "hacking": {},
	"tấn công": {}, "attack": {}, "exploit": {}, "vulnerability": {}, "lỗ hổng bảo mật": {},
	"malware": {}, "mã độc": {}, "virus": {}, "trojan": {}, "worm": {}, "spyware": {},
	"ransomware": {}, "phishing": {}, "social engineering": {}, "tấn công phi kỹ thuật": {},

	"mã hóa": {}, "encryption": {}, "decryption": {}, "cryptography": {}, "crypto": {},
	"hash": {}, "băm": {}, "digital signature": {}, "chữ ký số": {}, "certificate": {},
	"ssl": {}, "tls": {}, "https": {}, "vpn": {}, "firewall": {}, "tường lửa": {},

	"soc": {}, "security operations center": {}, "trung tâm điều hành an ninh": {},
	"siem": {}, "monitoring": {}, "giám sát": {}, "log analysis": {}, "phân tích log": {},
	"incident response": {}, "phản ứng sự cố": {}, "forensics": {}, "điều tra số": {},

	"pentest": {}, "penetration testing": {}, "kiểm thử xâm nhập": {},
	"vulnerability assessment": {}, "đánh giá lỗ hổng": {},
	"security audit": {}, "kiểm toán bảo mật": {}, "security testing": {},

	"iso 27001": {}, "pci dss": {}, "gdpr": {}, "hipaa": {}, "sox": {},
	"compliance": {}, "tuân thủ": {}, "tiêu chuẩn bảo mật": {},
	"security policy": {}, "chính sách bảo mật": {}, "security framework": {},

	"network security": {}, "bảo mật mạng": {}, "network monitoring": {},
	"intrusion detection": {}, "phát hiện xâm nhập": {}, "ids": {}, "ips": {},
	"ddos": {}, "denial of service": {}, "từ chối dịch vụ": {},

	"application security": {}, "bảo mật ứng dụng": {}, "web security": {},
	"owasp": {}, "sql injection": {}, "xss": {}, "csrf": {}, "buffer overflow": {},
	"secure coding": {}, "lập trình an toàn": {}, "code review": {},

	"iam": {}, "identity and access management": {}, "quản lý danh tính": {},
	"authentication": {}, "xác thực": {}, "authorization": {}, "phân quyền": {},
	"single sign on": {}, "sso": {}, "multi factor authentication": {}, "mfa": {},

	"cloud security": {}, "bảo mật đám mây": {}, "container security": {}, "bảo mật container": {},
	"mobile security": {}, "bảo mật di động": {}, "iot security": {}, "bảo mật iot": {},

	"risk management": {}, "quản lý rủi ro": {}, "security risk": {}, "rủi ro bảo mật": {},
	"threat modeling": {}, "mô hình hóa mối đe dọa": {}, "risk assessment": {},

	"security awareness": {}, "nhận thức bảo mật": {}, "security training": {},
	"đào tạo bảo mật": {}, "security education": {}, "giáo dục bảo mật": {},
}

// exclusionKeywords short-circuit a question out of scope before anything else.
var exclusionKeywords = []string{
	"thời tiết", "weather", "thể thao", "sport", "giải trí", "entertainment",
	"nấu ăn", "cooking", "du lịch", "travel", "mua sắm", "shopping",
	"y tế", "medical", "giáo dục", "education", "kinh tế", "economy",
	"chính trị", "politics", "văn hóa", "culture", "lịch sử", "history",
}

// securityPhrases match as substrings of the normalized question.
var securityPhrases = []string{
	"an toàn thông tin", "bảo mật thông tin", "cyber security",
	"tấn công mạng", "bảo vệ dữ liệu", "mã hóa dữ liệu",
	"phát hiện xâm nhập", "phản ứng sự cố", "kiểm thử bảo mật",
	"đánh giá rủi ro", "quản lý bảo mật", "chính sách bảo mật",
	"tuân thủ bảo mật", "giám sát bảo mật", "điều tra số",
	"phân tích mối đe dọa", "bảo mật ứng dụng", "bảo mật mạng",
	"bảo mật đám mây", "bảo mật di động", "bảo mật iot",
}

// contextPatterns catch security intent when no keyword matches directly,
// e.g. "làm thế nào bảo vệ ...".
var contextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(how to|how do|cách|làm thế nào)\s+(secure|protect|bảo mật|bảo vệ)`),
	regexp.MustCompile(`(what is|gì là|khái niệm)\s+(security|bảo mật|an toàn)`),
	regexp.MustCompile(`(why|tại sao)\s+(security|bảo mật|an toàn)`),
	regexp.MustCompile(`(security|bảo mật|an toàn)\s+(risk|rủi ro|threat|mối đe dọa)`),
	regexp.MustCompile(`(security|bảo mật|an toàn)\s+(policy|chính sách|framework)`),
	regexp.MustCompile(`(security|bảo mật|an toàn)\s+(audit|kiểm toán|assessment|đánh giá)`),
	regexp.MustCompile(`(security|bảo mật|an toàn)\s+(incident|sự cố|breach|vi phạm)`),
	regexp.MustCompile(`(security|bảo mật|an toàn)\s+(compliance|tuân thủ|standard|tiêu chuẩn)`),
}

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// normalize lowercases, replaces punctuation with spaces, and collapses runs
// of whitespace. Keeps Vietnamese letters intact.
func normalize(text string) string {
	text = strings.ToLower(text)
	text = punctRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// InScope reports whether the question relates to information security.
// Exclusion keywords win over everything; then phrases, then uni/bi/tri-gram
// keyword matches, then the intent patterns. Empty questions are out of scope.
func InScope(question string) bool {
	text := normalize(question)
	if text == "" {
		return false
	}
	for _, kw := range exclusionKeywords {
		if strings.Contains(text, kw) {
			return false
		}
	}
	for _, phrase := range securityPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	words := strings.Fields(text)
	for i := range words {
		if _, ok := securityKeywords[words[i]]; ok {
			return true
		}
		if i+1 < len(words) {
			if _, ok := securityKeywords[words[i]+" "+words[i+1]]; ok {
				return true
			}
		}
		if i+2 < len(words) {
			if _, ok := securityKeywords[words[i]+" "+words[i+1]+" "+words[i+2]]; ok {
				return true
			}
		}
	}
	for _, re := range contextPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// KeywordsFound returns the distinct security keywords and phrases present in
// the question, for diagnostics.
func KeywordsFound(question string) []string {
	text := normalize(question)
	if text == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var found []string
	add := func(kw string) {
		if _, dup := seen[kw]; !dup {
			seen[kw] = struct{}{}
			found = append(found, kw)
		}
	}
	words := strings.Fields(text)
	for i := range words {
		if _, ok := securityKeywords[words[i]]; ok {
			add(words[i])
		}
		if i+1 < len(words) {
			if gram := words[i] + " " + words[i+1]; contains(securityKeywords, gram) {
				add(gram)
			}
		}
		if i+2 < len(words) {
			if gram := words[i] + " " + words[i+1] + " " + words[i+2]; contains(securityKeywords, gram) {
				add(gram)
			}
		}
	}
	for _, phrase := range securityPhrases {
		if strings.Contains(text, phrase) {
			add(phrase)
		}
	}
	return found
}

func contains(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
