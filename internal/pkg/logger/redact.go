package logger

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// RedactEmail keeps the first two characters of the local part and the
// domain: "john@example.com" logs as "jo***@example.com".
func RedactEmail(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}

// redactPIIValue masks the whole value of address-like keys (recipient
// emails, from addresses) and any address embedded in free text elsewhere.
func redactPIIValue(key, val string) string {
	k := strings.ToLower(key)
	if strings.Contains(k, "email") || strings.HasSuffix(k, "_address") {
		return RedactEmail(val)
	}
	return emailPattern.ReplaceAllStringFunc(val, RedactEmail)
}
