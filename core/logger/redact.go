package logger

import "strings"

// maskedKeys lists attributes that identify a payee. Their values are
// masked before a line is formatted.
var maskedKeys = map[string]func(string) string{
	"upi_id":     maskUPI,
	"payee_name": maskName,
	"name":       maskName,
}

func redact(key string, val any) any {
	mask, ok := maskedKeys[key]
	if !ok {
		return val
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return val
	}
	return mask(s)
}

// maskUPI keeps the first two runes of the handle and the provider: ab***@okaxis.
func maskUPI(v string) string {
	handle, provider, found := strings.Cut(v, "@")
	masked := keepPrefix(handle, 2)
	if found {
		masked += "@" + provider
	}
	return masked
}

// maskName keeps the initial of every word: A*** K***.
func maskName(v string) string {
	words := strings.Fields(v)
	for i, w := range words {
		words[i] = keepPrefix(w, 1)
	}
	return strings.Join(words, " ")
}

func keepPrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return strings.Repeat("*", len(r))
	}
	return string(r[:n]) + "***"
}
