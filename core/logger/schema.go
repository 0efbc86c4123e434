package logger

import "strings"

// Canonical level names written to the level key.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return LevelInfo
	case "warning":
		return LevelWarn
	}
	return strings.ToUpper(strings.TrimSpace(level))
}

// normalizeStatus lowercases status and reports whether it is a known value.
func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "ok", "fail", "skip", "retry", "rate_limited", "cancelled":
		return status, true
	}
	return status, false
}

// normalizeOutcome returns the canonical outcome or false for values the
// handler summary never produces.
func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	switch outcome {
	case "ok", "fail", "cancelled", "rate_limited",
		"refused", "ignored", "advanced", "completed":
		return outcome, true
	}
	return "", false
}

// defaultKeyOrder puts envelope keys first, then update metadata, then the
// ledger fields in the order an operator reads a balance change.
var defaultKeyOrder = []string{
	// envelope
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	// update
	"update_id", "user_id", "chat_id", "chat_type",
	"handler", "operation", "cb_key", "command", "text_len",
	"outcome", "duration_ms", "messages", "kb",
	// ledger and dialog
	"action", "flow", "step", "amount", "balance",
	"deposit_id", "withdraw_id", "referrer_id", "upi_id", "payee_name",
	// transport and storage
	"mode", "listen", "public_url", "http_code", "endpoint",
	"db", "host", "port", "count",
	// failures
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms",
	"sessions", "removed",
}
