// Package netutil classifies Telegram API failures for retry decisions.
package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	tele "gopkg.in/telebot.v4"
)

// ShouldRetry reports whether a failed Telegram call may succeed when
// repeated: transient network failures, flood control and 5xx answers.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	if NotSent(err) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// NotSent reports failures that happened before the request left the host,
// so repeating the request cannot deliver a message twice.
func NotSent(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
