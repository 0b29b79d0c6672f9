package anomalies

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// FromTransportError maps a transport-level error onto an anomaly category:
//
//   - timeout / deadline exceeded -> interrupted
//   - throttled                   -> busy
//   - connection failures         -> unavailable
//   - DNS resolution failures     -> not-found
//   - anything else               -> fault
//
// The returned anomaly's message carries the error's concrete type and text.
func FromTransportError(err error) *Anomaly {
	if err == nil {
		return nil
	}

	category := Fault

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		category = Interrupted
	case isTimeout(err):
		category = Interrupted
	case isDNSError(err):
		category = NotFound
	case isConnectError(err):
		category = Unavailable
	case isThrottled(err):
		category = Busy
	}

	return &Anomaly{Category: category, Message: errorDetail(err)}
}

// FromHTTPStatus maps an HTTP error status onto an anomaly. The decoded body,
// if any, is attached under the http-error field. Returns nil for non-error
// statuses.
func FromHTTPStatus(status int, body any) *Anomaly {
	var category Category
	switch {
	case status == http.StatusForbidden:
		category = Forbidden
	case status == http.StatusServiceUnavailable:
		category = Busy
	case status == http.StatusGatewayTimeout:
		category = Unavailable
	case status >= 400 && status <= 499:
		category = Incorrect
	case status >= 500 && status <= 599:
		category = Fault
	default:
		return nil
	}
	return &Anomaly{
		Category:  category,
		Message:   http.StatusText(status),
		HTTPError: body,
	}
}

func isTimeout(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded")
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isThrottled(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "throttle") || strings.Contains(msg, "too many requests")
}

func errorDetail(err error) string {
	return FromError(err).Message
}
