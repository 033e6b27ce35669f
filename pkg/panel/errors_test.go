package panel

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	se := serverError(503, "overloaded", "/api/v1/server/enhanced/trojan/heartbeat")
	if !IsServerError(se) || IsNetworkError(se) || IsNotModified(se) || IsParseError(se) {
		t.Errorf("server error misclassified: %v", se)
	}
	if StatusCode(se) != 503 {
		t.Errorf("StatusCode = %d", StatusCode(se))
	}

	ne := networkError("/p", errors.New("connection refused"))
	if !IsNetworkError(ne) || ne.Timeout {
		t.Errorf("network error misclassified: %v", ne)
	}

	te := networkError("/p", context.DeadlineExceeded)
	if !IsTimeout(te) {
		t.Errorf("deadline exceeded must flag timeout: %v", te)
	}

	nm := notModified("/p")
	if !IsNotModified(nm) || IsServerError(nm) {
		t.Errorf("not-modified misclassified: %v", nm)
	}

	pe := parseError("/p", errors.New("unexpected end of JSON input"))
	if !IsParseError(pe) {
		t.Errorf("parse error misclassified: %v", pe)
	}
}

func TestError_wrapping(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("heartbeat node 1: %w", networkError("/p", cause))

	if !IsNetworkError(wrapped) {
		t.Error("errors.As must see through fmt.Errorf wrapping")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("cause must stay reachable through Unwrap")
	}
}

func TestStatusCode_nonServerErrors(t *testing.T) {
	if StatusCode(networkError("/p", errors.New("x"))) != 0 {
		t.Error("network errors carry no status")
	}
	if StatusCode(nil) != 0 {
		t.Error("nil carries no status")
	}
	if StatusCode(errors.New("plain")) != 0 {
		t.Error("foreign errors carry no status")
	}
}

func TestMessageFromBody(t *testing.T) {
	if got := messageFromBody([]byte(`{"message":"node not found"}`)); got != "node not found" {
		t.Errorf("envelope message: %q", got)
	}
	if got := messageFromBody([]byte("plain text error")); got != "plain text error" {
		t.Errorf("plain body: %q", got)
	}
	if got := messageFromBody(nil); got != "unknown error" {
		t.Errorf("empty body: %q", got)
	}
}
