package failure

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: Unknown},
		{name: "plain", err: errors.New("boom"), want: Unknown},
		{name: "network", err: NewNetwork("notices", errors.New("dial")), want: Network},
		{name: "wrapped http", err: fmt.Errorf("page 2: %w", NewHTTP("notices", 503, nil)), want: HTTP},
		{name: "parse", err: NewParse("notices", errors.New("bad json")), want: Parse},
		{name: "storage", err: NewStorage("bookmarks", errors.New("disk full")), want: Storage},
		{name: "url error", err: &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, want: Network},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "network", err: NewNetwork("notices", errors.New("offline")), want: MsgConnection},
		{name: "timeout", err: NewNetwork("notices", context.DeadlineExceeded), want: MsgTimeout},
		{name: "5xx", err: NewHTTP("notices", 502, nil), want: MsgServer},
		{name: "4xx", err: NewHTTP("notices", 404, nil), want: MsgRequest},
		{name: "parse", err: NewParse("notices", errors.New("x")), want: MsgData},
		{name: "unclassified", err: errors.New("weird"), want: MsgGeneric},
		{name: "storage with no status", err: NewStorage("theme", errors.New("x")), want: MsgGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Fatalf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
	if UserMessage(nil) != "" {
		t.Fatal("UserMessage(nil) should be empty")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(NewNetwork("x", errors.New("x"))) {
		t.Fatal("network errors should be retryable")
	}
	if !Retryable(NewHTTP("x", 500, nil)) {
		t.Fatal("5xx should be retryable")
	}
	if Retryable(NewHTTP("x", 404, nil)) {
		t.Fatal("404 should not be retryable")
	}
	if Retryable(NewStorage("x", errors.New("x"))) {
		t.Fatal("storage errors never reach callers and are not retryable")
	}
}

func TestError_Message(t *testing.T) {
	err := NewHTTP("notices", 503, errors.New("unavailable"))
	want := "notices: http error (status 503): unavailable"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("Unwrap should expose the cause")
	}
}
