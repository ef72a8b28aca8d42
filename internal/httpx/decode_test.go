package httpx

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sundayezeilo/tasklinks/internal/errx"
)

type decodeTarget struct {
	Title     string `json:"title"`
	Completed *bool  `json:"completed,omitempty"`
	Priority  int    `json:"priority"`
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes a single object", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/tasks", strings.NewReader(`{"title":"buy milk","completed":true,"priority":2}`))

		got, err := DecodeJSON[decodeTarget](req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Title != "buy milk" || got.Completed == nil || !*got.Completed || got.Priority != 2 {
			t.Errorf("decoded %+v", got)
		}
	})

	t.Run("absent pointer field stays nil", func(t *testing.T) {
		req := httptest.NewRequest("PATCH", "/tasks/x", strings.NewReader(`{"title":"x"}`))

		got, err := DecodeJSON[decodeTarget](req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Completed != nil {
			t.Errorf("Completed = %v, want nil", *got.Completed)
		}
	})
}

func TestDecodeJSON_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantMsg   string
		wantField string
	}{
		{name: "empty body", body: "", wantMsg: "request body is empty"},
		{name: "syntax error", body: `{"title":}`, wantMsg: "malformed JSON"},
		{name: "trailing comma", body: `{"title":"a",}`, wantMsg: "malformed JSON"},
		{name: "truncated", body: `{"title":"a"`, wantMsg: "unexpected end of input"},
		{name: "unknown field", body: `{"title":"a","slug":"b"}`, wantMsg: "unknown field"},
		{name: "wrong type", body: `{"priority":"high"}`, wantField: "priority"},
		{name: "two objects", body: `{"title":"a"}{"title":"b"}`, wantMsg: "multiple JSON objects"},
		{name: "trailing garbage", body: `{"title":"a"}extra`, wantMsg: "multiple JSON objects"},
		{name: "too large", body: `{"title":"` + strings.Repeat("x", MaxRequestBodySize) + `"}`, wantMsg: "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/tasks", strings.NewReader(tt.body))

			got, err := DecodeJSON[decodeTarget](req)
			if err == nil {
				t.Fatalf("expected error, decoded %+v", got)
			}
			if kind := errx.KindOf(err); kind != errx.Invalid {
				t.Errorf("kind = %v, want Invalid", kind)
			}
			if got != (decodeTarget{}) {
				t.Errorf("expected zero value on error, got %+v", got)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
			if tt.wantField != "" {
				fe, ok := errx.FieldOf(err)
				if !ok || fe.Field != tt.wantField {
					t.Errorf("FieldOf() = %+v, %v; want field %q", fe, ok, tt.wantField)
				}
			}
		})
	}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestDecodeJSON_ClosesBody(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader(`{"title":"a"}`)}

	if _, err := DecodeJSON[decodeTarget](httptest.NewRequest("POST", "/tasks", body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !body.closed {
		t.Error("request body was not closed")
	}
}
