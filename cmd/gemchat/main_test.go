package main

import (
	"errors"
	"testing"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name string
		req  map[string]any
		want string
	}{
		{name: "string", req: map[string]any{"request_id": "abc"}, want: "abc"},
		{name: "int", req: map[string]any{"request_id": 42}, want: "42"},
		{name: "float", req: map[string]any{"request_id": 42.0}, want: "42"},
		{name: "none", req: map[string]any{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := requestID(tt.req); got != tt.want {
				t.Fatalf("requestID(%v) = %q, want %q", tt.req, got, tt.want)
			}
		})
	}
}

func TestGate(t *testing.T) {
	var g gate
	if g.Confirm("delete?") {
		t.Fatalf("expected fresh gate to decline")
	}
	g.set(true)
	if !g.Confirm("delete?") {
		t.Fatalf("expected gate to allow after set(true)")
	}
	g.set(false)
	if g.Confirm("delete?") {
		t.Fatalf("expected gate to decline after set(false)")
	}
}

func TestErrorResponse(t *testing.T) {
	resp := errorResponse(errors.New("boom"))
	if resp["type"] != "error" {
		t.Fatalf("type = %v, want error", resp["type"])
	}
	if resp["message"] != "boom" {
		t.Fatalf("message = %v, want boom", resp["message"])
	}
}

func TestVersionString(t *testing.T) {
	if versionString() == "" {
		t.Fatalf("expected non-empty version string")
	}
}
