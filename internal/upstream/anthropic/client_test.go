package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateMessageReturnsFirstTextBlock(t *testing.T) {
	var gotReq MessageRequest
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/messages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"thinking","text":""},{"type":"text","text":"hello there"}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", server.Client())
	got, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "test-model",
		MaxTokens: 100,
		Messages:  []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("unexpected content: %q", got)
	}
	if gotReq.Model != "test-model" || gotReq.MaxTokens != 100 {
		t.Fatalf("unexpected payload: %+v", gotReq)
	}
	if gotHeaders.Get("x-api-key") != "sk-test" {
		t.Errorf("missing api key header")
	}
	if gotHeaders.Get("anthropic-version") != "2023-06-01" {
		t.Errorf("unexpected version header: %q", gotHeaders.Get("anthropic-version"))
	}
}

func TestCreateMessageUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", server.Client())
	_, err := client.CreateMessage(context.Background(), MessageRequest{Model: "test-model"})

	var upstreamErr *Error
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if upstreamErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", upstreamErr.StatusCode)
	}
	if upstreamErr.Body == "" {
		t.Error("expected error body to be captured")
	}
}

func TestCreateMessageMissingTextBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"tool_use"}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", server.Client())
	_, err := client.CreateMessage(context.Background(), MessageRequest{Model: "test-model"})
	if err == nil {
		t.Fatal("expected error for response without text block")
	}
}

func TestCheckModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/models" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", server.Client())
	if err := client.CheckModels(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestObserverReceivesFinalStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var gotEndpoint string
	var gotStatus int
	client := New(server.URL, "sk-test", server.Client(), WithObserver(func(endpoint string, status int, _ time.Duration) {
		gotEndpoint = endpoint
		gotStatus = status
	}))

	_, _ = client.CreateMessage(context.Background(), MessageRequest{Model: "test-model"})
	if gotEndpoint != "messages" || gotStatus != http.StatusBadGateway {
		t.Fatalf("observer got (%q, %d)", gotEndpoint, gotStatus)
	}
}
