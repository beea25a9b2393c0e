package social

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"granolasync/internal/upstream/anthropic"
)

type stubMessageClient struct {
	content string
	err     error
	lastReq anthropic.MessageRequest
}

func (s *stubMessageClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (string, error) {
	s.lastReq = req
	return s.content, s.err
}

func newTestService(client MessageClient) *Service {
	svc := New(client, "test-model", time.Second, nil)
	svc.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestLookupParsesProfiles(t *testing.T) {
	client := &stubMessageClient{content: "```json\n" +
		`[{"platform":"YouTube","url":"https://youtube.com/@jane"},{"platform":"Instagram","url":"https://instagram.com/jane"}]` +
		"\n```"}
	svc := newTestService(client)

	result := svc.Lookup(context.Background(), "Jane Doe")

	if result.CreatorName != "Jane Doe" {
		t.Fatalf("unexpected creator name: %q", result.CreatorName)
	}
	if len(result.Profiles) != 2 {
		t.Fatalf("unexpected profiles: %+v", result.Profiles)
	}
	if result.SearchedAt != "2026-08-30T12:00:00Z" {
		t.Fatalf("unexpected timestamp: %q", result.SearchedAt)
	}
	if !strings.Contains(client.lastReq.Messages[0].Content, `"Jane Doe"`) {
		t.Fatal("creator name missing from prompt")
	}
}

func TestLookupFiltersInvalidProfiles(t *testing.T) {
	client := &stubMessageClient{content: `[
		{"platform":"YouTube","url":"https://youtube.com/@jane"},
		{"platform":"","url":"https://nowhere.example"},
		{"platform":"TikTok","url":"not-a-url"}
	]`}
	svc := newTestService(client)

	result := svc.Lookup(context.Background(), "Jane Doe")
	if len(result.Profiles) != 1 || result.Profiles[0].Platform != "YouTube" {
		t.Fatalf("unexpected profiles: %+v", result.Profiles)
	}
}

func TestLookupSwallowsUpstreamError(t *testing.T) {
	client := &stubMessageClient{err: errors.New("overloaded")}
	svc := newTestService(client)

	result := svc.Lookup(context.Background(), "Jane Doe")
	if result.Profiles == nil || len(result.Profiles) != 0 {
		t.Fatalf("expected empty non-nil profiles, got %+v", result.Profiles)
	}
	if result.SearchedAt == "" {
		t.Fatal("timestamp must be set even on failure")
	}
}

func TestLookupSwallowsUnparseableResponse(t *testing.T) {
	client := &stubMessageClient{content: "I couldn't find anyone by that name."}
	svc := newTestService(client)

	result := svc.Lookup(context.Background(), "Jane Doe")
	if len(result.Profiles) != 0 {
		t.Fatalf("expected no profiles, got %+v", result.Profiles)
	}
}

func TestLinksRendering(t *testing.T) {
	profiles := []Profile{
		{Platform: "YouTube", URL: "https://youtube.com/@jane"},
		{Platform: "Website", URL: "https://jane.example"},
	}

	wantHTML := `<a href="https://youtube.com/@jane" target="_blank">YouTube</a> | <a href="https://jane.example" target="_blank">Website</a>`
	if got := LinksHTML(profiles); got != wantHTML {
		t.Errorf("LinksHTML = %q", got)
	}

	wantText := "YouTube: https://youtube.com/@jane\nWebsite: https://jane.example"
	if got := LinksText(profiles); got != wantText {
		t.Errorf("LinksText = %q", got)
	}
}
