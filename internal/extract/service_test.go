package extract

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

const sampleResponse = `{
	"contacts": [{"firstName": "Jane", "lastName": "Doe", "email": "jane@x.com"}],
	"deal": {"name": "Merch Drop", "stage": "proposal", "amount": 5000},
	"callSummary": "Discussed a merch drop.",
	"actionItems": ["Send quote"],
	"nextSteps": [],
	"sentiment": "positive"
}`

func TestExtractParsesResponse(t *testing.T) {
	client := &stubMessageClient{content: sampleResponse}
	svc := New(client, "test-model", time.Second)

	data, err := svc.Extract(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Contacts) != 1 || data.Contacts[0].Email != "jane@x.com" {
		t.Fatalf("unexpected contacts: %+v", data.Contacts)
	}
	if data.Deal.Name != "Merch Drop" || data.Deal.Stage != StageProposal || data.Deal.Amount != 5000 {
		t.Fatalf("unexpected deal: %+v", data.Deal)
	}
	if data.Sentiment != "positive" {
		t.Fatalf("unexpected sentiment: %q", data.Sentiment)
	}
	if client.lastReq.Model != "test-model" {
		t.Fatalf("unexpected model: %q", client.lastReq.Model)
	}
}

func TestExtractStripsCodeFences(t *testing.T) {
	client := &stubMessageClient{content: "```json\n" + sampleResponse + "\n```"}
	svc := New(client, "test-model", time.Second)

	data, err := svc.Extract(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.CallSummary != "Discussed a merch drop." {
		t.Fatalf("unexpected summary: %q", data.CallSummary)
	}
}

func TestExtractDefaultsMissingFields(t *testing.T) {
	client := &stubMessageClient{content: `{"callSummary": "Quick sync."}`}
	svc := New(client, "test-model", time.Second)

	data, err := svc.Extract(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.Contacts == nil || data.ActionItems == nil || data.NextSteps == nil {
		t.Fatal("slices must be non-nil")
	}
	if data.Sentiment != "neutral" {
		t.Fatalf("expected neutral default, got %q", data.Sentiment)
	}
}

func TestExtractInvalidJSON(t *testing.T) {
	client := &stubMessageClient{content: "I could not process that transcript."}
	svc := New(client, "test-model", time.Second)

	_, err := svc.Extract(context.Background(), "hello", nil)
	if err == nil || !strings.Contains(err.Error(), "invalid extraction response") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestExtractPropagatesClientError(t *testing.T) {
	wantErr := errors.New("overloaded")
	client := &stubMessageClient{err: wantErr}
	svc := New(client, "test-model", time.Second)

	_, err := svc.Extract(context.Background(), "hello", nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected client error, got %v", err)
	}
}

func TestExtractIncludesAttendeeHintsInPrompt(t *testing.T) {
	client := &stubMessageClient{content: sampleResponse}
	svc := New(client, "test-model", time.Second)

	_, err := svc.Extract(context.Background(), "hello", []string{"a@x.com", "b@x.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := client.lastReq.Messages[0].Content
	if !strings.Contains(prompt, "ATTENDEE EMAILS PROVIDED: a@x.com, b@x.com") {
		t.Fatalf("hints missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "TRANSCRIPT:\nhello") {
		t.Fatal("transcript missing from prompt")
	}
}

func TestContactEmpty(t *testing.T) {
	if !(Contact{Phone: "555", Company: "Acme"}).Empty() {
		t.Error("contact without email or name should be empty")
	}
	if (Contact{Email: "a@x.com"}).Empty() {
		t.Error("contact with email is not empty")
	}
	if (Contact{FirstName: "Jane"}).Empty() {
		t.Error("contact with a first name is not empty")
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                      `{"a":1}`,
		"```json\n{\"a\":1}\n```":        `{"a":1}`,
		"```\n{\"a\":1}\n```":            `{"a":1}`,
		"  ```json\n{\"a\":1}\n```\n\n ": `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripCodeFences(in); got != want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}
