package notes

import (
	"strings"
	"testing"

	"granolasync/internal/extract"
)

func TestBuildFullNote(t *testing.T) {
	data := extract.Data{
		CallSummary:  "Discussed the spring collection.",
		ActionItems:  []string{"Send samples", "Book studio"},
		NextSteps:    []string{"Follow up Friday"},
		Sentiment:    "positive",
		MeetingDate:  "2026-08-30",
		MeetingTitle: "Spring Planning",
		Deal:         extract.Deal{Notes: "Budget confirmed at 10k."},
	}

	got := Build(data)
	want := "📞 <b>Call Summary (2026-08-30)</b><br>" +
		"<b>Meeting:</b> Spring Planning<br>" +
		"<br>" +
		"Discussed the spring collection.<br>" +
		"<br>📋 <b>Action Items:</b><br>" +
		"• Send samples<br>" +
		"• Book studio<br>" +
		"<br>➡️ <b>Next Steps:</b><br>" +
		"• Follow up Friday<br>" +
		"<br><b>Sentiment:</b> positive" +
		"<br><br><b>Deal Notes:</b> Budget confirmed at 10k."

	if got != want {
		t.Fatalf("note mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestBuildOmitsEmptySections(t *testing.T) {
	data := extract.Data{
		CallSummary: "Short call.",
		Sentiment:   "neutral",
	}

	got := Build(data)

	if strings.Contains(got, "Action Items") {
		t.Error("action items section should be omitted when empty")
	}
	if strings.Contains(got, "Next Steps") {
		t.Error("next steps section should be omitted when empty")
	}
	if strings.Contains(got, "Deal Notes") {
		t.Error("deal notes section should be omitted when empty")
	}
	if strings.Contains(got, "<b>Meeting:</b>") {
		t.Error("meeting line should be omitted without a title")
	}
	if !strings.HasPrefix(got, "📞 <b>Call Summary (Unknown date)</b><br>") {
		t.Errorf("missing unknown-date header: %q", got)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	data := extract.Data{
		CallSummary: "Same input.",
		ActionItems: []string{"a", "b"},
		Sentiment:   "negative",
		MeetingDate: "2026-01-01",
	}

	if Build(data) != Build(data) {
		t.Fatal("identical extractions must render identical notes")
	}
}
