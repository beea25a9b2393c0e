// Package notes renders the durable call note attached to CRM records. The
// section order, bullet format and omission-when-empty rules are part of the
// contract with the CRM timeline; Build must stay byte-deterministic for a
// given extraction.
package notes

import (
	"strings"

	"granolasync/internal/extract"
)

func Build(data extract.Data) string {
	var b strings.Builder

	date := data.MeetingDate
	if date == "" {
		date = "Unknown date"
	}
	b.WriteString("📞 <b>Call Summary (" + date + ")</b><br>")

	if data.MeetingTitle != "" {
		b.WriteString("<b>Meeting:</b> " + data.MeetingTitle + "<br>")
	}

	b.WriteString("<br>")
	b.WriteString(data.CallSummary + "<br>")

	if len(data.ActionItems) > 0 {
		b.WriteString("<br>")
		b.WriteString("📋 <b>Action Items:</b><br>")
		for _, item := range data.ActionItems {
			b.WriteString("• " + item + "<br>")
		}
	}

	if len(data.NextSteps) > 0 {
		b.WriteString("<br>")
		b.WriteString("➡️ <b>Next Steps:</b><br>")
		for _, step := range data.NextSteps {
			b.WriteString("• " + step + "<br>")
		}
	}

	b.WriteString("<br>")
	b.WriteString("<b>Sentiment:</b> " + data.Sentiment)

	if data.Deal.Notes != "" {
		b.WriteString("<br><br>")
		b.WriteString("<b>Deal Notes:</b> " + data.Deal.Notes)
	}

	return b.String()
}
