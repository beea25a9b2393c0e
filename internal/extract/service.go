package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"granolasync/internal/upstream/anthropic"
)

const extractionMaxTokens = 2000

const promptHeader = `You are an AI assistant that extracts structured data from sales call transcripts.
Analyze the provided transcript and extract the following information in JSON format.

IMPORTANT: Only extract information that is explicitly mentioned or strongly implied in the transcript.
Use null for fields where information is not available. Use empty arrays [] when no items found.`

const promptBody = `Extract:
1. Contact information for ALL external attendees (not internal employees). Each contact needs: firstName, lastName, email, phone, company, jobTitle
2. Deal information (name, stage, amount, closeDate) - no notes needed
3. A concise call summary (2-3 sentences)
4. Action items mentioned during the call
5. Next steps discussed
6. Overall sentiment of the call (positive, neutral, negative)
7. Manufacturing & Product info: products discussed (t-shirts, hoodies, mugs, books, etc.), quantities, materials/fabrics/packaging, production timeline, special requirements, manufacturing concerns
8. Creative/Design info: visual themes, aesthetic directions, inspiration sources, color preferences, brand elements (logos, existing designs), social media links/handles, website URLs

For deal stage, use one of: discovery, qualification, proposal, negotiation, closed_won, closed_lost
Only set a stage if there's clear indication from the conversation.

Respond ONLY with valid JSON matching this schema:
{
  "contacts": [
    {
      "firstName": string | null,
      "lastName": string | null,
      "email": string | null,
      "phone": string | null,
      "company": string | null,
      "jobTitle": string | null
    }
  ],
  "deal": {
    "name": string | null,
    "stage": "discovery" | "qualification" | "proposal" | "negotiation" | "closed_won" | "closed_lost" | null,
    "amount": number | null,
    "closeDate": string | null
  },
  "callSummary": string,
  "actionItems": string[],
  "nextSteps": string[],
  "sentiment": "positive" | "neutral" | "negative",
  "manufacturing": {
    "products": string[],
    "quantities": string | null,
    "materials": string[],
    "timeline": string | null,
    "requirements": string[],
    "concerns": string[]
  },
  "creativeInfo": {
    "themes": string[],
    "inspiration": string[],
    "colors": string[],
    "brandElements": string[],
    "socialLinks": string[],
    "websiteLinks": string[]
  }
}`

type MessageClient interface {
	CreateMessage(ctx context.Context, req anthropic.MessageRequest) (string, error)
}

// Service turns raw transcript text plus attendee email hints into Data. It is
// the only place that sees raw model output; callers get either a decoded Data
// or an error.
type Service struct {
	client  MessageClient
	model   string
	timeout time.Duration
}

func New(client MessageClient, model string, timeout time.Duration) *Service {
	return &Service{
		client:  client,
		model:   strings.TrimSpace(model),
		timeout: timeout,
	}
}

func (s *Service) Extract(ctx context.Context, transcript string, attendeeEmails []string) (Data, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: extractionMaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(transcript, attendeeEmails)},
		},
	})
	if err != nil {
		return Data{}, err
	}

	data, err := parseResponse(content)
	if err != nil {
		return Data{}, err
	}
	return data, nil
}

func buildPrompt(transcript string, attendeeEmails []string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	if len(attendeeEmails) > 0 {
		b.WriteString("\nATTENDEE EMAILS PROVIDED: ")
		b.WriteString(strings.Join(attendeeEmails, ", "))
		b.WriteString("\nIMPORTANT: Use these emails for the contacts. Match each email to the person speaking in the transcript based on their name or role.")
	}
	b.WriteString("\n\n")
	b.WriteString(promptBody)
	b.WriteString("\n\nTRANSCRIPT:\n")
	b.WriteString(transcript)
	return b.String()
}

func parseResponse(content string) (Data, error) {
	jsonStr := stripCodeFences(content)

	var data Data
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return Data{}, fmt.Errorf("invalid extraction response: %w", err)
	}

	if data.Contacts == nil {
		data.Contacts = []Contact{}
	}
	if data.ActionItems == nil {
		data.ActionItems = []string{}
	}
	if data.NextSteps == nil {
		data.NextSteps = []string{}
	}
	if data.Sentiment == "" {
		data.Sentiment = "neutral"
	}
	return data, nil
}

// stripCodeFences removes a surrounding markdown code block, which the model
// sometimes wraps around its JSON despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
