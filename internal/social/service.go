package social

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"granolasync/internal/upstream/anthropic"
)

const lookupMaxTokens = 1000

var platformsToSearch = []string{
	"YouTube",
	"Instagram",
	"TikTok",
	"Twitter/X",
	"LinkedIn",
	"Patreon",
	"Ko-fi",
	"Kick",
	"Website",
}

type Profile struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

type Result struct {
	CreatorName string    `json:"creatorName"`
	Profiles    []Profile `json:"profiles"`
	SearchedAt  string    `json:"searchedAt"`
}

type MessageClient interface {
	CreateMessage(ctx context.Context, req anthropic.MessageRequest) (string, error)
}

// Service finds a creator's verified public profiles. The lookup is advisory
// decoration for ticket descriptions, so every failure collapses to an empty
// profile list rather than an error.
type Service struct {
	client  MessageClient
	model   string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func New(client MessageClient, model string, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:  client,
		model:   strings.TrimSpace(model),
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) Lookup(ctx context.Context, creatorName string) Result {
	s.logger.Info("looking up social profiles", "creator", creatorName)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := Result{
		CreatorName: creatorName,
		Profiles:    []Profile{},
		SearchedAt:  s.now().UTC().Format(time.RFC3339),
	}

	content, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: lookupMaxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildLookupPrompt(creatorName)},
		},
	})
	if err != nil {
		s.logger.Error("social lookup failed", "creator", creatorName, "error", err)
		return result
	}

	profiles, err := parseProfiles(content)
	if err != nil {
		s.logger.Error("social lookup returned unparseable profiles", "creator", creatorName, "error", err)
		return result
	}

	result.Profiles = profiles
	s.logger.Info("social lookup complete", "creator", creatorName, "profiles", len(profiles))
	return result
}

func buildLookupPrompt(creatorName string) string {
	var b strings.Builder
	b.WriteString(`Find the official social media profiles and website for "` + creatorName + `" (content creator/brand).

Search for their presence on these platforms: ` + strings.Join(platformsToSearch, ", ") + `

IMPORTANT:
- Only include profiles that you can verify actually exist and belong to this creator
- Do NOT guess or make up URLs - only return real, verified profile URLs
- If you can't find a profile on a platform, don't include it

Return ONLY a JSON array of found profiles in this exact format:
[
  {"platform": "YouTube", "url": "https://www.youtube.com/@actualusername"},
  {"platform": "Instagram", "url": "https://www.instagram.com/actualusername"}
]

If you cannot find any verified profiles, return an empty array: []

Return ONLY the JSON array, no other text.`)
	return b.String()
}

func parseProfiles(content string) ([]Profile, error) {
	jsonStr := strings.TrimSpace(content)
	if strings.HasPrefix(jsonStr, "```json") {
		jsonStr = jsonStr[len("```json"):]
	} else if strings.HasPrefix(jsonStr, "```") {
		jsonStr = jsonStr[len("```"):]
	}
	jsonStr = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(jsonStr), "```"))

	var parsed []Profile
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, err
	}

	valid := make([]Profile, 0, len(parsed))
	for _, p := range parsed {
		if p.Platform == "" || !strings.HasPrefix(p.URL, "http") {
			continue
		}
		valid = append(valid, p)
	}
	return valid, nil
}

// LinksHTML renders profiles as anchor tags for ticket descriptions.
func LinksHTML(profiles []Profile) string {
	parts := make([]string, 0, len(profiles))
	for _, p := range profiles {
		parts = append(parts, `<a href="`+p.URL+`" target="_blank">`+p.Platform+`</a>`)
	}
	return strings.Join(parts, " | ")
}

// LinksText renders profiles as plain platform/URL lines.
func LinksText(profiles []Profile) string {
	parts := make([]string, 0, len(profiles))
	for _, p := range profiles {
		parts = append(parts, p.Platform+": "+p.URL)
	}
	return strings.Join(parts, "\n")
}
