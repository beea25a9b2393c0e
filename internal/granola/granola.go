// Package granola reads meeting transcripts and participants from the
// Granola desktop app's local cache, falling back to the Granola API when a
// token is configured. A Source is constructed once and passed to the HTTP
// layer; it holds no process-wide state.
package granola

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

const clientVersion = "1.0.0"

// ErrNoDataSource is returned when neither the local cache nor an API token
// is available.
var ErrNoDataSource = errors.New("no granola data source available: install the Granola desktop app or provide an API token")

type Participant struct {
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	IsHost bool   `json:"isHost,omitempty"`
}

type Meeting struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Date         string        `json:"date"`
	Duration     int           `json:"duration,omitempty"`
	Participants []Participant `json:"participants"`
	Transcript   string        `json:"transcript,omitempty"`
	Summary      string        `json:"summary,omitempty"`
}

type Source struct {
	cachePath  string
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Source)

func WithCachePath(path string) Option {
	return func(s *Source) {
		if path != "" {
			s.cachePath = path
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// DefaultCachePath is where the Granola desktop app keeps its cache under the
// platform data directory (~/Library/Application Support on macOS).
func DefaultCachePath() string {
	return filepath.Join(xdg.DataHome, "Granola", "cache-v3.json")
}

func New(baseURL, apiToken string, httpClient *http.Client, opts ...Option) *Source {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	s := &Source{
		cachePath:  DefaultCachePath(),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   strings.TrimSpace(apiToken),
		httpClient: httpClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ListMeetings returns up to limit meetings, newest first, without
// transcripts. The local cache wins; the API is a fallback.
func (s *Source) ListMeetings(ctx context.Context, limit int) ([]Meeting, error) {
	meetings, err := s.listFromCache(limit)
	if err == nil && len(meetings) > 0 {
		s.logger.Info("loaded meetings from local cache", "count", len(meetings))
		return meetings, nil
	}
	if err != nil {
		s.logger.Debug("local cache not available", "error", err)
	}

	if s.apiToken != "" {
		return s.listFromAPI(ctx, limit)
	}
	return nil, ErrNoDataSource
}

// GetMeeting returns one meeting with its full transcript, or nil when it
// does not exist in any source.
func (s *Source) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	meeting, err := s.getFromCache(id)
	if err != nil {
		s.logger.Debug("meeting not found in local cache", "id", id, "error", err)
	}
	if meeting != nil {
		return meeting, nil
	}

	if s.apiToken != "" {
		return s.getFromAPI(ctx, id)
	}
	return nil, nil
}

func (s *Source) listFromAPI(ctx context.Context, limit int) ([]Meeting, error) {
	var data struct {
		Documents []apiDocument `json:"documents"`
	}
	err := s.apiRequest(ctx, "/v2/get-documents", map[string]any{
		"limit":                     limit,
		"offset":                    0,
		"include_last_viewed_panel": true,
	}, &data)
	if err != nil {
		return nil, err
	}

	meetings := make([]Meeting, 0, len(data.Documents))
	for _, doc := range data.Documents {
		meetings = append(meetings, doc.toMeeting(""))
	}
	return meetings, nil
}

func (s *Source) getFromAPI(ctx context.Context, id string) (*Meeting, error) {
	var docs struct {
		Documents []apiDocument `json:"documents"`
	}
	err := s.apiRequest(ctx, "/v1/get-documents-batch", map[string]any{"document_ids": []string{id}}, &docs)
	if err != nil {
		return nil, err
	}
	if len(docs.Documents) == 0 {
		return nil, nil
	}

	transcript := ""
	var transcriptData struct {
		Transcript string `json:"transcript"`
	}
	if err := s.apiRequest(ctx, "/v1/get-document-transcript", map[string]any{"document_id": id}, &transcriptData); err != nil {
		s.logger.Debug("transcript not available from api", "id", id, "error", err)
	} else {
		transcript = transcriptData.Transcript
	}

	meeting := docs.Documents[0].toMeeting(transcript)
	return &meeting, nil
}

type apiDocument struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	MeetingStartsAt string `json:"meeting_starts_at"`
	CreatedAt       string `json:"created_at"`
	DurationMinutes int    `json:"duration_minutes"`
	Summary         string `json:"summary"`
	Attendees       []struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		IsOrganizer bool   `json:"is_organizer"`
	} `json:"attendees"`
}

func (d apiDocument) toMeeting(transcript string) Meeting {
	participants := make([]Participant, 0, len(d.Attendees))
	for _, a := range d.Attendees {
		participants = append(participants, Participant{
			Name:   participantName(a.Name, a.Email),
			Email:  a.Email,
			IsHost: a.IsOrganizer,
		})
	}
	date := d.MeetingStartsAt
	if date == "" {
		date = d.CreatedAt
	}
	title := d.Title
	if title == "" {
		title = "Untitled Meeting"
	}
	return Meeting{
		ID:           d.ID,
		Title:        title,
		Date:         date,
		Duration:     d.DurationMinutes,
		Participants: participants,
		Transcript:   transcript,
		Summary:      d.Summary,
	}
}

func (s *Source) apiRequest(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Version", clientVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("granola api error: %d", resp.StatusCode)
	}
	return json.Unmarshal(buf.Bytes(), out)
}

func participantName(name, email string) string {
	if name != "" {
		return name
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return "Unknown"
}

func minutesBetween(start, end string) int {
	startTime, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return 0
	}
	endTime, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return 0
	}
	return int(endTime.Sub(startTime).Round(time.Minute) / time.Minute)
}
