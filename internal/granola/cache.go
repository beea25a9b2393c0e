package granola

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// The cache file is JSON wrapping a JSON string: {"cache": "{\"state\": …}"}.
type cacheFile struct {
	Cache string `json:"cache"`
}

type cacheState struct {
	Documents        map[string]cacheDocument     `json:"documents"`
	Transcripts      map[string][]transcriptEntry `json:"transcripts"`
	MeetingsMetadata map[string]meetingMetadata   `json:"meetingsMetadata"`
}

type cacheDocument struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	CreatedAt           string  `json:"created_at"`
	DeletedAt           *string `json:"deleted_at"`
	Type                string  `json:"type"`
	NotesPlain          string  `json:"notes_plain"`
	NotesMarkdown       string  `json:"notes_markdown"`
	GoogleCalendarEvent *struct {
		Summary string `json:"summary"`
		Start   struct {
			DateTime string `json:"dateTime"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
		} `json:"end"`
		Attendees []struct {
			Email       string `json:"email"`
			DisplayName string `json:"displayName"`
			Organizer   bool   `json:"organizer"`
			Self        bool   `json:"self"`
		} `json:"attendees"`
	} `json:"google_calendar_event"`
	People *struct {
		Attendees []struct {
			Name    string `json:"name"`
			Email   string `json:"email"`
			Details *struct {
				Person *struct {
					Name *struct {
						FullName string `json:"fullName"`
					} `json:"name"`
				} `json:"person"`
			} `json:"details"`
		} `json:"attendees"`
	} `json:"people"`
}

type transcriptEntry struct {
	Text    string `json:"text"`
	Speaker string `json:"speaker"`
}

type meetingMetadata struct {
	Attendees []struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"attendees"`
}

func (s *Source) parseCache() (*cacheState, error) {
	raw, err := os.ReadFile(s.cachePath)
	if err != nil {
		return nil, err
	}

	var outer cacheFile
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("invalid cache file: %w", err)
	}

	var inner struct {
		State cacheState `json:"state"`
	}
	if err := json.Unmarshal([]byte(outer.Cache), &inner); err != nil {
		return nil, fmt.Errorf("invalid cache state: %w", err)
	}
	return &inner.State, nil
}

func (s *Source) listFromCache(limit int) ([]Meeting, error) {
	state, err := s.parseCache()
	if err != nil {
		return nil, err
	}

	docs := make([]cacheDocument, 0, len(state.Documents))
	for _, doc := range state.Documents {
		if doc.DeletedAt != nil || doc.Type != "meeting" {
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt > docs[j].CreatedAt
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	meetings := make([]Meeting, 0, len(docs))
	for _, doc := range docs {
		meetings = append(meetings, s.transformCacheDocument(doc, state, false))
	}
	return meetings, nil
}

func (s *Source) getFromCache(id string) (*Meeting, error) {
	state, err := s.parseCache()
	if err != nil {
		return nil, err
	}

	doc, ok := state.Documents[id]
	if !ok || doc.DeletedAt != nil {
		return nil, nil
	}
	meeting := s.transformCacheDocument(doc, state, true)
	return &meeting, nil
}

func (s *Source) transformCacheDocument(doc cacheDocument, state *cacheState, includeTranscript bool) Meeting {
	var participants []Participant
	seenEmails := map[string]struct{}{}

	addParticipant := func(p Participant) {
		if p.Email != "" {
			if _, ok := seenEmails[p.Email]; ok {
				return
			}
			seenEmails[p.Email] = struct{}{}
		}
		participants = append(participants, p)
	}

	calEvent := doc.GoogleCalendarEvent
	if calEvent != nil {
		for _, a := range calEvent.Attendees {
			if a.Self {
				continue
			}
			name := a.DisplayName
			if name == "" {
				name = participantName("", a.Email)
			}
			addParticipant(Participant{Name: name, Email: a.Email, IsHost: a.Organizer})
		}
	}

	if doc.People != nil {
		for _, a := range doc.People.Attendees {
			name := a.Name
			if name == "" && a.Details != nil && a.Details.Person != nil && a.Details.Person.Name != nil {
				name = a.Details.Person.Name.FullName
			}
			if name == "" {
				name = "Unknown"
			}
			addParticipant(Participant{Name: name, Email: a.Email})
		}
	}

	if metadata, ok := state.MeetingsMetadata[doc.ID]; ok {
		for _, a := range metadata.Attendees {
			addParticipant(Participant{Name: participantName(a.Name, a.Email), Email: a.Email})
		}
	}

	duration := 0
	date := doc.CreatedAt
	if calEvent != nil {
		if calEvent.Start.DateTime != "" {
			date = calEvent.Start.DateTime
			duration = minutesBetween(calEvent.Start.DateTime, calEvent.End.DateTime)
		}
	}

	transcript := ""
	if includeTranscript {
		transcript = joinTranscript(state.Transcripts[doc.ID])
	}

	title := doc.Title
	if title == "" && calEvent != nil {
		title = calEvent.Summary
	}
	if title == "" {
		title = "Untitled Meeting"
	}

	summary := doc.NotesMarkdown
	if summary == "" {
		summary = doc.NotesPlain
	}

	if participants == nil {
		participants = []Participant{}
	}

	return Meeting{
		ID:           doc.ID,
		Title:        title,
		Date:         date,
		Duration:     duration,
		Participants: participants,
		Transcript:   transcript,
		Summary:      summary,
	}
}

func joinTranscript(entries []transcriptEntry) string {
	var lines []string
	for _, e := range entries {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		if e.Speaker != "" {
			lines = append(lines, e.Speaker+": "+text)
		} else {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}
