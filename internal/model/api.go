package model

import "granolasync/internal/granola"

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type ReadyResponse struct {
	OK          bool   `json:"ok"`
	ServiceName string `json:"service_name,omitempty"`
}

// WebhookRequest is the machine-facing transcript payload.
type WebhookRequest struct {
	Transcript string   `json:"transcript"`
	Title      string   `json:"title,omitempty"`
	Date       string   `json:"date,omitempty"`
	Attendees  []string `json:"attendees,omitempty"`
}

// UploadRequest is the form-facing transcript payload; attendees arrive as a
// comma-separated string.
type UploadRequest struct {
	Transcript string `json:"transcript"`
	Title      string `json:"title,omitempty"`
	Date       string `json:"date,omitempty"`
	Attendees  string `json:"attendees,omitempty"`
}

// MeetingSummary is one row of the meeting picker, without the transcript.
type MeetingSummary struct {
	ID               string               `json:"id"`
	Title            string               `json:"title"`
	Date             string               `json:"date"`
	Duration         int                  `json:"duration,omitempty"`
	ParticipantCount int                  `json:"participantCount"`
	Participants     []MeetingParticipant `json:"participants"`
	HasSummary       bool                 `json:"hasSummary"`
	HasTranscript    bool                 `json:"hasTranscript"`
}

type MeetingParticipant struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type MeetingListResponse struct {
	Meetings []MeetingSummary `json:"meetings"`
}

type MeetingResponse struct {
	Meeting *granola.Meeting `json:"meeting"`
}
