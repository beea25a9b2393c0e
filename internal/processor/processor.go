// Package processor orchestrates one transcript run: extraction, contact and
// deal sync against the CRM, and note attachment. Everything after a
// successful extraction degrades instead of aborting; partial failures are
// collected as error strings on the result and never escape Process.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"granolasync/internal/extract"
	"granolasync/internal/hubspot"
	"granolasync/internal/notes"
)

type Extractor interface {
	Extract(ctx context.Context, transcript string, attendeeEmails []string) (extract.Data, error)
}

// CRM is the mutating slice of the HubSpot client the processor needs.
// Searching is the resolvers' concern.
type CRM interface {
	CreateContact(ctx context.Context, data extract.Contact) (*hubspot.Contact, error)
	UpdateContact(ctx context.Context, contactID string, data extract.Contact) (*hubspot.Contact, error)
	SearchDealByName(ctx context.Context, dealName string) (*hubspot.Deal, error)
	CreateDeal(ctx context.Context, data extract.Deal, contactID string) (*hubspot.Deal, error)
	AddNoteToContact(ctx context.Context, contactID, noteBody string) error
	AddNoteToDeal(ctx context.Context, dealID, noteBody string) error
	ContactURL(contactID string) string
	DealURL(dealID string) string
}

// Payload is one transcript to process. Transcript is required; the caller
// validates that before invoking the processor. Attendees may mix emails and
// plain names; only entries containing '@' are treated as email hints.
type Payload struct {
	Transcript string   `json:"transcript"`
	Title      string   `json:"title,omitempty"`
	Date       string   `json:"date,omitempty"`
	Attendees  []string `json:"attendees,omitempty"`
}

type ContactOutcome struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	URL    string `json:"url"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

type DealOutcome struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	URL    string `json:"url"`
}

type SyncOutcome struct {
	Contacts  []ContactOutcome `json:"contacts"`
	Deal      *DealOutcome     `json:"deal,omitempty"`
	NoteAdded bool             `json:"noteAdded"`
}

// Result is the processor's sole output. Success=false means extraction
// failed or nothing at all reached the CRM; Errors lists recoverable failures
// and may be non-empty even when Success is true.
type Result struct {
	Success   bool         `json:"success"`
	Extracted extract.Data `json:"extracted"`
	HubSpot   SyncOutcome  `json:"hubspot"`
	Errors    []string     `json:"errors,omitempty"`
}

type Service struct {
	extractor Extractor
	crm       CRM
	resolvers []ContactResolver
	logger    *slog.Logger
}

func New(extractor Extractor, crm CRM, resolvers []ContactResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		crm:       crm,
		resolvers: resolvers,
		logger:    logger,
	}
}

// Process runs the full pipeline for one payload. CRM writes are real and not
// rolled back; a later failure never undoes an earlier write.
func (s *Service) Process(ctx context.Context, payload Payload) Result {
	attendeeEmails := emailHints(payload.Attendees)

	extracted, err := s.extractor.Extract(ctx, payload.Transcript, attendeeEmails)
	if err != nil {
		s.logger.Error("extraction failed", "error", err)
		return Result{
			Success:   false,
			Extracted: extract.EmptyData(),
			HubSpot:   SyncOutcome{Contacts: []ContactOutcome{}},
			Errors:    []string{"Extraction failed: " + err.Error()},
		}
	}

	extracted.MeetingDate = payload.Date
	extracted.MeetingTitle = payload.Title
	extracted.Contacts = reconcileAttendees(extracted.Contacts, attendeeEmails)

	result := Result{
		Success:   true,
		Extracted: extracted,
		HubSpot:   SyncOutcome{Contacts: []ContactOutcome{}},
	}

	var errs []string
	var contactIDs []string

	for _, contact := range extracted.Contacts {
		if contact.Empty() {
			continue
		}
		outcome, err := s.syncContact(ctx, contact)
		if err != nil {
			identifier := contact.Email
			if identifier == "" {
				identifier = contact.FullName()
			}
			errs = append(errs, fmt.Sprintf("Contact sync failed for %s: %s", identifier, err.Error()))
			s.logger.Error("contact sync failed", "contact", identifier, "error", err)
			continue
		}
		result.HubSpot.Contacts = append(result.HubSpot.Contacts, outcome)
		contactIDs = append(contactIDs, outcome.ID)
	}

	var dealID string
	if extracted.Deal.Name != "" {
		outcome, err := s.syncDeal(ctx, extracted.Deal, contactIDs)
		if err != nil {
			errs = append(errs, "Deal sync failed: "+err.Error())
			s.logger.Error("deal sync failed", "deal", extracted.Deal.Name, "error", err)
		} else {
			result.HubSpot.Deal = outcome
			dealID = outcome.ID
		}
	}

	noteBody := notes.Build(extracted)
	for _, contactID := range contactIDs {
		if err := s.crm.AddNoteToContact(ctx, contactID, noteBody); err != nil {
			errs = append(errs, fmt.Sprintf("Failed to add note to contact %s: %s", contactID, err.Error()))
			s.logger.Error("failed to add note to contact", "contact_id", contactID, "error", err)
			continue
		}
		result.HubSpot.NoteAdded = true
	}
	if dealID != "" {
		if err := s.crm.AddNoteToDeal(ctx, dealID, noteBody); err != nil {
			errs = append(errs, "Failed to add note to deal: "+err.Error())
			s.logger.Error("failed to add note to deal", "deal_id", dealID, "error", err)
		} else {
			result.HubSpot.NoteAdded = true
		}
	}

	result.Errors = errs
	// A run that extracted data but synced nothing is a failure even with an
	// empty error list.
	result.Success = len(contactIDs) > 0 || dealID != ""

	return result
}

func (s *Service) syncContact(ctx context.Context, contact extract.Contact) (ContactOutcome, error) {
	var existing *hubspot.Contact
	for _, resolver := range s.resolvers {
		found, err := resolver.Resolve(ctx, contact)
		if err != nil {
			return ContactOutcome{}, err
		}
		if found != nil {
			existing = found
			break
		}
	}

	if existing != nil {
		updated, err := s.crm.UpdateContact(ctx, existing.ID, contact)
		if err != nil {
			return ContactOutcome{}, err
		}
		s.logger.Info("updated existing contact", "id", updated.ID, "email", contact.Email)
		return ContactOutcome{
			ID:     updated.ID,
			Action: "updated",
			URL:    s.crm.ContactURL(updated.ID),
			Email:  contact.Email,
			Name:   contact.FullName(),
		}, nil
	}

	created, err := s.crm.CreateContact(ctx, contact)
	if err != nil {
		return ContactOutcome{}, err
	}
	s.logger.Info("created new contact", "id", created.ID, "email", contact.Email)
	return ContactOutcome{
		ID:     created.ID,
		Action: "created",
		URL:    s.crm.ContactURL(created.ID),
		Email:  contact.Email,
		Name:   contact.FullName(),
	}, nil
}

// syncDeal finds a deal by name and reuses it untouched, or creates one
// associated with the first synced contact. Found deals keep their original
// stage and amount; the first-created record is the source of truth.
func (s *Service) syncDeal(ctx context.Context, deal extract.Deal, contactIDs []string) (*DealOutcome, error) {
	existing, err := s.crm.SearchDealByName(ctx, deal.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("found existing deal", "id", existing.ID, "name", deal.Name)
		return &DealOutcome{ID: existing.ID, Action: "found", URL: s.crm.DealURL(existing.ID)}, nil
	}

	firstContactID := ""
	if len(contactIDs) > 0 {
		firstContactID = contactIDs[0]
	}
	created, err := s.crm.CreateDeal(ctx, deal, firstContactID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("created new deal", "id", created.ID, "name", deal.Name)
	return &DealOutcome{ID: created.ID, Action: "created", URL: s.crm.DealURL(created.ID)}, nil
}

// emailHints keeps the attendee entries that look like emails.
func emailHints(attendees []string) []string {
	var emails []string
	for _, attendee := range attendees {
		attendee = strings.TrimSpace(attendee)
		if strings.Contains(attendee, "@") {
			emails = append(emails, attendee)
		}
	}
	return emails
}

// reconcileAttendees appends a bare contact for every attendee email the
// extraction missed, so explicitly-provided attendees are always synced.
func reconcileAttendees(contacts []extract.Contact, attendeeEmails []string) []extract.Contact {
	if len(attendeeEmails) == 0 {
		return contacts
	}
	seen := make(map[string]struct{}, len(contacts))
	for _, contact := range contacts {
		if contact.Email != "" {
			seen[strings.ToLower(contact.Email)] = struct{}{}
		}
	}
	for _, email := range attendeeEmails {
		if _, ok := seen[strings.ToLower(email)]; ok {
			continue
		}
		contacts = append(contacts, extract.Contact{Email: email})
	}
	return contacts
}
