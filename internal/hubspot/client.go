package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"granolasync/internal/extract"
)

// HubSpot-defined association type ids for note engagements.
const (
	noteToContactAssociation = 202
	noteToDealAssociation    = 214
)

// StageMapping translates the extraction stage vocabulary to HubSpot's
// default pipeline stage ids. Stages outside this table are omitted from
// create payloads.
var StageMapping = map[string]string{
	extract.StageDiscovery:     "appointmentscheduled",
	extract.StageQualification: "qualifiedtobuy",
	extract.StageProposal:      "presentationscheduled",
	extract.StageNegotiation:   "decisionmakerboughtin",
	extract.StageClosedWon:     "closedwon",
	extract.StageClosedLost:    "closedlost",
}

var contactProperties = []string{"firstname", "lastname", "email", "phone", "company", "jobtitle"}
var dealProperties = []string{"dealname", "dealstage", "amount", "closedate"}

type ObserverFunc func(endpoint string, status int, duration time.Duration)

type Option func(*Client)

type Client struct {
	baseURL     string
	accessToken string
	portalID    string
	httpClient  *http.Client
	logger      *slog.Logger
	observer    ObserverFunc
}

// APIError carries the HTTP status of a failed HubSpot call. Every failure is
// recoverable from the pipeline's point of view.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot api error: %d - %s", e.StatusCode, e.Body)
}

type Contact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type Deal struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL, accessToken, portalID string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: strings.TrimSpace(accessToken),
		portalID:    strings.TrimSpace(portalID),
		httpClient:  httpClient,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SearchContactByEmail looks a contact up by exact email. Returns nil without
// error when the email is empty or nothing matches.
func (c *Client) SearchContactByEmail(ctx context.Context, email string) (*Contact, error) {
	if email == "" {
		return nil, nil
	}
	return c.searchContacts(ctx, searchRequest{
		FilterGroups: []filterGroup{{Filters: []filter{
			{PropertyName: "email", Operator: "EQ", Value: email},
		}}},
		Properties: contactProperties,
	})
}

// SearchContactByName does a token-containment search on the provided name
// fragments. First result wins; false positives on common names are an
// accepted tradeoff.
func (c *Client) SearchContactByName(ctx context.Context, firstName, lastName string) (*Contact, error) {
	if firstName == "" && lastName == "" {
		return nil, nil
	}
	var filters []filter
	if firstName != "" {
		filters = append(filters, filter{PropertyName: "firstname", Operator: "CONTAINS_TOKEN", Value: firstName})
	}
	if lastName != "" {
		filters = append(filters, filter{PropertyName: "lastname", Operator: "CONTAINS_TOKEN", Value: lastName})
	}
	return c.searchContacts(ctx, searchRequest{
		FilterGroups: []filterGroup{{Filters: filters}},
		Properties:   contactProperties,
	})
}

func (c *Client) searchContacts(ctx context.Context, req searchRequest) (*Contact, error) {
	var result struct {
		Results []Contact `json:"results"`
	}
	if err := c.request(ctx, "contacts_search", http.MethodPost, "/crm/v3/objects/contacts/search", req, &result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, nil
	}
	return &result.Results[0], nil
}

func (c *Client) CreateContact(ctx context.Context, data extract.Contact) (*Contact, error) {
	properties := map[string]string{}
	setIfPresent(properties, "firstname", data.FirstName)
	setIfPresent(properties, "lastname", data.LastName)
	setIfPresent(properties, "email", data.Email)
	setIfPresent(properties, "phone", data.Phone)
	setIfPresent(properties, "company", data.Company)
	setIfPresent(properties, "jobtitle", data.JobTitle)

	var result Contact
	if err := c.request(ctx, "contacts_create", http.MethodPost, "/crm/v3/objects/contacts", map[string]any{"properties": properties}, &result); err != nil {
		return nil, err
	}
	c.logger.Info("created hubspot contact", "id", result.ID)
	return &result, nil
}

// UpdateContact patches the non-empty fields of data onto an existing record.
// Email is the identity key and is never written. With nothing to update, no
// request is made.
func (c *Client) UpdateContact(ctx context.Context, contactID string, data extract.Contact) (*Contact, error) {
	properties := map[string]string{}
	setIfPresent(properties, "firstname", data.FirstName)
	setIfPresent(properties, "lastname", data.LastName)
	setIfPresent(properties, "phone", data.Phone)
	setIfPresent(properties, "company", data.Company)
	setIfPresent(properties, "jobtitle", data.JobTitle)

	if len(properties) == 0 {
		c.logger.Info("no properties to update for contact", "id", contactID)
		return &Contact{ID: contactID, Properties: map[string]string{}}, nil
	}

	var result Contact
	if err := c.request(ctx, "contacts_update", http.MethodPatch, "/crm/v3/objects/contacts/"+contactID, map[string]any{"properties": properties}, &result); err != nil {
		return nil, err
	}
	c.logger.Info("updated hubspot contact", "id", result.ID)
	return &result, nil
}

func (c *Client) SearchDealByName(ctx context.Context, dealName string) (*Deal, error) {
	if dealName == "" {
		return nil, nil
	}
	var result struct {
		Results []Deal `json:"results"`
	}
	err := c.request(ctx, "deals_search", http.MethodPost, "/crm/v3/objects/deals/search", searchRequest{
		FilterGroups: []filterGroup{{Filters: []filter{
			{PropertyName: "dealname", Operator: "CONTAINS_TOKEN", Value: dealName},
		}}},
		Properties: dealProperties,
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, nil
	}
	return &result.Results[0], nil
}

// CreateDeal creates a deal from the extracted fields and, when a contact id
// is given, associates the two. A failed association is logged and swallowed;
// the deal itself already exists at that point.
func (c *Client) CreateDeal(ctx context.Context, data extract.Deal, contactID string) (*Deal, error) {
	properties := map[string]string{}
	setIfPresent(properties, "dealname", data.Name)
	if mapped, ok := StageMapping[data.Stage]; ok {
		properties["dealstage"] = mapped
	}
	if data.Amount != 0 {
		properties["amount"] = strconv.FormatFloat(data.Amount, 'f', -1, 64)
	}
	setIfPresent(properties, "closedate", data.CloseDate)

	var result Deal
	if err := c.request(ctx, "deals_create", http.MethodPost, "/crm/v3/objects/deals", map[string]any{"properties": properties}, &result); err != nil {
		return nil, err
	}

	if contactID != "" {
		path := fmt.Sprintf("/crm/v3/objects/deals/%s/associations/contacts/%s/deal_to_contact", result.ID, contactID)
		if err := c.request(ctx, "deals_associate", http.MethodPatch, path, nil, nil); err != nil {
			c.logger.Warn("failed to associate deal with contact", "error", err, "deal_id", result.ID, "contact_id", contactID)
		}
	}

	c.logger.Info("created hubspot deal", "id", result.ID)
	return &result, nil
}

func (c *Client) AddNoteToContact(ctx context.Context, contactID, noteBody string) error {
	if err := c.createNote(ctx, contactID, noteBody, noteToContactAssociation); err != nil {
		return err
	}
	c.logger.Info("added note to contact", "contact_id", contactID)
	return nil
}

func (c *Client) AddNoteToDeal(ctx context.Context, dealID, noteBody string) error {
	if err := c.createNote(ctx, dealID, noteBody, noteToDealAssociation); err != nil {
		return err
	}
	c.logger.Info("added note to deal", "deal_id", dealID)
	return nil
}

func (c *Client) createNote(ctx context.Context, targetID, noteBody string, associationTypeID int) error {
	body := map[string]any{
		"properties": map[string]any{
			"hs_timestamp": time.Now().UnixMilli(),
			"hs_note_body": noteBody,
		},
		"associations": []map[string]any{
			{
				"to": map[string]string{"id": targetID},
				"types": []map[string]any{
					{
						"associationCategory": "HUBSPOT_DEFINED",
						"associationTypeId":   associationTypeID,
					},
				},
			},
		},
	}
	return c.request(ctx, "notes_create", http.MethodPost, "/crm/v3/objects/notes", body, nil)
}

func (c *Client) ContactURL(contactID string) string {
	return fmt.Sprintf("https://app.hubspot.com/contacts/%s/contact/%s", c.portalID, contactID)
}

func (c *Client) DealURL(dealID string) string {
	return fmt.Sprintf("https://app.hubspot.com/contacts/%s/deal/%s", c.portalID, dealID)
}

func (c *Client) request(ctx context.Context, op, method, endpoint string, body, out any) error {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe(op, statusCode, time.Since(started)) }()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: truncateBody(buf.String())}
	}

	if out != nil {
		if err := json.Unmarshal(buf.Bytes(), out); err != nil {
			return fmt.Errorf("invalid hubspot response: %w", err)
		}
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, duration)
	}
}

func setIfPresent(properties map[string]string, key, value string) {
	if value != "" {
		properties[key] = value
	}
}

func truncateBody(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4096 {
		return s
	}
	return s[:4096] + "..."
}
