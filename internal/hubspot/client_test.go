package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"granolasync/internal/extract"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

// newTestClient spins up a server that answers every request with response and
// records what arrived.
func newTestClient(t *testing.T, status int, response string) (*Client, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		rec := recordedRequest{method: r.Method, path: r.URL.Path}
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &rec.body))
		}
		requests = append(requests, rec)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return New(server.URL, "token", "12345", server.Client()), &requests
}

func TestSearchContactByEmail(t *testing.T) {
	client, requests := newTestClient(t, http.StatusOK,
		`{"results":[{"id":"101","properties":{"email":"jane@x.com"}}]}`)

	contact, err := client.SearchContactByEmail(context.Background(), "jane@x.com")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "101", contact.ID)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/crm/v3/objects/contacts/search", req.path)

	groups := req.body["filterGroups"].([]any)
	filters := groups[0].(map[string]any)["filters"].([]any)
	first := filters[0].(map[string]any)
	assert.Equal(t, "email", first["propertyName"])
	assert.Equal(t, "EQ", first["operator"])
	assert.Equal(t, "jane@x.com", first["value"])
}

func TestSearchContactByEmailNoMatch(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, `{"results":[]}`)

	contact, err := client.SearchContactByEmail(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestSearchContactByEmailEmptySkipsRequest(t *testing.T) {
	client, requests := newTestClient(t, http.StatusOK, `{}`)

	contact, err := client.SearchContactByEmail(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, contact)
	assert.Empty(t, *requests)
}

func TestSearchContactByNameUsesTokenFilters(t *testing.T) {
	client, requests := newTestClient(t, http.StatusOK, `{"results":[{"id":"102"}]}`)

	contact, err := client.SearchContactByName(context.Background(), "Jane", "Doe")
	require.NoError(t, err)
	require.NotNil(t, contact)

	groups := (*requests)[0].body["filterGroups"].([]any)
	filters := groups[0].(map[string]any)["filters"].([]any)
	require.Len(t, filters, 2)
	assert.Equal(t, "CONTAINS_TOKEN", filters[0].(map[string]any)["operator"])
	assert.Equal(t, "firstname", filters[0].(map[string]any)["propertyName"])
	assert.Equal(t, "lastname", filters[1].(map[string]any)["propertyName"])
}

func TestCreateContactSendsAllProperties(t *testing.T) {
	client, requests := newTestClient(t, http.StatusCreated, `{"id":"201"}`)

	contact, err := client.CreateContact(context.Background(), extract.Contact{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@x.com",
		Phone:     "555",
		Company:   "Acme",
		JobTitle:  "CEO",
	})
	require.NoError(t, err)
	assert.Equal(t, "201", contact.ID)

	props := (*requests)[0].body["properties"].(map[string]any)
	assert.Equal(t, map[string]any{
		"firstname": "Jane",
		"lastname":  "Doe",
		"email":     "jane@x.com",
		"phone":     "555",
		"company":   "Acme",
		"jobtitle":  "CEO",
	}, props)
}

func TestUpdateContactNeverWritesEmail(t *testing.T) {
	client, requests := newTestClient(t, http.StatusOK, `{"id":"101"}`)

	_, err := client.UpdateContact(context.Background(), "101", extract.Contact{
		Email: "new@x.com",
		Phone: "555",
	})
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Equal(t, http.MethodPatch, req.method)
	assert.Equal(t, "/crm/v3/objects/contacts/101", req.path)
	props := req.body["properties"].(map[string]any)
	assert.NotContains(t, props, "email")
	assert.Equal(t, "555", props["phone"])
}

func TestUpdateContactNothingToUpdate(t *testing.T) {
	client, requests := newTestClient(t, http.StatusOK, `{}`)

	contact, err := client.UpdateContact(context.Background(), "101", extract.Contact{Email: "only@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "101", contact.ID)
	assert.Empty(t, *requests, "empty patch must not hit the API")
}

func TestCreateDealMapsStageAndAmount(t *testing.T) {
	client, requests := newTestClient(t, http.StatusCreated, `{"id":"301"}`)

	deal, err := client.CreateDeal(context.Background(), extract.Deal{
		Name:      "Merch Drop",
		Stage:     extract.StageNegotiation,
		Amount:    10500.5,
		CloseDate: "2026-09-30",
	}, "101")
	require.NoError(t, err)
	assert.Equal(t, "301", deal.ID)

	require.Len(t, *requests, 2)
	props := (*requests)[0].body["properties"].(map[string]any)
	assert.Equal(t, "decisionmakerboughtin", props["dealstage"])
	assert.Equal(t, "10500.5", props["amount"])
	assert.Equal(t, "2026-09-30", props["closedate"])

	assoc := (*requests)[1]
	assert.Equal(t, http.MethodPatch, assoc.method)
	assert.Equal(t, "/crm/v3/objects/deals/301/associations/contacts/101/deal_to_contact", assoc.path)
}

func TestCreateDealOmitsUnmappedStageAndZeroAmount(t *testing.T) {
	client, requests := newTestClient(t, http.StatusCreated, `{"id":"302"}`)

	_, err := client.CreateDeal(context.Background(), extract.Deal{Name: "Merch Drop", Stage: "daydream"}, "")
	require.NoError(t, err)

	require.Len(t, *requests, 1, "no association without a contact id")
	props := (*requests)[0].body["properties"].(map[string]any)
	assert.NotContains(t, props, "dealstage")
	assert.NotContains(t, props, "amount")
}

func TestAddNoteAssociations(t *testing.T) {
	client, requests := newTestClient(t, http.StatusCreated, `{"id":"401"}`)

	require.NoError(t, client.AddNoteToContact(context.Background(), "101", "body"))
	require.NoError(t, client.AddNoteToDeal(context.Background(), "301", "body"))

	require.Len(t, *requests, 2)
	for i, wantType := range []float64{202, 214} {
		req := (*requests)[i]
		assert.Equal(t, "/crm/v3/objects/notes", req.path)
		props := req.body["properties"].(map[string]any)
		assert.Equal(t, "body", props["hs_note_body"])
		assert.NotZero(t, props["hs_timestamp"])
		assoc := req.body["associations"].([]any)[0].(map[string]any)
		typeID := assoc["types"].([]any)[0].(map[string]any)["associationTypeId"]
		assert.Equal(t, wantType, typeID)
	}
}

func TestAPIErrorOnFailureStatus(t *testing.T) {
	client, _ := newTestClient(t, http.StatusBadRequest, `{"message":"bad property"}`)

	_, err := client.CreateContact(context.Background(), extract.Contact{Email: "jane@x.com"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad property")
}

func TestRecordURLs(t *testing.T) {
	client := New("https://api.example.com", "token", "8634406", nil)
	assert.Equal(t, "https://app.hubspot.com/contacts/8634406/contact/101", client.ContactURL("101"))
	assert.Equal(t, "https://app.hubspot.com/contacts/8634406/deal/301", client.DealURL("301"))
}
