package processor

import (
	"context"

	"granolasync/internal/extract"
	"granolasync/internal/hubspot"
)

// ContactSearcher is the slice of the CRM client the resolvers need.
type ContactSearcher interface {
	SearchContactByEmail(ctx context.Context, email string) (*hubspot.Contact, error)
	SearchContactByName(ctx context.Context, firstName, lastName string) (*hubspot.Contact, error)
}

// ContactResolver maps an extracted contact to an existing CRM record.
// Implementations return nil without error when they have no opinion, so
// resolvers can be chained; the first match wins.
type ContactResolver interface {
	Resolve(ctx context.Context, contact extract.Contact) (*hubspot.Contact, error)
}

// EmailResolver matches by exact email. Email equality is the authoritative
// identity; it runs before any heuristic.
type EmailResolver struct {
	CRM ContactSearcher
}

func (r EmailResolver) Resolve(ctx context.Context, contact extract.Contact) (*hubspot.Contact, error) {
	if contact.Email == "" {
		return nil, nil
	}
	return r.CRM.SearchContactByEmail(ctx, contact.Email)
}

// NameResolver matches by token containment on first/last name. It can
// false-positive on common names, so it runs only after the email resolver
// misses.
type NameResolver struct {
	CRM ContactSearcher
}

func (r NameResolver) Resolve(ctx context.Context, contact extract.Contact) (*hubspot.Contact, error) {
	if contact.FirstName == "" && contact.LastName == "" {
		return nil, nil
	}
	return r.CRM.SearchContactByName(ctx, contact.FirstName, contact.LastName)
}

// DefaultResolvers is the production resolution order: email exact match,
// then fuzzy name match.
func DefaultResolvers(crm ContactSearcher) []ContactResolver {
	return []ContactResolver{EmailResolver{CRM: crm}, NameResolver{CRM: crm}}
}
