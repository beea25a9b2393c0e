package extract

// Contact is one external attendee pulled out of a transcript. Every field is
// optional; a contact with no email and no name carries no identity and is
// skipped during CRM sync.
type Contact struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
	JobTitle  string `json:"jobTitle,omitempty"`
}

// Empty reports whether the contact has none of the identifying fields set.
func (c Contact) Empty() bool {
	return c.Email == "" && c.FirstName == "" && c.LastName == ""
}

// FullName joins the non-empty name parts with a space.
func (c Contact) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

// Deal stages the model is allowed to emit.
const (
	StageDiscovery     = "discovery"
	StageQualification = "qualification"
	StageProposal      = "proposal"
	StageNegotiation   = "negotiation"
	StageClosedWon     = "closed_won"
	StageClosedLost    = "closed_lost"
)

// Deal is the at-most-one deal mentioned in a transcript. A deal without a
// name is never synced. Notes is free text folded into the call note, not a
// CRM field.
type Deal struct {
	Name      string  `json:"name,omitempty"`
	Stage     string  `json:"stage,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	CloseDate string  `json:"closeDate,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// Manufacturing holds product/production details used downstream for ticket
// descriptions; none of it is synced to the CRM.
type Manufacturing struct {
	Products     []string `json:"products"`
	Quantities   string   `json:"quantities,omitempty"`
	Materials    []string `json:"materials,omitempty"`
	Timeline     string   `json:"timeline,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
	Concerns     []string `json:"concerns,omitempty"`
}

// CreativeInfo holds design direction captured for follow-up work.
type CreativeInfo struct {
	Themes        []string `json:"themes,omitempty"`
	Inspiration   []string `json:"inspiration,omitempty"`
	Colors        []string `json:"colors,omitempty"`
	BrandElements []string `json:"brandElements,omitempty"`
	SocialLinks   []string `json:"socialLinks,omitempty"`
	WebsiteLinks  []string `json:"websiteLinks,omitempty"`
}

// Data is the full structured extraction for one transcript. MeetingDate and
// MeetingTitle are copied from the request payload, never model-derived.
type Data struct {
	Contacts      []Contact      `json:"contacts"`
	Deal          Deal           `json:"deal"`
	CallSummary   string         `json:"callSummary"`
	ActionItems   []string       `json:"actionItems"`
	NextSteps     []string       `json:"nextSteps"`
	Sentiment     string         `json:"sentiment"`
	MeetingDate   string         `json:"meetingDate,omitempty"`
	MeetingTitle  string         `json:"meetingTitle,omitempty"`
	Manufacturing *Manufacturing `json:"manufacturing,omitempty"`
	CreativeInfo  *CreativeInfo  `json:"creativeInfo,omitempty"`
}

// EmptyData is the extraction-shaped zero value returned on the fatal path.
func EmptyData() Data {
	return Data{
		Contacts:    []Contact{},
		ActionItems: []string{},
		NextSteps:   []string{},
		Sentiment:   "neutral",
	}
}
