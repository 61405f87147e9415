package models

// ConsentState is the visitor's tracking consent, passed explicitly by the
// caller to whatever loads analytics or marketing integrations.
type ConsentState struct {
	Analytics bool `json:"analytics"`
	Marketing bool `json:"marketing"`
}

// DeniedConsent is the state before the visitor has made a choice.
var DeniedConsent = ConsentState{}

// Any reports whether at least one tracking category is allowed.
func (c ConsentState) Any() bool {
	return c.Analytics || c.Marketing
}
