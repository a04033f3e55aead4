package model

type Action string // "Block", "Reject", "Accept"

const (
	Block  Action = "Block"
	Reject Action = "Reject"
	Accept Action = "Accept"
)

// Any is exported when a rule carries no reference of a given kind.
const Any = "Any"

// UnknownObject is what a reference resolves to when its GUID is not indexed.
const UnknownObject = "Unknown Object"

type Rule struct {
	ID           int
	Enabled      string // "true", "false" or the raw activation code
	Name         string
	Description  string
	Sources      []string // sorted, deduplicated
	Destinations []string
	Services     []string
	Action       Action
	Log          string
	NAT          string // source translation "Enabled" attribute, "false" if absent
	PAT          string // destination translation "Enabled" attribute, "false" if absent
}
