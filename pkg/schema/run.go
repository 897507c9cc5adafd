package schema

// RunInput is the inbound prediction payload for one flow invocation.
// Question and Form are mutually exclusive.
type RunInput struct {
	Question       string         `json:"question,omitempty"`
	Form           map[string]any `json:"form,omitempty"`
	HumanInput     *HumanInput    `json:"humanInput,omitempty"`
	OverrideConfig map[string]any `json:"overrideConfig,omitempty"`
	SessionID      string         `json:"sessionId,omitempty"`
	LeadEmail      string         `json:"leadEmail,omitempty"`
}

// HumanInput resumes a stopped execution at a human-input node.
type HumanInput struct {
	Type        string `json:"type"` // "proceed" | "reject"
	StartNodeID string `json:"startNodeId"`
	Feedback    string `json:"feedback,omitempty"`
}

// Human input response types.
const (
	HumanInputProceed = "proceed"
	HumanInputReject  = "reject"
)
