package types

// TabID is the integer identifier assigned to a browser tab for its lifetime.
type TabID int

// Tab describes an open browser tab.
type Tab struct {
	ID       TabID  `json:"id"`
	TargetID string `json:"target_id,omitempty"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Active   bool   `json:"active"`
}

// TabQuery filters tabs. A zero value matches every open tab.
type TabQuery struct {
	Active        bool
	CurrentWindow bool
	URLPattern    string
}

// RequestDetails is an intercepted outgoing network request.
type RequestDetails struct {
	URL   string
	TabID TabID
}

// TabInfoProvider is an interface for looking up tab information by ID.
// The api package resolves message senders through it without importing cdp.
type TabInfoProvider interface {
	Tab(id TabID) (Tab, bool)
}
