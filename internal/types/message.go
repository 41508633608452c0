package types

// MessageKind discriminates messages exchanged with the other extension surfaces.
type MessageKind string

// Inbound kinds, sent to the coordinator.
const (
	KindProcessSyncChange          MessageKind = "processSyncChange"
	KindMaxSelectableDelayChange   MessageKind = "maxSelectableDelayChange"
	KindMaxAcceptableDelayChange   MessageKind = "maxAcceptableDelayChange"
	KindGetCurrentTimeBeforeToggle MessageKind = "getCurrentTimeBeforeToggle"
	KindClearTabStorage            MessageKind = "clearTabStorage"
	KindSetWaitingBadge            MessageKind = "setWaitingBadge"
	KindRemoveWaitingBadge         MessageKind = "removeWaitingBadge"
	KindToggleExtension            MessageKind = "toggleExtension"
	KindAudioDeviceConnected       MessageKind = "performAudioDeviceConnectedActions"
	KindAudioDeviceDisconnected    MessageKind = "performAudioDeviceDisconnectedActions"
)

// Outbound kinds, sent from the coordinator to tabs.
const (
	KindURLChanged                MessageKind = "url-changed"
	KindSyncChanged               MessageKind = "syncChanged"
	KindMaxSelectableDelayChanged MessageKind = "maxSelectableDelayChanged"
	KindMaxAcceptableDelayChanged MessageKind = "maxAcceptableDelayChanged"
	KindGetCurrentTime            MessageKind = "getCurrentTime"
)

var inboundKinds = map[MessageKind]bool{
	KindProcessSyncChange:          true,
	KindMaxSelectableDelayChange:   true,
	KindMaxAcceptableDelayChange:   true,
	KindGetCurrentTimeBeforeToggle: true,
	KindClearTabStorage:            true,
	KindSetWaitingBadge:            true,
	KindRemoveWaitingBadge:         true,
	KindToggleExtension:            true,
	KindAudioDeviceConnected:       true,
	KindAudioDeviceDisconnected:    true,
}

// Inbound reports whether k is one of the kinds the coordinator dispatches.
func (k MessageKind) Inbound() bool {
	return inboundKinds[k]
}

// Message is the wire shape shared by inbound and outbound messages.
type Message struct {
	Message                 MessageKind `json:"message"`
	URL                     *string     `json:"url,omitempty"`
	SyncValue               *float64    `json:"syncValue,omitempty"`
	MaxSelectableDelayValue *float64    `json:"maxSelectableDelayValue,omitempty"`
	MaxAcceptableDelayValue *float64    `json:"maxAcceptableDelayValue,omitempty"`
	AudioDevice             string      `json:"audioDevice,omitempty"`
}

// Sender identifies where an inbound message came from. Tab is nil for
// surfaces that are not a tab (popup, options page, CLI).
type Sender struct {
	Tab *Tab
}

// ResumePoint is the playback position captured before a coordinator-initiated reload.
type ResumePoint struct {
	Time float64 `json:"time"`
	URL  string  `json:"url"`
}

// NotFound is the reply to getCurrentTimeBeforeToggle when no resume point exists.
const NotFound = "notFound"

// IconSet maps icon sizes to image paths.
type IconSet map[string]string

// Notification is a user-visible notification.
type Notification struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Message            string `json:"message"`
	IconURL            string `json:"icon_url,omitempty"`
	RequireInteraction bool   `json:"require_interaction"`
}

// Float returns a pointer to v, for the optional numeric message fields.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
