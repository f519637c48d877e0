package domain

import "time"

// VerdictEvent is the JSON message broadcast to verdict stream subscribers
// after every completed check.
type VerdictEvent struct {
	AppID            string    `json:"app_id,omitempty"`
	InstalledVersion string    `json:"installed_version"`
	PublishedVersion string    `json:"published_version,omitempty"`
	StoreID          int64     `json:"store_id,omitempty"`
	Alert            AlertType `json:"alert"`
	Reason           Reason    `json:"reason,omitempty"`
	CheckedAt        time.Time `json:"checked_at"`
}

// ErrorEvent is broadcast when a check fails before a verdict is produced.
type ErrorEvent struct {
	Error     string    `json:"error"`
	ErrorCode string    `json:"error_code,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// NewVerdictEvent flattens a verdict into its wire form.
func NewVerdictEvent(appID, installed string, v Verdict, at time.Time) VerdictEvent {
	ev := VerdictEvent{
		AppID:            appID,
		InstalledVersion: installed,
		PublishedVersion: v.PublishedVersion(),
		Alert:            v.Alert,
		Reason:           v.Reason,
		CheckedAt:        at.UTC(),
	}
	if v.Metadata != nil {
		ev.StoreID = v.Metadata.StoreID
	}
	return ev
}

// NewErrorEvent describes a failed check.
func NewErrorEvent(err error, at time.Time) ErrorEvent {
	ev := ErrorEvent{ErrorCode: ErrorCode(err), CheckedAt: at.UTC()}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
