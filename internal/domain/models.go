// Package domain defines the core data types shared across the siren
// fetcher, decision engine, history stores, and orchestrator.
package domain

import "time"

// AlertType constants name the class of update prompt a check produced.
type AlertType string

const (
	AlertForce       AlertType = "force"
	AlertSoft        AlertType = "soft"
	AlertMaintenance AlertType = "maintenance"
	AlertNone        AlertType = "none"
)

// Reason explains a negative (AlertNone) verdict.
type Reason string

const (
	ReasonNoUpdateAvailable Reason = "no_update_available"
	ReasonRecentlyPrompted  Reason = "recently_prompted"
)

// StoreMetadata is the normalized App Store record for the published app.
// It is produced by the fetch layer only after validation, so StoreID,
// Version and ReleaseDate are always set.
type StoreMetadata struct {
	StoreID          int64
	BundleID         string
	Version          string
	ReleaseDate      time.Time
	MinimumOSVersion string
	ReleaseNotes     string
	TrackViewURL     string
}

// History is the persisted per-app prompt state. Zero values mean absent.
type History struct {
	SkippedVersion string
	LastPromptAt   time.Time
}

// HistoryMutation is the change a single evaluation asks the history store
// to apply. A zero mutation changes nothing.
type HistoryMutation struct {
	LastPromptAt time.Time
}

// Empty reports whether the mutation changes nothing.
func (m HistoryMutation) Empty() bool {
	return m.LastPromptAt.IsZero()
}

// Apply returns h with the mutation applied.
func (m HistoryMutation) Apply(h History) History {
	if !m.LastPromptAt.IsZero() {
		h.LastPromptAt = m.LastPromptAt
	}
	return h
}

// Verdict is the single outcome of an evaluation. Metadata is nil when the
// store returned no record for the app. Reason is set only for AlertNone.
type Verdict struct {
	Alert    AlertType
	Metadata *StoreMetadata
	Reason   Reason
}

// Force builds a forced-update verdict.
func Force(md *StoreMetadata) Verdict { return Verdict{Alert: AlertForce, Metadata: md} }

// Soft builds an optional-update verdict.
func Soft(md *StoreMetadata) Verdict { return Verdict{Alert: AlertSoft, Metadata: md} }

// Maintenance builds a verdict for a store build that is itself below the
// minimum required version.
func Maintenance(md *StoreMetadata) Verdict { return Verdict{Alert: AlertMaintenance, Metadata: md} }

// None builds a negative verdict.
func None(reason Reason) Verdict { return Verdict{Alert: AlertNone, Reason: reason} }

// Actionable reports whether the verdict should be shown to the user.
func (v Verdict) Actionable() bool {
	return v.Alert != AlertNone && v.Alert != ""
}

// PublishedVersion returns the store version carried by the verdict, if any.
func (v Verdict) PublishedVersion() string {
	if v.Metadata == nil {
		return ""
	}
	return v.Metadata.Version
}

// CheckRecord is one entry of the persisted check log.
type CheckRecord struct {
	ID               int64
	AppID            string
	InstalledVersion string
	PublishedVersion string
	Alert            AlertType
	Reason           Reason
	CheckedAt        time.Time
}
