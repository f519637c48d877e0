package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestVerdictEventJSONKeys(t *testing.T) {
	t.Parallel()

	md := &StoreMetadata{StoreID: 42, Version: "2.0"}
	ev := NewVerdictEvent("com.example.app", "1.0", Soft(md), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"app_id", "installed_version", "published_version", "store_id", "alert", "checked_at"} {
		if _, ok := m[key]; !ok {
			t.Fatalf("missing expected JSON key %q", key)
		}
	}
	if _, ok := m["reason"]; ok {
		t.Fatal("reason should be omitted for actionable verdicts")
	}
	if m["alert"] != "soft" {
		t.Fatalf("alert = %v, want soft", m["alert"])
	}
}

func TestVerdictEventWithoutMetadata(t *testing.T) {
	t.Parallel()

	ev := NewVerdictEvent("", "1.0", None(ReasonNoUpdateAvailable), time.Now())
	if ev.StoreID != 0 || ev.PublishedVersion != "" {
		t.Fatalf("unexpected store fields: %+v", ev)
	}
	if ev.Reason != ReasonNoUpdateAvailable {
		t.Fatalf("reason = %q", ev.Reason)
	}
}

func TestNewErrorEvent(t *testing.T) {
	t.Parallel()

	ev := NewErrorEvent(ErrIncompatibleOSVersion, time.Now())
	if ev.ErrorCode != "incompatible_os_version" || ev.Error != ErrIncompatibleOSVersion.Error() {
		t.Fatalf("unexpected event %+v", ev)
	}
}
