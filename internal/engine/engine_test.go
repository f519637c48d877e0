package engine

import (
	"testing"
	"time"

	"github.com/koltyakov/siren/internal/domain"
	"github.com/koltyakov/siren/internal/policy"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func published(version string) *domain.StoreMetadata {
	return &domain.StoreMetadata{
		StoreID:     123456789,
		BundleID:    "com.example.app",
		Version:     version,
		ReleaseDate: testNow.Add(-72 * time.Hour),
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	yesterday := testNow.Add(-25 * time.Hour)
	tests := []struct {
		name       string
		in         Input
		wantAlert  domain.AlertType
		wantReason domain.Reason
		wantMutate bool
	}{
		{
			name:      "mandatory forces below minimum",
			in:        Input{Installed: "1.0", Policy: policy.MandatoryOnly{MinimumRequired: "2.0"}, Published: published("2.1")},
			wantAlert: domain.AlertForce, wantMutate: true,
		},
		{
			name:      "mandatory forces without store record",
			in:        Input{Installed: "1.0", Policy: policy.MandatoryOnly{MinimumRequired: "2.0"}},
			wantAlert: domain.AlertForce, wantMutate: true,
		},
		{
			name:      "mandatory maintenance when store build is too old",
			in:        Input{Installed: "1.0", Policy: policy.MandatoryOnly{MinimumRequired: "2.0"}, Published: published("1.9")},
			wantAlert: domain.AlertMaintenance, wantMutate: true,
		},
		{
			name:      "maintenance even when installed meets minimum",
			in:        Input{Installed: "2.0", Policy: policy.MandatoryOnly{MinimumRequired: "2.0"}, Published: published("1.9")},
			wantAlert: domain.AlertMaintenance, wantMutate: true,
		},
		{
			name:       "mandatory satisfied",
			in:         Input{Installed: "2.0", Policy: policy.MandatoryOnly{MinimumRequired: "2.0"}, Published: published("2.5")},
			wantAlert:  domain.AlertNone,
			wantReason: domain.ReasonNoUpdateAvailable,
		},
		{
			name:      "optional first prompt",
			in:        Input{Installed: "1.0", Policy: policy.OptionalOnly{Recommended: "2.0"}, Published: published("2.0"), Frequency: policy.Daily},
			wantAlert: domain.AlertSoft, wantMutate: true,
		},
		{
			name:      "optional without store record",
			in:        Input{Installed: "1.0", Policy: policy.OptionalOnly{Recommended: "2.0"}, Frequency: policy.Daily},
			wantAlert: domain.AlertSoft, wantMutate: true,
		},
		{
			name:       "optional store not newer than installed",
			in:         Input{Installed: "1.5", Policy: policy.OptionalOnly{Recommended: "2.0"}, Published: published("1.5")},
			wantAlert:  domain.AlertNone,
			wantReason: domain.ReasonNoUpdateAvailable,
		},
		{
			name:       "optional already at recommended",
			in:         Input{Installed: "2.0", Policy: policy.OptionalOnly{Recommended: "2.0"}, Published: published("2.2")},
			wantAlert:  domain.AlertNone,
			wantReason: domain.ReasonNoUpdateAvailable,
		},
		{
			name: "optional skipped version",
			in: Input{
				Installed: "1.0", Policy: policy.OptionalOnly{Recommended: "2.0"}, Published: published("2.0"),
				History: domain.History{SkippedVersion: "2.0"}, Frequency: policy.Immediately,
			},
			wantAlert:  domain.AlertNone,
			wantReason: domain.ReasonRecentlyPrompted,
		},
		{
			name: "optional skipped older version still prompts",
			in: Input{
				Installed: "1.0", Policy: policy.OptionalOnly{Recommended: "2.0"}, Published: published("2.0"),
				History: domain.History{SkippedVersion: "1.5"}, Frequency: policy.Immediately,
			},
			wantAlert: domain.AlertSoft, wantMutate: true,
		},
		{
			name: "optional gated",
			in: Input{
				Installed: "1.0", Policy: policy.OptionalOnly{Recommended: "2.0"}, Published: published("2.0"),
				History: domain.History{LastPromptAt: testNow.Add(-2 * time.Hour)}, Frequency: policy.Daily,
			},
			wantAlert:  domain.AlertNone,
			wantReason: domain.ReasonRecentlyPrompted,
		},
		{
			name: "optional gate reopened",
			in: Input{
				Installed: "1.0", Policy: policy.OptionalOnly{Recommended: "2.0"}, Published: published("2.0"),
				History: domain.History{LastPromptAt: yesterday}, Frequency: policy.Daily,
			},
			wantAlert: domain.AlertSoft, wantMutate: true,
		},
		{
			name:      "both prefers force",
			in:        Input{Installed: "1.0", Policy: policy.MandatoryAndOptional{MinimumRequired: "1.5", Recommended: "2.0"}, Published: published("2.0")},
			wantAlert: domain.AlertForce, wantMutate: true,
		},
		{
			name: "both force ignores gate and skip",
			in: Input{
				Installed: "1.0", Policy: policy.MandatoryAndOptional{MinimumRequired: "1.5", Recommended: "2.0"}, Published: published("2.0"),
				History: domain.History{SkippedVersion: "2.0", LastPromptAt: testNow}, Frequency: policy.Weekly,
			},
			wantAlert: domain.AlertForce, wantMutate: true,
		},
		{
			name:      "both falls through to soft",
			in:        Input{Installed: "1.6", Policy: policy.MandatoryAndOptional{MinimumRequired: "1.5", Recommended: "2.0"}, Published: published("2.0")},
			wantAlert: domain.AlertSoft, wantMutate: true,
		},
		{
			name:      "both maintenance",
			in:        Input{Installed: "1.6", Policy: policy.MandatoryAndOptional{MinimumRequired: "2.5", Recommended: "3.0"}, Published: published("2.0")},
			wantAlert: domain.AlertMaintenance, wantMutate: true,
		},
		{
			name:       "both up to date",
			in:         Input{Installed: "2.0", Policy: policy.MandatoryAndOptional{MinimumRequired: "1.5", Recommended: "2.0"}, Published: published("2.0")},
			wantAlert:  domain.AlertNone,
			wantReason: domain.ReasonNoUpdateAvailable,
		},
		{
			name: "store version ignores gate",
			in: Input{
				Installed: "1.0", Policy: policy.NewStoreVersionOnly{}, Published: published("1.1"),
				History: domain.History{SkippedVersion: "1.1", LastPromptAt: testNow}, Frequency: policy.Weekly,
			},
			wantAlert: domain.AlertSoft, wantMutate: true,
		},
		{
			name:       "store version same",
			in:         Input{Installed: "1.1", Policy: policy.NewStoreVersionOnly{}, Published: published("1.1")},
			wantAlert:  domain.AlertNone,
			wantReason: domain.ReasonNoUpdateAvailable,
		},
		{
			name:       "store version without record",
			in:         Input{Installed: "1.1", Policy: policy.NewStoreVersionOnly{}},
			wantAlert:  domain.AlertNone,
			wantReason: domain.ReasonNoUpdateAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := tt.in
			in.Now = testNow
			v, m := Evaluate(in)
			if v.Alert != tt.wantAlert {
				t.Fatalf("alert = %s, want %s", v.Alert, tt.wantAlert)
			}
			if v.Reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", v.Reason, tt.wantReason)
			}
			if v.Metadata != in.Published && v.Actionable() {
				t.Fatalf("actionable verdict must carry the published metadata")
			}
			if tt.wantMutate {
				if !m.LastPromptAt.Equal(testNow) {
					t.Fatalf("mutation LastPromptAt = %v, want %v", m.LastPromptAt, testNow)
				}
			} else if !m.Empty() {
				t.Fatalf("negative verdict mutated history: %+v", m)
			}
		})
	}
}

func TestEvaluateEveryVariant(t *testing.T) {
	t.Parallel()

	for _, p := range policy.Variants() {
		for _, installed := range []string{"1.0", "2.0", "9.9"} {
			for _, pub := range []*domain.StoreMetadata{nil, published("1.0"), published("2.5")} {
				v, m := Evaluate(Input{Installed: installed, Policy: p, Published: pub, Frequency: policy.Daily, Now: testNow})
				switch v.Alert {
				case domain.AlertForce, domain.AlertSoft, domain.AlertMaintenance:
					if v.Reason != "" {
						t.Fatalf("%T: actionable verdict has reason %q", p, v.Reason)
					}
					if m.Empty() {
						t.Fatalf("%T: actionable verdict did not record prompt time", p)
					}
				case domain.AlertNone:
					if v.Reason == "" {
						t.Fatalf("%T: none verdict without reason", p)
					}
					if !m.Empty() {
						t.Fatalf("%T: none verdict mutated history", p)
					}
				default:
					t.Fatalf("%T: unexpected alert %q", p, v.Alert)
				}
			}
		}
	}
}

type rogue struct{ policy.NewStoreVersionOnly }

func TestEvaluatePanicsOnUnknownPolicy(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown policy")
		}
	}()
	Evaluate(Input{Installed: "1.0", Policy: rogue{}, Now: testNow})
}

func TestEvaluateNoUpdateWhenInstalledAtLeastPublished(t *testing.T) {
	t.Parallel()

	for _, p := range policy.Variants() {
		for _, installed := range []string{"9.0", "10.0.1"} {
			v, _ := Evaluate(Input{Installed: installed, Policy: p, Published: published("9.0"), Now: testNow})
			if v.Alert == domain.AlertSoft {
				t.Fatalf("%T: soft prompt for installed %s with store 9.0", p, installed)
			}
		}
	}
}

func TestGatePasses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		last time.Time
		freq policy.Frequency
		want bool
	}{
		{"never prompted", time.Time{}, policy.Weekly, true},
		{"immediately", testNow, policy.Immediately, true},
		{"immediately with clock skew", testNow.Add(48 * time.Hour), policy.Immediately, true},
		{"daily same day", testNow.Add(-23 * time.Hour), policy.Daily, false},
		{"daily exactly one day", testNow.Add(-24 * time.Hour), policy.Daily, true},
		{"weekly six days", testNow.Add(-6*24*time.Hour - 23*time.Hour), policy.Weekly, false},
		{"weekly seven days", testNow.Add(-7 * 24 * time.Hour), policy.Weekly, true},
		{"custom three days", testNow.Add(-3 * 24 * time.Hour), policy.Custom(3), true},
		{"future prompt daily", testNow.Add(time.Hour), policy.Daily, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := GatePasses(domain.History{LastPromptAt: tt.last}, tt.freq, testNow)
			if got != tt.want {
				t.Fatalf("GatePasses = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestElapsedDays(t *testing.T) {
	t.Parallel()

	cases := []struct {
		d    time.Duration
		want int64
	}{
		{0, 0},
		{23 * time.Hour, 0},
		{24 * time.Hour, 1},
		{49 * time.Hour, 2},
		{-time.Hour, -1},
		{-24 * time.Hour, -1},
	}
	for _, tc := range cases {
		if got := ElapsedDays(testNow.Add(-tc.d), testNow); got != tc.want {
			t.Errorf("ElapsedDays(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestNextPromptAt(t *testing.T) {
	t.Parallel()

	last := testNow.Add(-2 * time.Hour)
	got := NextPromptAt(domain.History{LastPromptAt: last}, policy.Daily, testNow)
	if want := last.Add(24 * time.Hour); !got.Equal(want) {
		t.Fatalf("NextPromptAt = %v, want %v", got, want)
	}
	if got := NextPromptAt(domain.History{}, policy.Daily, testNow); !got.IsZero() {
		t.Fatalf("open gate should return zero time, got %v", got)
	}
}
