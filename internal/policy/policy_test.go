package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    Mode
		min     string
		rec     string
		want    Policy
		wantErr bool
	}{
		{"mandatory", ModeMandatoryOnly, "2.0", "", MandatoryOnly{MinimumRequired: "2.0"}, false},
		{"optional", ModeOptionalOnly, "", "2.1", OptionalOnly{Recommended: "2.1"}, false},
		{"both", ModeMandatoryAndOptional, "2.0", "2.1", MandatoryAndOptional{MinimumRequired: "2.0", Recommended: "2.1"}, false},
		{"store", ModeNewStoreVersionOnly, "", "", NewStoreVersionOnly{}, false},
		{"empty mode", "", "", "", NewStoreVersionOnly{}, false},
		{"mixed case", "Mandatory_Only", " 2.0 ", "", MandatoryOnly{MinimumRequired: "2.0"}, false},
		{"v prefix", ModeMandatoryAndOptional, "v2.0", "V2.1", MandatoryAndOptional{MinimumRequired: "2.0", Recommended: "2.1"}, false},
		{"mandatory missing min", ModeMandatoryOnly, "", "", nil, true},
		{"optional missing rec", ModeOptionalOnly, "", "", nil, true},
		{"both missing rec", ModeMandatoryAndOptional, "2.0", "", nil, true},
		{"unknown", "sometimes", "", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.mode, tt.min, tt.rec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestFromThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		min, rec string
		want     Mode
	}{
		{"2.0", "2.1", ModeMandatoryAndOptional},
		{"2.0", "", ModeMandatoryOnly},
		{"", "2.1", ModeOptionalOnly},
		{"", "", ModeNewStoreVersionOnly},
		{"  ", "  ", ModeNewStoreVersionOnly},
	}
	for _, tc := range cases {
		if got := FromThresholds(tc.min, tc.rec).Mode(); got != tc.want {
			t.Errorf("FromThresholds(%q, %q).Mode() = %s, want %s", tc.min, tc.rec, got, tc.want)
		}
	}
}

func TestVariantsCoverEveryMode(t *testing.T) {
	t.Parallel()

	seen := map[Mode]bool{}
	for _, p := range Variants() {
		seen[p.Mode()] = true
		if strings.HasPrefix(Describe(p), "unknown") {
			t.Fatalf("Describe does not handle %T", p)
		}
	}
	for _, m := range []Mode{ModeMandatoryOnly, ModeOptionalOnly, ModeMandatoryAndOptional, ModeNewStoreVersionOnly} {
		if !seen[m] {
			t.Fatalf("Variants() is missing %s", m)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{"immediately", Immediately, false},
		{"Daily", Daily, false},
		{"weekly", Weekly, false},
		{"0", Immediately, false},
		{"3", Custom(3), false},
		{"14d", Custom(14), false},
		{"", 0, true},
		{"-1", 0, true},
		{"fortnightly", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrequencyDaysAndString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		f    Frequency
		days uint
		str  string
	}{
		{Immediately, 0, "immediately"},
		{Daily, 1, "daily"},
		{Weekly, 7, "weekly"},
		{Custom(3), 3, "3d"},
	}
	for _, tc := range cases {
		if tc.f.Days() != tc.days {
			t.Errorf("%v.Days() = %d, want %d", tc.f, tc.f.Days(), tc.days)
		}
		if tc.f.String() != tc.str {
			t.Errorf("String() = %q, want %q", tc.f.String(), tc.str)
		}
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		doc      string
		wantMode Mode
		wantFreq Frequency
		wantErr  string
	}{
		{
			name:     "both with named frequency",
			doc:      `{"mode":"mandatory_and_optional","minimumRequiredVersion":"2.0","recommendedVersion":"2.4","frequency":"weekly"}`,
			wantMode: ModeMandatoryAndOptional,
			wantFreq: Weekly,
		},
		{
			name:     "optional with day count",
			doc:      `{"mode":"optional_only","recommendedVersion":"2.4","frequency":3}`,
			wantMode: ModeOptionalOnly,
			wantFreq: Custom(3),
		},
		{
			name:     "store only defaults to daily",
			doc:      `{"mode":"new_store_version_only"}`,
			wantMode: ModeNewStoreVersionOnly,
			wantFreq: Daily,
		},
		{
			name:    "mandatory without threshold",
			doc:     `{"mode":"mandatory_only"}`,
			wantErr: "invalid policy",
		},
		{
			name:    "unknown mode",
			doc:     `{"mode":"sometimes"}`,
			wantErr: "invalid policy",
		},
		{
			name:    "unknown field",
			doc:     `{"mode":"new_store_version_only","force":true}`,
			wantErr: "invalid policy",
		},
		{
			name:    "negative frequency",
			doc:     `{"mode":"new_store_version_only","frequency":-2}`,
			wantErr: "invalid policy",
		},
		{
			name:    "not JSON",
			doc:     `mode: optional`,
			wantErr: "parse policy JSON",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := ParseJSON([]byte(tt.doc))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if rules.Policy.Mode() != tt.wantMode {
				t.Fatalf("mode = %s, want %s", rules.Policy.Mode(), tt.wantMode)
			}
			if rules.Frequency != tt.wantFreq {
				t.Fatalf("frequency = %v, want %v", rules.Frequency, tt.wantFreq)
			}
		})
	}
}

func TestParseINI(t *testing.T) {
	t.Parallel()

	doc := `
[policy]
mode = mandatory_and_optional
minimum_required_version = 2.0
recommended_version = 2.4

[reprompt]
frequency = weekly
`
	rules, err := ParseINI([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if rules.Policy != (MandatoryAndOptional{MinimumRequired: "2.0", Recommended: "2.4"}) {
		t.Fatalf("policy = %#v", rules.Policy)
	}
	if rules.Frequency != Weekly {
		t.Fatalf("frequency = %v, want weekly", rules.Frequency)
	}

	rules, err = ParseINI([]byte("[policy]\nmode = optional_only\nrecommended_version = 3.1\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := OptionalOnly{Recommended: "3.1"}
	if rules.Policy != want {
		t.Fatalf("policy = %#v, want %#v", rules.Policy, want)
	}
	if rules.Frequency != Daily {
		t.Fatalf("frequency = %v, want daily", rules.Frequency)
	}

	if _, err := ParseINI([]byte("[policy]\nmode = mandatory_only\n")); err == nil {
		t.Fatal("expected error for missing minimum required version")
	}
	if _, err := ParseINI([]byte("[policy]\nmode = new_store_version_only\n[reprompt]\nfrequency = often\n")); err == nil {
		t.Fatal("expected error for bad frequency")
	}
}

func TestPolicyFilesDropVersionPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parse func([]byte) (Rules, error)
		doc   string
		want  Policy
	}{
		{
			name:  "json optional",
			parse: ParseJSON,
			doc:   `{"mode":"optional_only","recommendedVersion":"v2.0"}`,
			want:  OptionalOnly{Recommended: "2.0"},
		},
		{
			name:  "json both",
			parse: ParseJSON,
			doc:   `{"mode":"mandatory_and_optional","minimumRequiredVersion":"V1.5","recommendedVersion":"v2.0"}`,
			want:  MandatoryAndOptional{MinimumRequired: "1.5", Recommended: "2.0"},
		},
		{
			name:  "ini optional",
			parse: ParseINI,
			doc:   "[policy]\nmode = optional_only\nrecommended_version = v2.0\n",
			want:  OptionalOnly{Recommended: "2.0"},
		},
		{
			name:  "ini mandatory",
			parse: ParseINI,
			doc:   "[policy]\nmode = mandatory_only\nminimum_required_version = v1.5\n",
			want:  MandatoryOnly{MinimumRequired: "1.5"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := tt.parse([]byte(tt.doc))
			if err != nil {
				t.Fatal(err)
			}
			if rules.Policy != tt.want {
				t.Fatalf("policy = %#v, want %#v", rules.Policy, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "policy.json")
	if err := os.WriteFile(jsonPath, []byte(`{"mode":"mandatory_only","minimumRequiredVersion":"1.5"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	iniPath := filepath.Join(dir, "policy.ini")
	if err := os.WriteFile(iniPath, []byte("[policy]\nmode = new_store_version_only\n[reprompt]\nfrequency = immediately\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if rules.Policy != (MandatoryOnly{MinimumRequired: "1.5"}) {
		t.Fatalf("json policy = %#v", rules.Policy)
	}

	rules, err = LoadFile(iniPath)
	if err != nil {
		t.Fatal(err)
	}
	if rules.Policy.Mode() != ModeNewStoreVersionOnly || rules.Frequency != Immediately {
		t.Fatalf("ini rules = %+v", rules)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
