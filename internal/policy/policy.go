// Package policy models the administrator-configured update policy: which
// version thresholds apply and how often a declined soft prompt may return.
package policy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/koltyakov/siren/internal/versionutil"
)

// Mode names a policy variant in configuration files and flags.
type Mode string

const (
	ModeMandatoryOnly        Mode = "mandatory_only"
	ModeOptionalOnly         Mode = "optional_only"
	ModeMandatoryAndOptional Mode = "mandatory_and_optional"
	ModeNewStoreVersionOnly  Mode = "new_store_version_only"
)

// Policy is a closed sum type: exactly one of MandatoryOnly, OptionalOnly,
// MandatoryAndOptional or NewStoreVersionOnly.
type Policy interface {
	Mode() Mode
	isPolicy()
}

// MandatoryOnly forces an update below MinimumRequired.
type MandatoryOnly struct {
	MinimumRequired string
}

// OptionalOnly suggests a skippable update below Recommended.
type OptionalOnly struct {
	Recommended string
}

// MandatoryAndOptional forces below MinimumRequired and otherwise suggests
// below Recommended.
type MandatoryAndOptional struct {
	MinimumRequired string
	Recommended     string
}

// NewStoreVersionOnly suggests an update whenever the store has a newer
// version than the installed one.
type NewStoreVersionOnly struct{}

func (MandatoryOnly) Mode() Mode        { return ModeMandatoryOnly }
func (OptionalOnly) Mode() Mode         { return ModeOptionalOnly }
func (MandatoryAndOptional) Mode() Mode { return ModeMandatoryAndOptional }
func (NewStoreVersionOnly) Mode() Mode  { return ModeNewStoreVersionOnly }

func (MandatoryOnly) isPolicy()        {}
func (OptionalOnly) isPolicy()         {}
func (MandatoryAndOptional) isPolicy() {}
func (NewStoreVersionOnly) isPolicy()  {}

// Variants returns one value of every policy variant. Tests use it to prove
// that consumers switch over the whole set.
func Variants() []Policy {
	return []Policy{
		MandatoryOnly{MinimumRequired: "2.0"},
		OptionalOnly{Recommended: "2.0"},
		MandatoryAndOptional{MinimumRequired: "2.0", Recommended: "3.0"},
		NewStoreVersionOnly{},
	}
}

// New builds a policy from its mode name and thresholds, rejecting
// thresholds the mode requires but that are empty. A leading "v" on a
// threshold is dropped.
func New(mode Mode, minimumRequired, recommended string) (Policy, error) {
	minimumRequired = versionutil.TrimVPrefix(minimumRequired)
	recommended = versionutil.TrimVPrefix(recommended)
	switch Mode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case ModeMandatoryOnly:
		if minimumRequired == "" {
			return nil, errors.New("mandatory_only policy requires a minimum required version")
		}
		return MandatoryOnly{MinimumRequired: minimumRequired}, nil
	case ModeOptionalOnly:
		if recommended == "" {
			return nil, errors.New("optional_only policy requires a recommended version")
		}
		return OptionalOnly{Recommended: recommended}, nil
	case ModeMandatoryAndOptional:
		if minimumRequired == "" || recommended == "" {
			return nil, errors.New("mandatory_and_optional policy requires minimum required and recommended versions")
		}
		return MandatoryAndOptional{MinimumRequired: minimumRequired, Recommended: recommended}, nil
	case ModeNewStoreVersionOnly, "":
		return NewStoreVersionOnly{}, nil
	default:
		return nil, fmt.Errorf("unknown policy mode %q", mode)
	}
}

// FromThresholds picks the variant implied by which thresholds are set.
// With neither set the policy only follows the store version.
func FromThresholds(minimumRequired, recommended string) Policy {
	minimumRequired = versionutil.TrimVPrefix(minimumRequired)
	recommended = versionutil.TrimVPrefix(recommended)
	switch {
	case minimumRequired != "" && recommended != "":
		return MandatoryAndOptional{MinimumRequired: minimumRequired, Recommended: recommended}
	case minimumRequired != "":
		return MandatoryOnly{MinimumRequired: minimumRequired}
	case recommended != "":
		return OptionalOnly{Recommended: recommended}
	default:
		return NewStoreVersionOnly{}
	}
}

// Describe renders a policy for logs and CLI output.
func Describe(p Policy) string {
	switch v := p.(type) {
	case MandatoryOnly:
		return fmt.Sprintf("mandatory below %s", v.MinimumRequired)
	case OptionalOnly:
		return fmt.Sprintf("optional below %s", v.Recommended)
	case MandatoryAndOptional:
		return fmt.Sprintf("mandatory below %s, optional below %s", v.MinimumRequired, v.Recommended)
	case NewStoreVersionOnly:
		return "optional when the store has a newer version"
	default:
		return fmt.Sprintf("unknown policy %T", p)
	}
}

// Frequency is the minimum number of whole days between two soft prompts.
type Frequency uint

const (
	Immediately Frequency = 0
	Daily       Frequency = 1
	Weekly      Frequency = 7
)

// Custom returns a frequency of the given number of days.
func Custom(days uint) Frequency { return Frequency(days) }

// Days returns the frequency as a day count.
func (f Frequency) Days() uint { return uint(f) }

func (f Frequency) String() string {
	switch f {
	case Immediately:
		return "immediately"
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	default:
		return strconv.FormatUint(uint64(f), 10) + "d"
	}
}

// ParseFrequency accepts "immediately", "daily", "weekly", a day count
// ("3") or a day count with a "d" suffix ("3d").
func ParseFrequency(s string) (Frequency, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "immediately", "always", "0":
		return Immediately, nil
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "":
		return 0, errors.New("empty reprompt frequency")
	}
	n, err := strconv.ParseUint(strings.TrimSuffix(v, "d"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid reprompt frequency %q: want immediately|daily|weekly|<days>", s)
	}
	return Custom(uint(n)), nil
}

// Rules pairs a policy with its reprompt frequency for one check.
type Rules struct {
	Policy    Policy
	Frequency Frequency
}

// DefaultRules follows the store version and reprompts daily.
func DefaultRules() Rules {
	return Rules{Policy: NewStoreVersionOnly{}, Frequency: Daily}
}
