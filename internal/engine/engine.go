// Package engine decides which update prompt, if any, a check produces.
//
// Evaluate is a pure function: it performs no I/O, never fails, and returns
// exactly one verdict together with the history mutation the caller must
// persist. Severity decides precedence: maintenance, then force, then soft,
// then none.
package engine

import (
	"fmt"
	"time"

	"github.com/koltyakov/siren/internal/domain"
	"github.com/koltyakov/siren/internal/policy"
	"github.com/koltyakov/siren/internal/versionutil"
)

const day = 24 * time.Hour

// Input is everything one evaluation depends on.
type Input struct {
	Installed string
	Policy    policy.Policy
	// Published is nil when the store returned no record for the app.
	Published *domain.StoreMetadata
	History   domain.History
	Frequency policy.Frequency
	Now       time.Time
}

// Evaluate computes the verdict for in and the history mutation to apply.
func Evaluate(in Input) (domain.Verdict, domain.HistoryMutation) {
	var v domain.Verdict
	switch p := in.Policy.(type) {
	case policy.MandatoryOnly:
		var ok bool
		if v, ok = mandatory(in, p.MinimumRequired); !ok {
			v = domain.None(domain.ReasonNoUpdateAvailable)
		}
	case policy.OptionalOnly:
		v = optional(in, p.Recommended)
	case policy.MandatoryAndOptional:
		var ok bool
		if v, ok = mandatory(in, p.MinimumRequired); !ok {
			v = optional(in, p.Recommended)
		}
	case policy.NewStoreVersionOnly:
		v = storeVersion(in)
	default:
		panic(fmt.Sprintf("engine: unhandled policy %T", in.Policy))
	}

	if !v.Actionable() {
		return v, domain.HistoryMutation{}
	}
	return v, domain.HistoryMutation{LastPromptAt: in.Now}
}

// mandatory returns a maintenance or force verdict when the minimum
// required version applies. ok is false when neither applies.
func mandatory(in Input, minimum string) (domain.Verdict, bool) {
	if in.Published != nil && versionutil.IsOlder(in.Published.Version, minimum) {
		return domain.Maintenance(in.Published), true
	}
	if versionutil.IsOlder(in.Installed, minimum) {
		return domain.Force(in.Published), true
	}
	return domain.Verdict{}, false
}

func optional(in Input, recommended string) domain.Verdict {
	if !versionutil.IsOlder(in.Installed, recommended) {
		return domain.None(domain.ReasonNoUpdateAvailable)
	}
	if in.Published != nil && !versionutil.IsOlder(in.Installed, in.Published.Version) {
		return domain.None(domain.ReasonNoUpdateAvailable)
	}
	if in.History.SkippedVersion != "" && in.History.SkippedVersion == recommended {
		return domain.None(domain.ReasonRecentlyPrompted)
	}
	if !GatePasses(in.History, in.Frequency, in.Now) {
		return domain.None(domain.ReasonRecentlyPrompted)
	}
	return domain.Soft(in.Published)
}

func storeVersion(in Input) domain.Verdict {
	if in.Published != nil && versionutil.IsOlder(in.Installed, in.Published.Version) {
		return domain.Soft(in.Published)
	}
	return domain.None(domain.ReasonNoUpdateAvailable)
}

// GatePasses reports whether enough whole days have passed since the last
// prompt. A first prompt and the Immediately frequency always pass.
func GatePasses(h domain.History, f policy.Frequency, now time.Time) bool {
	if h.LastPromptAt.IsZero() || f == policy.Immediately {
		return true
	}
	return ElapsedDays(h.LastPromptAt, now) >= int64(f.Days())
}

// ElapsedDays returns the number of whole days from since to now. It is
// negative when now is before since.
func ElapsedDays(since, now time.Time) int64 {
	d := now.Sub(since)
	days := int64(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}

// NextPromptAt returns the earliest time a gated soft prompt may be shown
// again, or the zero time when the gate is already open.
func NextPromptAt(h domain.History, f policy.Frequency, now time.Time) time.Time {
	if GatePasses(h, f, now) {
		return time.Time{}
	}
	return h.LastPromptAt.Add(time.Duration(f.Days()) * day)
}
