// Package availability decides which of a user's connected accounts can
// receive a post of a given content type, and why the others cannot.
package availability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blacktop/postgate/internal/logutil"
	"github.com/blacktop/postgate/internal/metrics"
	"github.com/blacktop/postgate/internal/postgate"
)

// AccountAvailability is the verdict for a single account.
type AccountAvailability struct {
	SocialAccountID int64
	DisplayName     string
	Available       bool
	Reason          string
	RequiresAction  bool
	ActionHint      string
}

// PlatformAvailability aggregates the account verdicts for one platform.
type PlatformAvailability struct {
	Platform       postgate.Platform
	Available      bool
	Reason         string
	RequiresAction bool
	ActionHint     string
	Accounts       []AccountAvailability
}

// AccountLister reads a user's accounts ordered by id.
type AccountLister interface {
	ListAccountsByUser(ctx context.Context, userID int64) ([]postgate.SocialAccount, error)
}

// Evaluator evaluates availability against the accounts held in storage.
type Evaluator struct {
	accounts AccountLister
}

// NewEvaluator returns an Evaluator reading accounts from lister.
func NewEvaluator(lister AccountLister) *Evaluator {
	return &Evaluator{accounts: lister}
}

// Evaluate loads the user's accounts and evaluates them. Storage errors are
// returned as is; nothing is retried.
func (e *Evaluator) Evaluate(ctx context.Context, userID int64, ct postgate.ContentType, meta postgate.MediaMetadata) ([]PlatformAvailability, error) {
	accounts, err := e.accounts.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts for user %d: %w", userID, err)
	}
	report := Evaluate(accounts, ct, meta)
	metrics.ObserveEvaluation(string(ct))
	logutil.Debugf("evaluated availability: user=%d content_type=%s accounts=%d", userID, ct, len(accounts))
	return report, nil
}

// Evaluate returns one entry per supported platform in canonical order.
// Accounts keep their input order within a platform. Accounts on platforms
// outside the supported set are ignored. Media metadata does not currently
// influence any rule.
func Evaluate(accounts []postgate.SocialAccount, ct postgate.ContentType, _ postgate.MediaMetadata) []PlatformAvailability {
	byPlatform := make(map[postgate.Platform][]postgate.SocialAccount, len(postgate.Platforms))
	for _, account := range accounts {
		byPlatform[account.Platform] = append(byPlatform[account.Platform], account)
	}

	report := make([]PlatformAvailability, 0, len(postgate.Platforms))
	for _, platform := range postgate.Platforms {
		report = append(report, evaluatePlatform(platform, rules[platform], byPlatform[platform], ct))
	}
	return report
}

func evaluatePlatform(platform postgate.Platform, rs ruleSet, accounts []postgate.SocialAccount, ct postgate.ContentType) PlatformAvailability {
	result := PlatformAvailability{
		Platform: platform,
		Accounts: make([]AccountAvailability, 0, len(accounts)),
	}
	for _, account := range accounts {
		aa := AccountAvailability{
			SocialAccountID: account.ID,
			DisplayName:     account.DisplayName,
			Available:       true,
		}
		if v, blocked := rs.verdictFor(account, ct); blocked {
			aa.Available = false
			aa.Reason = v.Reason
			aa.RequiresAction = v.RequiresAction
			aa.ActionHint = v.ActionHint
		}
		result.Available = result.Available || aa.Available
		result.Accounts = append(result.Accounts, aa)
	}

	if result.Available {
		return result
	}

	var v Verdict
	if len(result.Accounts) == 0 {
		v = rs.emptyVerdict(ct)
	} else {
		selected := representative(result.Accounts)
		v = Verdict{Reason: selected.Reason, RequiresAction: selected.RequiresAction, ActionHint: selected.ActionHint}
	}
	result.Reason = v.Reason
	result.RequiresAction = v.RequiresAction
	result.ActionHint = v.ActionHint
	return result
}

// representative picks the first unavailable account carrying a reason,
// scanning in input order. accounts must not be empty.
func representative(accounts []AccountAvailability) AccountAvailability {
	for _, a := range accounts {
		if !a.Available && a.Reason != "" {
			return a
		}
	}
	return accounts[0]
}

// ByAccount indexes every account verdict in the report by account id.
func ByAccount(report []PlatformAvailability) map[int64]AccountAvailability {
	out := make(map[int64]AccountAvailability)
	for _, platform := range report {
		for _, account := range platform.Accounts {
			out[account.SocialAccountID] = account
		}
	}
	return out
}

// Platform returns the report entry for p.
func Platform(report []PlatformAvailability, p postgate.Platform) (PlatformAvailability, bool) {
	for _, entry := range report {
		if entry.Platform == p {
			return entry, true
		}
	}
	return PlatformAvailability{}, false
}

type accountJSON struct {
	SocialAccountID int64   `json:"social_account_id"`
	DisplayName     string  `json:"display_name"`
	Available       bool    `json:"available"`
	Reason          *string `json:"reason"`
	RequiresAction  *bool   `json:"requires_action"`
	ActionHint      *string `json:"action_hint"`
}

type platformJSON struct {
	Platform       postgate.Platform     `json:"platform"`
	Available      bool                  `json:"available"`
	Reason         *string               `json:"reason"`
	RequiresAction *bool                 `json:"requires_action"`
	ActionHint     *string               `json:"action_hint"`
	Accounts       []AccountAvailability `json:"accounts"`
}

// MarshalJSON renders unset reason, requires_action and action_hint as null.
func (a AccountAvailability) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountJSON{
		SocialAccountID: a.SocialAccountID,
		DisplayName:     a.DisplayName,
		Available:       a.Available,
		Reason:          optionalString(a.Reason),
		RequiresAction:  optionalBool(a.RequiresAction),
		ActionHint:      optionalString(a.ActionHint),
	})
}

// MarshalJSON renders unset reason, requires_action and action_hint as null.
func (p PlatformAvailability) MarshalJSON() ([]byte, error) {
	accounts := p.Accounts
	if accounts == nil {
		accounts = []AccountAvailability{}
	}
	return json.Marshal(platformJSON{
		Platform:       p.Platform,
		Available:      p.Available,
		Reason:         optionalString(p.Reason),
		RequiresAction: optionalBool(p.RequiresAction),
		ActionHint:     optionalString(p.ActionHint),
		Accounts:       accounts,
	})
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalBool(b bool) *bool {
	if !b {
		return nil
	}
	return &b
}
