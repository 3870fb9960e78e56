// Companion Core
// Copyright (c) 2026 The Companion Core Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Companion Core.
//
// Companion Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Companion Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Companion Core.  If not, see <http://www.gnu.org/licenses/>.

// Package entitlement decides whether a user may perform a metered action.
//
// Everything here is a pure transition over Profile values. Callers pass
// the current time in, persist the returned profile, and surface an upsell
// when a decision is a denial. A denial is a normal result, not an error.
package entitlement

import (
	"errors"
	"time"
)

const (
	// TrialDuration is the default length of the free trial window.
	TrialDuration = 3 * 24 * time.Hour
	// DefaultTokenBalance is the balance a new profile starts with.
	DefaultTokenBalance = 5

	day = 24 * time.Hour
)

var (
	ErrInvalidAmount = errors.New("token amount must be positive")
	ErrBalanceLimit  = errors.New("token balance limit reached")
)

// MaxTokenBalance caps the balance a profile can hold.
const MaxTokenBalance = 1_000_000_000

// Profile is the monetization state of a single user plus the persona
// settings stored alongside it.
type Profile struct {
	// TrialStartedAt is nil until a durable store stamps it. A nil start is
	// treated as a trial with its full duration remaining.
	TrialStartedAt       *time.Time `json:"trialStartedAt,omitempty"`
	Name                 string     `json:"name"`
	Trait                string     `json:"trait"`
	TokenBalance         int        `json:"tokenBalance"`
	ImageGenerationCount int        `json:"imageGenerationCount"`
	IsPremium            bool       `json:"isPremium"`
}

// NewProfile returns the profile given to a user on first sign-in.
func NewProfile(name, trait string, tokens int) Profile {
	if tokens < 0 {
		tokens = 0
	}
	return Profile{
		Name:         name,
		Trait:        trait,
		TokenBalance: tokens,
	}
}

// TryConsume spends one token. Premium profiles are unlimited and never
// spend. The trial window is not considered here, see Gate.Authorize.
func TryConsume(p Profile) (bool, Profile) {
	if p.IsPremium {
		return true, p
	}
	if p.TokenBalance <= 0 {
		return false, p
	}
	p.TokenBalance--
	return true, p
}

func GrantPremium(p Profile) Profile {
	p.IsPremium = true
	return p
}

// AddTokens credits a purchased token pack.
func AddTokens(p Profile, amount int) (Profile, error) {
	if amount <= 0 {
		return p, ErrInvalidAmount
	}
	if amount > MaxTokenBalance-p.TokenBalance {
		return p, ErrBalanceLimit
	}
	p.TokenBalance += amount
	return p, nil
}

type Trial struct {
	Active        bool `json:"active"`
	DaysRemaining int  `json:"daysRemaining"`
}

type Action string

const (
	ActionChat  Action = "chat"
	ActionImage Action = "image"
)

type Reason string

const (
	ReasonPremium  Reason = "premium"
	ReasonTrial    Reason = "trial"
	ReasonToken    Reason = "token"
	ReasonNoTokens Reason = "no_tokens"
)

// Decision is the outcome of Authorize. Profile is the profile to persist;
// it differs from the input only when Consumed is true.
type Decision struct {
	Reason   Reason  `json:"reason"`
	Profile  Profile `json:"-"`
	Allowed  bool    `json:"allowed"`
	Consumed bool    `json:"consumed"`
}

// Gate applies the trial window of a given length.
type Gate struct {
	trial time.Duration
}

// NewGate returns a gate with the given trial length. A non-positive length
// uses TrialDuration.
func NewGate(trial time.Duration) Gate {
	if trial <= 0 {
		trial = TrialDuration
	}
	return Gate{trial: trial}
}

func (g Gate) duration() time.Duration {
	if g.trial <= 0 {
		return TrialDuration
	}
	return g.trial
}

// TrialStatus reports whether the trial window is open and how many whole
// or partial days are left in it. A start in the future counts as just
// started.
func (g Gate) TrialStatus(p Profile, now time.Time) Trial {
	total := g.duration()
	if p.TrialStartedAt == nil {
		return Trial{Active: true, DaysRemaining: ceilDays(total)}
	}

	elapsed := now.Sub(*p.TrialStartedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	remaining := total - elapsed
	if remaining <= 0 {
		return Trial{Active: false, DaysRemaining: 0}
	}
	return Trial{Active: true, DaysRemaining: ceilDays(remaining)}
}

// CanPerformGatedAction reports whether any metered action is possible
// without changing the profile.
func (g Gate) CanPerformGatedAction(p Profile, now time.Time) bool {
	return p.IsPremium || g.TrialStatus(p, now).Active || p.TokenBalance > 0
}

// Authorize decides a single metered action.
//
// Premium is always free. Image edits are free during the trial. Chat turns
// spend a token when one is available; with an empty balance the trial
// still lets them through for free.
func (g Gate) Authorize(p Profile, now time.Time, action Action) Decision {
	if p.IsPremium {
		return Decision{Allowed: true, Reason: ReasonPremium, Profile: p}
	}

	trialActive := g.TrialStatus(p, now).Active
	if action == ActionImage && trialActive {
		return Decision{Allowed: true, Reason: ReasonTrial, Profile: p}
	}

	if ok, updated := TryConsume(p); ok {
		return Decision{Allowed: true, Consumed: true, Reason: ReasonToken, Profile: updated}
	}

	if trialActive {
		return Decision{Allowed: true, Reason: ReasonTrial, Profile: p}
	}

	return Decision{Allowed: false, Reason: ReasonNoTokens, Profile: p}
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + day - 1) / day)
}
