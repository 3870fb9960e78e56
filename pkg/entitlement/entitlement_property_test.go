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

package entitlement

import (
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func profileGen() *rapid.Generator[Profile] {
	return rapid.Custom(func(t *rapid.T) Profile {
		p := Profile{
			IsPremium:    rapid.Bool().Draw(t, "premium"),
			TokenBalance: rapid.IntRange(0, 1000).Draw(t, "balance"),
		}
		if rapid.Bool().Draw(t, "hasTrial") {
			ago := time.Duration(rapid.Int64Range(-int64(day), int64(30*day)).Draw(t, "trialAgo"))
			start := baseTime.Add(-ago)
			p.TrialStartedAt = &start
		}
		return p
	})
}

func expiredAt(t *rapid.T) *time.Time {
	ago := time.Duration(rapid.Int64Range(int64(TrialDuration), int64(365*day)).Draw(t, "expiredAgo"))
	start := baseTime.Add(-ago)
	return &start
}

// TestPropertyPremiumConsumeNeverSpends verifies premium profiles are
// unlimited.
func TestPropertyPremiumConsumeNeverSpends(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		p := profileGen().Draw(t, "profile")
		p.IsPremium = true

		ok, updated := TryConsume(p)
		if !ok {
			t.Fatal("premium consume must succeed")
		}
		if updated.TokenBalance != p.TokenBalance {
			t.Fatalf("premium balance changed: %d -> %d", p.TokenBalance, updated.TokenBalance)
		}
	})
}

// TestPropertyEmptyBalanceDenied verifies a non-premium empty balance is
// never decremented.
func TestPropertyEmptyBalanceDenied(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		p := Profile{TrialStartedAt: expiredAt(t)}

		ok, updated := TryConsume(p)
		if ok {
			t.Fatal("consume with empty balance must fail")
		}
		if updated.TokenBalance != 0 {
			t.Fatalf("balance = %d, want 0", updated.TokenBalance)
		}

		d := NewGate(TrialDuration).Authorize(p, baseTime, ActionChat)
		if d.Allowed || d.Profile.TokenBalance != 0 {
			t.Fatalf("authorize after trial with no tokens = %+v", d)
		}
	})
}

// TestPropertyBalanceNeverNegative applies random operation sequences and
// checks the balance stays non-negative.
func TestPropertyBalanceNeverNegative(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		gate := NewGate(TrialDuration)
		p := profileGen().Draw(t, "profile")
		ops := rapid.SliceOfN(rapid.IntRange(0, 4), 0, 100).Draw(t, "ops")

		for _, op := range ops {
			switch op {
			case 0:
				_, p = TryConsume(p)
			case 1:
				p, _ = AddTokens(p, rapid.IntRange(-5, 50).Draw(t, "amount"))
			case 2:
				p = gate.Authorize(p, baseTime, ActionChat).Profile
			case 3:
				p = gate.Authorize(p, baseTime, ActionImage).Profile
			case 4:
				if rapid.Bool().Draw(t, "upgrade") {
					p = GrantPremium(p)
				}
			}
			if p.TokenBalance < 0 {
				t.Fatalf("balance went negative: %d", p.TokenBalance)
			}
		}
	})
}

// TestPropertyAddTokensKeepsBalanceInRange verifies no amount, however
// large, pushes the balance negative or past the cap.
func TestPropertyAddTokensKeepsBalanceInRange(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		p := profileGen().Draw(t, "profile")
		p.TokenBalance = rapid.IntRange(0, MaxTokenBalance).Draw(t, "balance")
		amount := rapid.OneOf(
			rapid.IntRange(math.MaxInt-1000, math.MaxInt),
			rapid.IntRange(1, MaxTokenBalance),
			rapid.Int(),
		).Draw(t, "amount")

		updated, err := AddTokens(p, amount)
		if err != nil {
			if updated != p {
				t.Fatalf("rejected add changed the profile")
			}
			return
		}
		if updated.TokenBalance != p.TokenBalance+amount {
			t.Fatalf("balance %d + %d = %d", p.TokenBalance, amount, updated.TokenBalance)
		}
		if updated.TokenBalance < 0 || updated.TokenBalance > MaxTokenBalance {
			t.Fatalf("balance out of range: %d", updated.TokenBalance)
		}
	})
}

// TestPropertyAuthorizeConsumesAtMostOne verifies a single decision never
// spends more than one token and only spends when it says so.
func TestPropertyAuthorizeConsumesAtMostOne(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		p := profileGen().Draw(t, "profile")
		action := rapid.SampledFrom([]Action{ActionChat, ActionImage}).Draw(t, "action")

		d := NewGate(TrialDuration).Authorize(p, baseTime, action)
		spent := p.TokenBalance - d.Profile.TokenBalance
		switch {
		case d.Consumed && spent != 1:
			t.Fatalf("consumed decision spent %d tokens", spent)
		case !d.Consumed && spent != 0:
			t.Fatalf("free decision spent %d tokens", spent)
		case d.Consumed && !d.Allowed:
			t.Fatal("denied decision consumed a token")
		}
		if d.Allowed != NewGate(TrialDuration).CanPerformGatedAction(p, baseTime) {
			t.Fatalf("authorize %v disagrees with CanPerformGatedAction for %+v", d.Allowed, p)
		}
	})
}

// TestPropertyTrialDaysBounded verifies days remaining stays within the
// trial length and is zero exactly when the trial is over.
func TestPropertyTrialDaysBounded(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		p := profileGen().Draw(t, "profile")
		status := NewGate(TrialDuration).TrialStatus(p, baseTime)

		if status.DaysRemaining < 0 || status.DaysRemaining > 3 {
			t.Fatalf("days remaining out of range: %d", status.DaysRemaining)
		}
		if status.Active != (status.DaysRemaining > 0) {
			t.Fatalf("inconsistent status %+v", status)
		}
	})
}
