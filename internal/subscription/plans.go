// Package subscription holds the plan catalog and the usage gate that
// validates requested actions against an account's subscription limits.
//
// The catalog is immutable reference data: tiers, limits, and feature flags
// are fixed tables, not code branches. The gate is pure and side-effect-free;
// usage counters are incremented by whichever collaborator performs the gated
// action after approval, never by the gate itself.
package subscription

import (
	"fmt"
	"slices"
)

// Unlimited is the sentinel limit value meaning no cap applies.
const Unlimited = -1

// Tier identifies a subscription plan.
type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// IsValid reports whether t is a recognised tier.
func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierStarter, TierProfessional, TierEnterprise:
		return true
	}
	return false
}

// Limits is the per-tier limits table. Numeric limits use [Unlimited] to mean
// no cap; boolean fields gate features outright.
type Limits struct {
	MeetingsPerMonth       int
	ParticipantsPerMeeting int
	StorageGB              float64
	AIReports              bool
	VoiceBiometry          bool
	AdvancedAnalytics      bool
}

// Plan is the full catalog entry for one tier.
type Plan struct {
	Tier     Tier
	Name     string
	Price    float64
	Currency string
	Limits   Limits
	Features []string
}

// catalog is the immutable plan table. Do not mutate entries at runtime.
var catalog = map[Tier]Plan{
	TierFree: {
		Tier:     TierFree,
		Name:     "Free",
		Price:    0,
		Currency: "BRL",
		Limits: Limits{
			MeetingsPerMonth:       3,
			ParticipantsPerMeeting: 3,
			StorageGB:              0.1,
		},
		Features: []string{
			"3 meetings per month",
			"Up to 3 participants",
			"Basic transcription",
		},
	},
	TierStarter: {
		Tier:     TierStarter,
		Name:     "Starter",
		Price:    29.90,
		Currency: "BRL",
		Limits: Limits{
			MeetingsPerMonth:       20,
			ParticipantsPerMeeting: 10,
			StorageGB:              2,
			AIReports:              true,
			VoiceBiometry:          true,
		},
		Features: []string{
			"20 meetings per month",
			"Up to 10 participants",
			"AI reports",
			"Voice biometry",
		},
	},
	TierProfessional: {
		Tier:     TierProfessional,
		Name:     "Professional",
		Price:    79.90,
		Currency: "BRL",
		Limits: Limits{
			MeetingsPerMonth:       100,
			ParticipantsPerMeeting: 25,
			StorageGB:              10,
			AIReports:              true,
			VoiceBiometry:          true,
			AdvancedAnalytics:      true,
		},
		Features: []string{
			"100 meetings per month",
			"Up to 25 participants",
			"Advanced analytics",
			"API integrations",
		},
	},
	TierEnterprise: {
		Tier:     TierEnterprise,
		Name:     "Enterprise",
		Price:    299.90,
		Currency: "BRL",
		Limits: Limits{
			MeetingsPerMonth:       Unlimited,
			ParticipantsPerMeeting: Unlimited,
			StorageGB:              100,
			AIReports:              true,
			VoiceBiometry:          true,
			AdvancedAnalytics:      true,
		},
		Features: []string{
			"Unlimited meetings",
			"Unlimited participants",
			"White label",
			"Dedicated support",
		},
	},
}

// PlanFor returns the catalog entry for tier. Unknown tiers fall back to the
// free plan, the most restrictive one.
func PlanFor(tier Tier) Plan {
	if p, ok := catalog[tier]; ok {
		return p
	}
	return catalog[TierFree]
}

// Plans returns all catalog entries. The returned slice is a copy; the
// catalog itself stays immutable.
func Plans() []Plan {
	result := make([]Plan, 0, len(catalog))
	for _, t := range []Tier{TierFree, TierStarter, TierProfessional, TierEnterprise} {
		result = append(result, catalog[t])
	}
	return result
}

// UpgradeBenefit summarises what an account gains by moving from one tier to
// another.
type UpgradeBenefit struct {
	PriceDifference        float64
	AdditionalMeetings     int
	AdditionalParticipants int
	NewFeatures            []string
}

// CalculateUpgradeBenefit compares two tiers. Unlimited targets report the
// additional capacity as [Unlimited].
func CalculateUpgradeBenefit(current, target Tier) (UpgradeBenefit, error) {
	if !current.IsValid() || !target.IsValid() {
		return UpgradeBenefit{}, fmt.Errorf("subscription: invalid tier pair %q → %q", current, target)
	}

	from, to := catalog[current], catalog[target]
	b := UpgradeBenefit{
		PriceDifference:        to.Price - from.Price,
		AdditionalMeetings:     limitDelta(from.Limits.MeetingsPerMonth, to.Limits.MeetingsPerMonth),
		AdditionalParticipants: limitDelta(from.Limits.ParticipantsPerMeeting, to.Limits.ParticipantsPerMeeting),
	}
	for _, feature := range to.Features {
		if !slices.Contains(from.Features, feature) {
			b.NewFeatures = append(b.NewFeatures, feature)
		}
	}
	return b, nil
}

// limitDelta handles the unlimited sentinel when differencing two limits.
func limitDelta(from, to int) int {
	if to == Unlimited {
		return Unlimited
	}
	if from == Unlimited {
		return 0
	}
	return to - from
}
