package challenge

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE CATALOGUE
// A static configuration table mapping (type, category) to sensible default
// rules, rewards and duration. The catalogue is owned by product, not by
// users; CreateFromTemplate instantiates a challenge from it with overrides.
// ══════════════════════════════════════════════════════════════════════════════

// Template holds the default configuration for a (type, category) pair.
type Template struct {
	// Type is the challenge type this template applies to.
	Type Type

	// Category is the sub-type this template applies to.
	Category Category

	// Title is the default title.
	Title string

	// Description is the default description.
	Description string

	// Difficulty is the default difficulty level.
	Difficulty DifficultyLevel

	// Rules is the default competition configuration.
	Rules Rules

	// Rewards is the default payout configuration.
	Rewards Rewards

	// Duration is the default challenge duration.
	Duration time.Duration

	// Tags are the default discovery tags.
	Tags []string
}

// templateKey identifies a template in the catalogue.
type templateKey struct {
	Type     Type
	Category Category
}

// catalogue is the built-in template table. Ordered by type for readability.
var catalogue = map[templateKey]Template{
	{TypeGaming, "speed_run"}: {
		Type:        TypeGaming,
		Category:    "speed_run",
		Title:       "Speed Run Showdown",
		Description: "Fastest completion wins. Lowest time takes the crown.",
		Difficulty:  3,
		Rules: Rules{
			TargetMetric:         "completion_seconds",
			TargetValue:          3600,
			MinParticipants:      2,
			MaxParticipants:      16,
			PublicJoin:           true,
			ScoringMethod:        ScoringLowest,
			DifficultyMultiplier: 1.2,
		},
		Rewards:  DefaultRewards(),
		Duration: 72 * time.Hour,
		Tags:     []string{"gaming", "speedrun", "competitive"},
	},
	{TypeGaming, "high_score"}: {
		Type:        TypeGaming,
		Category:    "high_score",
		Title:       "High Score Hunt",
		Description: "Rack up the highest score before time runs out.",
		Difficulty:  2,
		Rules: Rules{
			TargetMetric:         "score",
			TargetValue:          10000,
			MinParticipants:      2,
			MaxParticipants:      32,
			PublicJoin:           true,
			ScoringMethod:        ScoringHighest,
			DifficultyMultiplier: 1.0,
		},
		Rewards:  DefaultRewards(),
		Duration: 7 * 24 * time.Hour,
		Tags:     []string{"gaming", "highscore"},
	},
	{TypeSocialEngagement, "streak_week"}: {
		Type:        TypeSocialEngagement,
		Category:    "streak_week",
		Title:       "Seven Day Streak",
		Description: "Check in every day for a week. Consistency is the game.",
		Difficulty:  2,
		Rules: Rules{
			TargetMetric:         "streak_days",
			TargetValue:          7,
			MinParticipants:      2,
			MaxParticipants:      50,
			PublicJoin:           true,
			ScoringMethod:        ScoringTarget,
			DifficultyMultiplier: 1.0,
		},
		Rewards:  DefaultRewards(),
		Duration: 7 * 24 * time.Hour,
		Tags:     []string{"social", "streak", "habit"},
	},
	{TypeImpact, "donation_race"}: {
		Type:        TypeImpact,
		Category:    "donation_race",
		Title:       "Donation Race",
		Description: "Raise the most for the cause. Every credit counts.",
		Difficulty:  3,
		Rules: Rules{
			TargetMetric:         "donations_usd",
			TargetValue:          1000,
			MinParticipants:      2,
			MaxParticipants:      100,
			PublicJoin:           true,
			ScoringMethod:        ScoringHighest,
			DifficultyMultiplier: 1.0,
		},
		Rewards: Rewards{
			WinnerCredits:         150,
			ParticipantCredits:    40,
			WinnerBadges:          []string{"challenge_winner", "impact_champion"},
			ParticipantBadges:     []string{"challenge_finisher"},
			SocialBonusMultiplier: 1.5,
			ImpactMultiplier:      1.3,
			SpecialRewards:        map[string]int{},
		},
		Duration: 14 * 24 * time.Hour,
		Tags:     []string{"impact", "charity", "donation"},
	},
	{TypeImpact, "community_goal"}: {
		Type:        TypeImpact,
		Category:    "community_goal",
		Title:       "Community Goal",
		Description: "Hit the target together. Everyone wins or nobody does.",
		Difficulty:  4,
		Rules: Rules{
			TargetMetric:         "volunteer_hours",
			TargetValue:          500,
			MinParticipants:      5,
			MaxParticipants:      200,
			PublicJoin:           true,
			ScoringMethod:        ScoringCollective,
			DifficultyMultiplier: 1.1,
		},
		Rewards: Rewards{
			WinnerCredits:         120,
			ParticipantCredits:    60,
			WinnerBadges:          []string{"community_hero"},
			ParticipantBadges:     []string{"community_builder"},
			SocialBonusMultiplier: 1.5,
			ImpactMultiplier:      1.3,
			SpecialRewards:        map[string]int{},
		},
		Duration: 30 * 24 * time.Hour,
		Tags:     []string{"impact", "collective", "community"},
	},
}

// LookupTemplate returns the template for a (type, category) pair.
func LookupTemplate(t Type, category Category) (Template, bool) {
	tmpl, ok := catalogue[templateKey{t, category}]
	return tmpl, ok
}

// Templates returns a copy of every template in the catalogue.
func Templates() []Template {
	out := make([]Template, 0, len(catalogue))
	for _, tmpl := range catalogue {
		out = append(out, tmpl)
	}
	return out
}

// TemplateOverrides are the caller-supplied fields that replace template
// defaults on instantiation. Nil/zero fields keep the template value.
type TemplateOverrides struct {
	Title           string
	Description     string
	Difficulty      DifficultyLevel
	TargetValue     float64
	MaxParticipants int
	Duration        time.Duration
	IsPublic        *bool
	FriendsOnly     bool
	Tags            []string
}

// Apply merges the overrides into a copy of the template and returns the
// challenge creation params for it.
func (t Template) Apply(id string, creatorID UserID, o TemplateOverrides) NewChallengeParams {
	rules := t.Rules
	if o.TargetValue > 0 {
		rules.TargetValue = o.TargetValue
	}
	if o.MaxParticipants > 0 {
		rules.MaxParticipants = o.MaxParticipants
	}
	rules.FriendsOnly = rules.FriendsOnly || o.FriendsOnly

	params := NewChallengeParams{
		ID:              id,
		CreatorID:       creatorID,
		Title:           t.Title,
		Description:     t.Description,
		Type:            t.Type,
		Category:        t.Category,
		Difficulty:      t.Difficulty,
		Rules:           rules,
		Rewards:         t.Rewards,
		Duration:        t.Duration,
		IsPublic:        rules.PublicJoin,
		FriendsOnly:     rules.FriendsOnly,
		AllowCheering:   true,
		AllowComments:   true,
		AllowSpectators: true,
		Tags:            append([]string(nil), t.Tags...),
	}

	if o.Title != "" {
		params.Title = o.Title
	}
	if o.Description != "" {
		params.Description = o.Description
	}
	if o.Difficulty.IsValid() {
		params.Difficulty = o.Difficulty
	}
	if o.Duration > 0 {
		params.Duration = o.Duration
	}
	if o.IsPublic != nil {
		params.IsPublic = *o.IsPublic
	}
	if len(o.Tags) > 0 {
		params.Tags = o.Tags
	}

	return params
}
