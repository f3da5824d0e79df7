package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create challenges table
-- Version: 001

CREATE TABLE IF NOT EXISTS challenges (
    id UUID PRIMARY KEY,
    creator_id VARCHAR(100) NOT NULL,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    type VARCHAR(30) NOT NULL,
    category VARCHAR(100) NOT NULL,
    difficulty SMALLINT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'open',

    rules JSONB NOT NULL,
    rewards JSONB NOT NULL,

    participant_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
    invited_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
    max_participants INTEGER NOT NULL,
    current_participants INTEGER NOT NULL DEFAULT 0,

    is_public BOOLEAN NOT NULL DEFAULT TRUE,
    friends_only BOOLEAN NOT NULL DEFAULT FALSE,
    allow_cheering BOOLEAN NOT NULL DEFAULT TRUE,
    allow_comments BOOLEAN NOT NULL DEFAULT TRUE,
    allow_spectators BOOLEAN NOT NULL DEFAULT FALSE,

    tags JSONB NOT NULL DEFAULT '[]'::jsonb,
    leaderboard JSONB NOT NULL DEFAULT '[]'::jsonb,
    winner_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
    completion_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    start_date TIMESTAMP WITH TIME ZONE NOT NULL,
    end_date TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('open', 'active', 'completed', 'cancelled')),
    CONSTRAINT valid_type CHECK (type IN ('gaming', 'social_engagement', 'impact')),
    CONSTRAINT valid_difficulty CHECK (difficulty BETWEEN 1 AND 5),
    CONSTRAINT valid_counts CHECK (current_participants >= 0 AND current_participants <= max_participants)
);

CREATE INDEX IF NOT EXISTS idx_challenges_creator ON challenges(creator_id);
CREATE INDEX IF NOT EXISTS idx_challenges_status ON challenges(status);
CREATE INDEX IF NOT EXISTS idx_challenges_category ON challenges(category);
CREATE INDEX IF NOT EXISTS idx_challenges_created_at ON challenges(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_challenges_open_public ON challenges(end_date) WHERE status = 'open' AND is_public;
CREATE INDEX IF NOT EXISTS idx_challenges_participants ON challenges USING GIN (participant_ids);
`

const migration001Down = `
DROP TABLE IF EXISTS challenges;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE PARTICIPANTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create participants table
-- Version: 002

CREATE TABLE IF NOT EXISTS participants (
    id UUID PRIMARY KEY,
    challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    user_id VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',

    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,

    progress JSONB NOT NULL DEFAULT '{}'::jsonb,
    update_count INTEGER NOT NULL DEFAULT 0,

    cheers_given INTEGER NOT NULL DEFAULT 0,
    cheers_received INTEGER NOT NULL DEFAULT 0,
    comments_given INTEGER NOT NULL DEFAULT 0,
    comments_received INTEGER NOT NULL DEFAULT 0,
    social_score DOUBLE PRECISION NOT NULL DEFAULT 0,

    milestones_reached JSONB NOT NULL DEFAULT '[]'::jsonb,
    achievement_count INTEGER NOT NULL DEFAULT 0,
    streak_days INTEGER NOT NULL DEFAULT 0,

    best_rank INTEGER NOT NULL DEFAULT 0,
    final_rank INTEGER NOT NULL DEFAULT 0,
    final_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    completion_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,

    credits_earned INTEGER NOT NULL DEFAULT 0,
    badges_earned JSONB NOT NULL DEFAULT '[]'::jsonb,
    rewards_claimed BOOLEAN NOT NULL DEFAULT FALSE,
    rewards_claimed_at TIMESTAMP WITH TIME ZONE,

    friends_invited INTEGER NOT NULL DEFAULT 0,
    friends_joined INTEGER NOT NULL DEFAULT 0,
    community_impact DOUBLE PRECISION NOT NULL DEFAULT 0,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_participant_status CHECK (status IN ('active', 'completed', 'quit', 'disqualified')),
    CONSTRAINT valid_completion CHECK (completion_percentage BETWEEN 0 AND 100),

    UNIQUE(challenge_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_participants_challenge ON participants(challenge_id);
CREATE INDEX IF NOT EXISTS idx_participants_user ON participants(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_participants_active ON participants(challenge_id) WHERE status = 'active';
`

const migration002Down = `
DROP TABLE IF EXISTS participants;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE RESULTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create results table
-- Version: 003

CREATE TABLE IF NOT EXISTS results (
    id UUID PRIMARY KEY,
    challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    user_id VARCHAR(100) NOT NULL,

    base_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    bonuses JSONB NOT NULL DEFAULT '{}'::jsonb,
    penalties JSONB NOT NULL DEFAULT '{}'::jsonb,
    multipliers JSONB NOT NULL DEFAULT '{}'::jsonb,
    final_score DOUBLE PRECISION NOT NULL DEFAULT 0,

    rank INTEGER NOT NULL,
    total_participants INTEGER NOT NULL,
    social_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    impact_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    collective_total DOUBLE PRECISION NOT NULL DEFAULT 0,

    milestones JSONB NOT NULL DEFAULT '[]'::jsonb,
    badges JSONB NOT NULL DEFAULT '[]'::jsonb,
    records_broken JSONB NOT NULL DEFAULT '[]'::jsonb,

    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    verified_by VARCHAR(100) NOT NULL DEFAULT '',
    verified_at TIMESTAMP WITH TIME ZONE,
    disqualified BOOLEAN NOT NULL DEFAULT FALSE,
    finalized BOOLEAN NOT NULL DEFAULT FALSE,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_rank CHECK (rank >= 1 AND total_participants >= rank),

    UNIQUE(challenge_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_results_challenge ON results(challenge_id, rank);
CREATE INDEX IF NOT EXISTS idx_results_user ON results(user_id, created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS results;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE INTERACTIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create interactions table
-- Version: 004

CREATE TABLE IF NOT EXISTS interactions (
    id UUID PRIMARY KEY,
    challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    from_user_id VARCHAR(100) NOT NULL,
    to_user_id VARCHAR(100) NOT NULL DEFAULT '',
    type VARCHAR(20) NOT NULL,
    emoji VARCHAR(16) NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    context VARCHAR(30) NOT NULL DEFAULT 'general',

    liked_by JSONB NOT NULL DEFAULT '[]'::jsonb,
    replies JSONB NOT NULL DEFAULT '[]'::jsonb,

    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    is_flagged BOOLEAN NOT NULL DEFAULT FALSE,
    moderation_status VARCHAR(20) NOT NULL DEFAULT 'none',

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_interaction_type CHECK (type IN ('cheer', 'comment', 'reaction', 'share', 'spectate')),
    CONSTRAINT valid_context CHECK (context IN ('general', 'milestone', 'progress_update', 'leaderboard'))
);

CREATE INDEX IF NOT EXISTS idx_interactions_challenge ON interactions(challenge_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_interactions_from ON interactions(challenge_id, from_user_id);
CREATE INDEX IF NOT EXISTS idx_interactions_to ON interactions(challenge_id, to_user_id) WHERE to_user_id != '';
`

const migration004Down = `
DROP TABLE IF EXISTS interactions;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_challenges", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_participants", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_results", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_interactions", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}
