package domain

import "time"

// Channel is where a code is delivered.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelMobile Channel = "mobile"
)

// Purpose is the flow a code belongs to. Codes never cross purposes.
type Purpose string

const (
	PurposeSignup        Purpose = "signup"
	PurposeLogin         Purpose = "login"
	PurposePasswordReset Purpose = "password-reset"
)

// ChallengeKey identifies the single live challenge slot for an identity.
type ChallengeKey struct {
	IdentityID string
	Channel    Channel
	Purpose    Purpose
}

// OTPChallenge is an issued one-time code. Only the keyed hash of the code is
// kept.
type OTPChallenge struct {
	ID                string
	IdentityID        string
	Channel           Channel
	Purpose           Purpose
	CodeHash          string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	AttemptCount      int
	MaxAttempts       int
	ResendAvailableAt time.Time
	ConsumedAt        *time.Time
}

func (c *OTPChallenge) Key() ChallengeKey {
	return ChallengeKey{IdentityID: c.IdentityID, Channel: c.Channel, Purpose: c.Purpose}
}

func (c *OTPChallenge) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt) }

func (c *OTPChallenge) Exhausted() bool { return c.AttemptCount >= c.MaxAttempts }

func (c *OTPChallenge) Consumed() bool { return c.ConsumedAt != nil }

// ChallengeHandle is what callers learn about an issued challenge. It never
// includes the code.
type ChallengeHandle struct {
	ChallengeID       string
	Channel           Channel
	Purpose           Purpose
	ExpiresAt         time.Time
	ResendAvailableAt time.Time
}

func (c *OTPChallenge) Handle() ChallengeHandle {
	return ChallengeHandle{
		ChallengeID:       c.ID,
		Channel:           c.Channel,
		Purpose:           c.Purpose,
		ExpiresAt:         c.ExpiresAt,
		ResendAvailableAt: c.ResendAvailableAt,
	}
}
