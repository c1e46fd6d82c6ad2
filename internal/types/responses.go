package types

import "time"

type UserResponse struct {
	ID              uint       `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	IsPremium       bool       `json:"is_premium"`
	AICredits       int        `json:"ai_credits"`
	LastCreditReset *time.Time `json:"last_credit_reset,omitempty"`
}
