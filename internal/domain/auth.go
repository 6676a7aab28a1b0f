package domain

import "time"

// Token represents issued bearer token metadata.
type Token struct {
	ID        string
	SubjectID string
	Role      AdminRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// SessionLifetime is the bearer token lifetime shared by server and client.
const SessionLifetime = 12 * time.Hour
