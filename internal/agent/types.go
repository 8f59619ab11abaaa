// Package agent manages agent accounts and authentication.
package agent

import "time"

// Agent is a CRM user who works the inbox.
type Agent struct {
	ID           string
	TenantID     string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}
