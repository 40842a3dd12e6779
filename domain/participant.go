// Package domain contains core concepts of the chat synchronization engine.
// This file defines Participant profiles.
// No runtime, network, or UI logic should be added here.
package domain

import "strings"

type Role string

const (
	RoleAdvisor Role = "asesor_comercial"
	RoleUser    Role = "usuario_registrado"
)

// Profile is the optional sender information attached to a message.
type Profile struct {
	ID       ParticipantID
	Email    string
	FullName *string
	Role     Role
}

// DisplayName returns the full name, or the local part of the email when unknown.
func (p Profile) DisplayName() string {
	if p.FullName != nil && strings.TrimSpace(*p.FullName) != "" {
		return *p.FullName
	}
	local, _, _ := strings.Cut(p.Email, "@")
	return local
}
