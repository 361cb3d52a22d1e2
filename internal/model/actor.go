package model

import "github.com/google/uuid"

// Actor is the identity context every core operation is scoped by.
// ID is the acting user, CompanyID the tenant the user acts for.
type Actor struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}
