// Package domain contains core business types and interfaces.
//
// This file defines the authenticated caller identity. Accounts live with the
// external identity provider; this service only sees verified token claims.
package domain

import (
	"github.com/google/uuid"
)

// User is the identity attached to an authenticated request.
type User struct {
	ID    uuid.UUID // Token subject; stable across sessions
	Email string    // Optional email claim
	Role  string    // Optional role claim (e.g. "authenticated")
}
