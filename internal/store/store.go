// Package store declares the persistence contracts the gateway consumes.
// Users and installations live in the platform datastore; the gateway only
// needs upsert/read calls keyed by provider id and treats the rest as a
// black box. Adapters: pg (default) and memory (dev/tests).
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// User is the platform user record tied to a provider identity.
type User struct {
	ID         string
	ProviderID int64
	Login      string
	Name       string
	Email      string
	AvatarURL  string
	Tier       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Profile is the provider-sourced profile data written on login.
type Profile struct {
	Login     string
	Name      string
	Email     string
	AvatarURL string
}

// Account identifies the account an installation is bound to.
type Account struct {
	Login string
	Type  string // "User" | "Organization"
}

// UserStore upserts users keyed by provider id. New users start on the
// free tier; upserts never downgrade an existing tier.
type UserStore interface {
	UpsertUser(ctx context.Context, providerID int64, profile Profile) (*User, error)
	GetUserByProviderID(ctx context.Context, providerID int64) (*User, error)
}

// InstallationStore records app installations and their status.
type InstallationStore interface {
	UpsertInstallation(ctx context.Context, installationID int64, account Account, status string) error
}

// Store is the combined persistence surface the gateway wires at startup.
type Store interface {
	UserStore
	InstallationStore
}
