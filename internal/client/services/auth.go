// Package services contains application services for the LinkVault client.
// This file defines the authentication service: register, login with a
// persisted session, restore on startup, logout and the liveness check.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dmitrijs2005/linkvault/internal/client/client"
	"github.com/dmitrijs2005/linkvault/internal/client/session"
)

// AuthService defines authentication operations for the CLI.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) (int64, error)
	Login(ctx context.Context, username string, password []byte) error
	Restore(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// SessionStore is the persistence the service needs; *session.Store
// implements it.
type SessionStore interface {
	Save(ctx context.Context, s session.Session) error
	UpdateTokens(ctx context.Context, access, refresh string) error
	Load(ctx context.Context) (*session.Session, error)
	Clear(ctx context.Context) error
	Close() error
}

type authService struct {
	client client.Client
	store  SessionStore
}

// NewAuthService binds the API client to the session store. Tokens rotated
// by the client are written back to the store.
func NewAuthService(c client.Client, store SessionStore) AuthService {
	a := &authService{client: c, store: store}
	c.OnTokensRefreshed(func(access, refresh string) {
		if err := store.UpdateTokens(context.Background(), access, refresh); err != nil {
			log.Printf("session update failed: %v", err)
		}
	})
	return a
}

// Register creates an account and returns the initial storage limit.
func (a *authService) Register(ctx context.Context, username string, password []byte) (int64, error) {
	return a.client.Register(ctx, username, string(password))
}

// Login authenticates against the server and persists the session.
func (a *authService) Login(ctx context.Context, username string, password []byte) error {
	access, refresh, err := a.client.Login(ctx, username, string(password))
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}

	if err := a.store.Save(ctx, session.Session{Username: username, AccessToken: access, RefreshToken: refresh}); err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}
	return nil
}

// Restore loads a saved session into the client and returns its username,
// or "" when there is none.
func (a *authService) Restore(ctx context.Context) (string, error) {
	s, err := a.store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	a.client.SetTokens(s.AccessToken, s.RefreshToken)
	return s.Username, nil
}

// Logout forgets the tokens locally and in the store.
func (a *authService) Logout(ctx context.Context) error {
	a.client.SetTokens("", "")
	return a.store.Clear(ctx)
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases the client connection and the session database.
func (a *authService) Close(ctx context.Context) error {
	return errors.Join(a.client.Close(), a.store.Close())
}
