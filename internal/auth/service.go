// Package auth is the authentication backend: credential accounts, password
// checks and signed session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"docportal/internal/apperr"
	"docportal/internal/model"
	"docportal/internal/realtime"
	"docportal/internal/repository"
)

// Session is a signed-in session handed to the caller.
type Session struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service manages accounts and sessions.
type Service struct {
	accounts repository.AccountRepository
	tokens   *TokenIssuer
	notifier realtime.Notifier
	events   realtime.Subscriber
	log      *zap.Logger

	minPasswordLength int
	bcryptCost        int

	mu      sync.Mutex
	revoked map[string]time.Time
}

type Option func(*Service)

// WithMinPasswordLength sets the shortest accepted password.
func WithMinPasswordLength(n int) Option {
	return func(s *Service) { s.minPasswordLength = n }
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func NewService(accounts repository.AccountRepository, tokens *TokenIssuer, notifier realtime.Notifier, events realtime.Subscriber, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		accounts:          accounts,
		tokens:            tokens,
		notifier:          notifier,
		events:            events,
		log:               log.With(zap.String("component", "auth")),
		minPasswordLength: 6,
		bcryptCost:        bcrypt.DefaultCost,
		revoked:           make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var (
	errInvalidEmail = apperr.Auth(apperr.CodeInvalidEmail, "Die E-Mail-Adresse ist ungültig")
	errEmailInUse   = apperr.Auth(apperr.CodeEmailInUse, "Diese E-Mail-Adresse wird bereits verwendet")
	errUserNotFound = apperr.Auth(apperr.CodeUserNotFound, "Es existiert kein Konto mit dieser E-Mail-Adresse")
	errWrongPass    = apperr.Auth(apperr.CodeWrongPassword, "Das Passwort ist falsch")
	errTokenInvalid = apperr.Auth(apperr.CodeTokenInvalid, "Die Sitzung ist ungültig oder abgelaufen")
)

func (s *Service) weakPassword() error {
	return apperr.Auth(apperr.CodeWeakPassword,
		fmt.Sprintf("Das Passwort muss mindestens %d Zeichen lang sein", s.minPasswordLength))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers new credentials. It does not sign the account in.
func (s *Service) CreateAccount(ctx context.Context, email, password, displayName string) (*model.Account, error) {
	email = normalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return nil, errInvalidEmail
	}
	if err := validation.Validate(password, validation.Required, validation.RuneLength(s.minPasswordLength, 0)); err != nil {
		return nil, s.weakPassword()
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc, err := s.accounts.Create(ctx, &model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errEmailInUse
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acc, nil
}

// DeleteAccount removes credentials created by CreateAccount.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// FindAccount returns the account with the given id.
func (s *Service) FindAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.accounts.FindByID(ctx, id)
}

// SignIn checks credentials and issues a session token. Unknown email and wrong
// password are reported as distinct failures.
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Account, *Session, error) {
	acc, err := s.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, errUserNotFound
		}
		return nil, nil, fmt.Errorf("find account: %w", err)
	}

	ok, err := CheckPassword(acc.PasswordHash, password)
	if err != nil {
		return nil, nil, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return nil, nil, errWrongPass
	}

	token, claims, err := s.tokens.Issue(acc.ID)
	if err != nil {
		return nil, nil, err
	}

	s.notify(ctx, realtime.Event{Topic: realtime.SessionTopic(acc.ID), Op: realtime.OpSignIn, Subject: claims.ID})

	return acc, &Session{
		Token:     token,
		TokenID:   claims.ID,
		UserID:    acc.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SignOut revokes the session behind token and tells its watchers.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	s.revoke(claims.ID, claims.ExpiresAt.Time)
	s.notify(ctx, realtime.Event{Topic: realtime.RevocationsTopic, Op: realtime.OpSignOut, Subject: claims.ID})
	s.notify(ctx, realtime.Event{Topic: realtime.SessionTopic(claims.UserID), Op: realtime.OpSignOut, Subject: claims.ID})
	return nil
}

// Authenticate returns the claims of a valid, unrevoked token.
func (s *Service) Authenticate(_ context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, errTokenInvalid
	}
	if s.isRevoked(claims.ID) {
		return nil, errTokenInvalid
	}
	return claims, nil
}

// WatchSession calls fn for every sign-in and sign-out of userID until the
// returned subscription is closed.
func (s *Service) WatchSession(userID string, fn func(realtime.Event)) *realtime.Subscription {
	return s.events.Subscribe(realtime.SessionTopic(userID), fn)
}

// WatchRevocations applies sign-outs performed by other instances.
func (s *Service) WatchRevocations() *realtime.Subscription {
	return s.events.Subscribe(realtime.RevocationsTopic, func(ev realtime.Event) {
		if ev.Op == realtime.OpSignOut && ev.Subject != "" {
			s.revoke(ev.Subject, time.Now().Add(s.tokens.ttl))
		}
	})
}

func (s *Service) revoke(tokenID string, until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	if cur, ok := s.revoked[tokenID]; !ok || until.After(cur) {
		s.revoked[tokenID] = until
	}
}

func (s *Service) isRevoked(tokenID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[tokenID]
	return ok
}

func (s *Service) notify(ctx context.Context, ev realtime.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("session notification failed", zap.String("topic", ev.Topic), zap.Error(err))
	}
}
