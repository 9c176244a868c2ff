package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"docportal/internal/apperr"
	"docportal/internal/auth"
	"docportal/internal/model"
	"docportal/internal/realtime"
	"docportal/internal/repository"
	"docportal/internal/session"
)

// AuthBackend is the authentication capability used by AuthService.
// *auth.Service implements it.
type AuthBackend interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (*model.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	FindAccount(ctx context.Context, id string) (*model.Account, error)
	SignIn(ctx context.Context, email, password string) (*model.Account, *auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
	WatchSession(userID string, fn func(realtime.Event)) *realtime.Subscription
}

var _ AuthBackend = (*auth.Service)(nil)

// RegisterInput is the registration form.
type RegisterInput struct {
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	Role        model.Role `json:"role"`
	InviteCode  string     `json:"invite_code,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
}

// LoginResult is a fresh session together with the identity it belongs to.
type LoginResult struct {
	Identity model.Identity `json:"identity"`
	Session  auth.Session   `json:"session"`
}

// AuthService implements registration, login and identity resolution.
type AuthService interface {
	// Register creates the account and its profile. Clients must name their firm
	// with an invite code (the firm's email or id).
	Register(ctx context.Context, in RegisterInput) (*model.Identity, error)

	// Login signs in and returns the session token.
	Login(ctx context.Context, email, password string) (*LoginResult, error)

	// Logout ends the session behind token.
	Logout(ctx context.Context, token string) error

	// Identify resolves token to an identity carrying its profile role.
	Identify(ctx context.Context, token string) (*model.Identity, error)

	// ResolveInviteCode finds the firm an invite code points to.
	// A firm whose email equals code wins over one whose id equals code.
	ResolveInviteCode(ctx context.Context, code string) (*model.Profile, error)

	session.Backend
}

type authService struct {
	backend  AuthBackend
	profiles repository.ProfileRepository
	notifier realtime.Notifier
	log      *zap.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(backend AuthBackend, profiles repository.ProfileRepository, notifier realtime.Notifier, log *zap.Logger) AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &authService{backend: backend, profiles: profiles, notifier: notifier, log: log}
}

// rollbackTimeout bounds the account removal after a failed profile write.
const rollbackTimeout = 5 * time.Second

// rollbackAccount removes a half-registered account. It outlives the request
// context, which may be the reason the profile write failed.
func (s *authService) rollbackAccount(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	return s.backend.DeleteAccount(ctx, id)
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.Identity, error) {
	if !in.Role.Valid() {
		return nil, apperr.Validation("Bitte wählen Sie eine gültige Rolle", nil)
	}

	var firmID *string
	if in.Role == model.RoleClient {
		code := strings.TrimSpace(in.InviteCode)
		if code == "" {
			return nil, apperr.ErrInviteCodeRequired
		}
		firm, err := s.ResolveInviteCode(ctx, code)
		if err != nil {
			return nil, err
		}
		firmID = &firm.ID
	}

	acc, err := s.backend.CreateAccount(ctx, in.Email, in.Password, in.DisplayName)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.Create(ctx, &model.Profile{
		ID:     acc.ID,
		Email:  acc.Email,
		Role:   in.Role,
		FirmID: firmID,
	})
	if err != nil {
		if delErr := s.rollbackAccount(ctx, acc.ID); delErr != nil {
			s.log.Error("registration rollback failed",
				zap.String("user_id", acc.ID), zap.Error(delErr))
			return nil, fmt.Errorf("save profile: %v; rollback account: %v", err, delErr)
		}
		return nil, fmt.Errorf("save profile: %w", err)
	}

	if firmID != nil {
		s.notify(ctx, realtime.Event{Topic: realtime.ClientsTopic(*firmID), Op: realtime.OpInsert, Subject: profile.ID})
	}

	s.log.Info("account registered",
		zap.String("user_id", acc.ID), zap.String("role", string(in.Role)))

	return &model.Identity{
		ID:          acc.ID,
		Email:       acc.Email,
		Role:        profile.Role,
		DisplayName: acc.DisplayName,
	}, nil
}

func (s *authService) ResolveInviteCode(ctx context.Context, code string) (*model.Profile, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.ErrInviteCodeRequired
	}

	firm, err := s.profiles.FindFirmByEmail(ctx, strings.ToLower(code))
	if err == nil {
		return firm, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find firm by email: %w", err)
	}

	firm, err = s.profiles.FindFirmByID(ctx, code)
	if err == nil {
		return firm, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrInvalidInviteCode
	}
	return nil, fmt.Errorf("find firm by id: %w", err)
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	acc, sess, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	identity, err := s.identity(ctx, acc)
	if err != nil {
		if outErr := s.backend.SignOut(ctx, sess.Token); outErr != nil {
			s.log.Warn("discarding session failed", zap.String("user_id", acc.ID), zap.Error(outErr))
		}
		return nil, err
	}
	return &LoginResult{Identity: *identity, Session: *sess}, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return apperr.ErrNotAuthenticated
	}
	return s.backend.SignOut(ctx, token)
}

func (s *authService) Identify(ctx context.Context, token string) (*model.Identity, error) {
	p, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &p.Identity, nil
}

// Resolve implements session.Backend.
func (s *authService) Resolve(ctx context.Context, token string) (*session.Principal, error) {
	if token == "" {
		return nil, apperr.ErrNotAuthenticated
	}
	claims, err := s.backend.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	acc, err := s.backend.FindAccount(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	identity, err := s.identity(ctx, acc)
	if err != nil {
		return nil, err
	}
	return &session.Principal{Identity: *identity, TokenID: claims.ID}, nil
}

// WatchSession implements session.Backend.
func (s *authService) WatchSession(userID string, fn func(realtime.Event)) *realtime.Subscription {
	return s.backend.WatchSession(userID, fn)
}

func (s *authService) identity(ctx context.Context, acc *model.Account) (*model.Identity, error) {
	profile, err := s.profiles.FindByID(ctx, acc.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Profil nicht gefunden")
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &model.Identity{
		ID:          acc.ID,
		Email:       acc.Email,
		Role:        profile.Role,
		DisplayName: acc.DisplayName,
	}, nil
}

func (s *authService) notify(ctx context.Context, ev realtime.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("change notification failed", zap.String("topic", ev.Topic), zap.Error(err))
	}
}
