package service

import (
	"context"
	"fmt"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionTTLs holds the lifetimes of session-related tokens.
type SessionTTLs struct {
	Refresh       time.Duration
	AdminRefresh  time.Duration
	ResetPassword time.Duration
}

// SessionServiceImpl implements ports.SessionService.
type SessionServiceImpl struct {
	access   ports.AccessTokenService
	tokens   ports.TokenAuthority
	notifier ports.NotificationDispatcher
	ttls     SessionTTLs
	log      zerolog.Logger
}

// NewSessionService creates a new SessionServiceImpl.
func NewSessionService(
	access ports.AccessTokenService,
	tokens ports.TokenAuthority,
	notifier ports.NotificationDispatcher,
	ttls SessionTTLs,
	log zerolog.Logger,
) *SessionServiceImpl {
	return &SessionServiceImpl{
		access:   access,
		tokens:   tokens,
		notifier: notifier,
		ttls:     ttls,
		log:      log,
	}
}

// Issue mints an access JWT and a refresh token of the role's kind.
func (s *SessionServiceImpl) Issue(ctx context.Context, subjectID uuid.UUID, role domain.Role) (*ports.Session, error) {
	if !role.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown role %q", role))
	}

	accessToken, accessExp, err := s.access.Generate(subjectID, role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate access token: %w", err))
	}

	ttl := s.ttls.Refresh
	if role == domain.RoleEmployee {
		ttl = s.ttls.AdminRefresh
	}
	refresh, err := s.tokens.Issue(ctx, role.RefreshKind(), subjectID, ttl)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("subject_id", subjectID.String()).
		Str("role", string(role)).
		Msg("session issued")

	return &ports.Session{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Refresh rotates a refresh token: the presented one is consumed and a new
// session is issued to its owner. A replayed refresh token fails.
func (s *SessionServiceImpl) Refresh(ctx context.Context, refreshToken string, role domain.Role) (*ports.Session, error) {
	if !role.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown role %q", role))
	}
	ownerID, err := s.tokens.Consume(ctx, refreshToken, role.RefreshKind())
	if err != nil {
		return nil, err
	}
	return s.Issue(ctx, ownerID, role)
}

// Logout blacklists the refresh token. The access JWT lapses on its own.
func (s *SessionServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

// RequestPasswordReset issues a RESET_PASSWORD token to the subject's mailbox.
func (s *SessionServiceImpl) RequestPasswordReset(ctx context.Context, subjectID uuid.UUID) (*ports.TokenIssued, error) {
	token, err := s.tokens.Issue(ctx, domain.TokenKindResetPassword, subjectID, s.ttls.ResetPassword)
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(ctx, domain.OTPIssued{
		OwnerID:   subjectID,
		Kind:      token.Kind,
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	})

	return &ports.TokenIssued{Kind: token.Kind, ExpiresAt: token.ExpiresAt}, nil
}

// ConsumePasswordReset spends a RESET_PASSWORD token and returns its owner.
// Changing the credential itself is up to the caller.
func (s *SessionServiceImpl) ConsumePasswordReset(ctx context.Context, token string) (uuid.UUID, error) {
	return s.tokens.Consume(ctx, token, domain.TokenKindResetPassword)
}
