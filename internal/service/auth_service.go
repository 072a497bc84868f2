package service

import (
	"context"
	"time"

	"github.com/notedapp/noted-sync/internal/authflow"
	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/internal/dto"
	"github.com/notedapp/noted-sync/pkg/code"
	"github.com/notedapp/noted-sync/pkg/logger"

	"go.uber.org/zap"
)

// AuthService orchestrates account lifecycle: the device-flow sign-in, the
// list of connected accounts and disconnection.
type AuthService interface {
	// Connect starts a device-flow attempt and returns the prompt to show
	// the user. Polling continues in the background; Wait observes the
	// outcome.
	Connect(ctx context.Context) (*dto.ConnectPrompt, error)

	// Wait blocks until the running attempt reaches a terminal status or
	// ctx is cancelled, in which case the attempt is cancelled too.
	Wait(ctx context.Context) (*dto.ConnectResult, error)

	// Accounts lists every connected account.
	Accounts(ctx context.Context) ([]dto.ConnectResult, error)

	// Disconnect removes an account's credential and sync mappings. Local
	// notes stay untouched.
	Disconnect(ctx context.Context, account string) error
}

type authService struct {
	auth     *authflow.Authenticator
	creds    domain.CredentialRepository
	mappings domain.MappingRepository
	logger   *zap.Logger

	session *authflow.Session
}

// NewAuthService creates AuthService instance
func NewAuthService(auth *authflow.Authenticator, creds domain.CredentialRepository, mappings domain.MappingRepository, lg *zap.Logger) AuthService {
	return &authService{auth: auth, creds: creds, mappings: mappings, logger: lg}
}

func (s *authService) Connect(ctx context.Context) (*dto.ConnectPrompt, error) {
	session, err := s.auth.Start(ctx)
	if err != nil {
		return nil, err
	}
	s.session = session
	return &dto.ConnectPrompt{
		UserCode:        session.UserCode(),
		VerificationURI: session.VerificationURI(),
		ExpiresAt:       session.ExpiresAt().Format(time.RFC3339),
	}, nil
}

func (s *authService) Wait(ctx context.Context) (*dto.ConnectResult, error) {
	if s.session == nil {
		return nil, code.ErrAuthFailed.WithDetails("no sign-in attempt in progress")
	}
	select {
	case <-ctx.Done():
		s.session.Cancel()
		<-s.session.Done()
		return nil, ctx.Err()
	case <-s.session.Done():
	}
	if err := s.session.Err(); err != nil {
		return nil, err
	}
	cred := s.session.Credential()
	s.logger.Info("account connected",
		zap.String(logger.FieldAccount, cred.Account))
	return &dto.ConnectResult{
		Account:   cred.Account,
		UserName:  cred.UserName,
		UserEmail: cred.UserEmail,
	}, nil
}

func (s *authService) Accounts(ctx context.Context) ([]dto.ConnectResult, error) {
	creds, err := s.creds.List(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]dto.ConnectResult, 0, len(creds))
	for _, c := range creds {
		results = append(results, dto.ConnectResult{
			Account:   c.Account,
			UserName:  c.UserName,
			UserEmail: c.UserEmail,
		})
	}
	return results, nil
}

func (s *authService) Disconnect(ctx context.Context, account string) error {
	if _, err := s.creds.Get(ctx, account); err != nil {
		return err
	}
	mappings, err := s.mappings.ListByAccount(ctx, account)
	if err != nil {
		return err
	}
	for _, m := range mappings {
		if err := s.mappings.Delete(ctx, account, m.LocalID); err != nil {
			return err
		}
	}
	if err := s.creds.Delete(ctx, account); err != nil {
		return err
	}
	s.logger.Info("account disconnected",
		zap.String(logger.FieldAccount, account))
	return nil
}
