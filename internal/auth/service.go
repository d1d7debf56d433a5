// Package auth implements account registration, session management and
// administrator role resolution.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ftsi/facsite/internal/model"
	"github.com/ftsi/facsite/internal/repository"
)

const minPasswordLength = 6

// Service defines the authentication operations.
type Service interface {
	// SignUp registers a new account. Registration does not authenticate:
	// the caller still has to sign in afterwards.
	SignUp(ctx context.Context, email, password, nom, prenom string) (*model.User, error)

	// SignIn verifies the credentials and opens a session. Unknown email and
	// wrong password return the same error.
	SignIn(ctx context.Context, email, password string) (*model.Session, error)

	// SignOut closes the session. It is idempotent and always lands the
	// caller in the logged-out state, even when the session row could not be
	// removed.
	SignOut(ctx context.Context, sessionID string) error

	// CurrentUser returns the session and its user, or nil when the session
	// is absent or expired.
	CurrentUser(ctx context.Context, sessionID string) (*model.User, *model.Session, error)

	// ResolveRole reports whether the user is an administrator. The lookup
	// fails closed: any error or any membership count other than exactly one
	// yields false.
	ResolveRole(ctx context.Context, userID string) bool
}

type authService struct {
	users         repository.UserRepository
	sessions      repository.SessionRepository
	admins        repository.AdminRepository
	sessionMaxAge time.Duration
	logger        *slog.Logger
}

// NewService creates the authentication service. sessionMaxAge bounds the
// lifetime of sessions opened by SignIn.
func NewService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	admins repository.AdminRepository,
	sessionMaxAge time.Duration,
	logger *slog.Logger,
) Service {
	return &authService{
		users:         users,
		sessions:      sessions,
		admins:        admins,
		sessionMaxAge: sessionMaxAge,
		logger:        logger,
	}
}

func (s *authService) SignUp(ctx context.Context, email, password, nom, prenom string) (*model.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, model.NewValidationError("adresse email invalide")
	}
	if len(password) < minPasswordLength {
		return nil, model.NewValidationError(fmt.Sprintf("le mot de passe doit contenir au moins %d caractères", minPasswordLength))
	}
	if nom == "" {
		return nil, model.NewValidationError("le nom est obligatoire")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email availability: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Nom:          nom,
		Prenom:       prenom,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

func (s *authService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		// Equalize the timing of the unknown-email and wrong-password paths.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000uGZwCZDEb3rIkBQ0I0QsI4Lp0XrGJGK"), []byte(password))
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        id,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.sessionMaxAge),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed in", slog.String("user_id", user.ID))
	return session, nil
}

func (s *authService) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		// The caller still ends up logged out: the cookie is cleared and the
		// leftover row expires on its own.
		s.logger.ErrorContext(ctx, "failed to delete session on sign-out", slog.String("error", err.Error()))
	}
	return nil
}

func (s *authService) CurrentUser(ctx context.Context, sessionID string) (*model.User, *model.Session, error) {
	if sessionID == "" {
		return nil, nil, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up session user: %w", err)
	}
	if user == nil {
		// The account vanished under a live session. Treat as logged out.
		return nil, nil, nil
	}

	return user, session, nil
}

func (s *authService) ResolveRole(ctx context.Context, userID string) bool {
	count, err := s.admins.CountByUserID(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "role lookup failed, treating user as non-administrator",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if count != 1 {
		if count > 1 {
			s.logger.WarnContext(ctx, "duplicate administrator rows, treating user as non-administrator",
				slog.String("user_id", userID),
				slog.Int("count", count),
			)
		}
		return false
	}
	return true
}

// generateSessionID returns a 64 character hex token from 32 random bytes.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// compile-time interface check
var _ Service = (*authService)(nil)
