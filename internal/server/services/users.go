// Package services contains server-side business logic on top of the
// repositories and the vault. This file implements UserService, which
// registers accounts and exchanges credentials for access tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/cryptox"
	"github.com/dmitrijs2005/examvault/internal/logging"
	"github.com/dmitrijs2005/examvault/internal/server/access"
	"github.com/dmitrijs2005/examvault/internal/server/auth"
	"github.com/dmitrijs2005/examvault/internal/server/config"
	"github.com/dmitrijs2005/examvault/internal/server/models"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/repomanager"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// dummySalt feeds the password hash when the account does not exist, so a
// miss costs about as much as a wrong password.
var dummySalt = make([]byte, cryptox.PasswordSaltSize)

// UserService provides account operations.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	logger                      logging.Logger
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.JWTSecret),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		logger:                      logger.With("module", "users"),
	}
}

func validateCredentials(email, password string, role access.Role) error {
	if email == "" || password == "" || role == "" {
		return fmt.Errorf("%w: email, password and role are required", common.ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", common.ErrValidation)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: invalid role %q", common.ErrValidation, role)
	}
	return nil
}

// Register creates an account with an argon2id password verifier.
func (s *UserService) Register(ctx context.Context, email, password string, role access.Role) (*models.User, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password, role); err != nil {
		return nil, err
	}

	salt := common.GenerateRandByteArray(cryptox.PasswordSaltSize)
	user := &models.User{
		Email:        email,
		Role:         role,
		Salt:         salt,
		PasswordHash: cryptox.HashPassword([]byte(password), salt),
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	s.logger.Info(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login checks the credentials and returns a signed access token. The
// account must exist with the requested role. Every credential mismatch
// yields common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string, role access.Role) (string, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password, role); err != nil {
		return "", err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.HashPassword([]byte(password), dummySalt)
			return "", common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "lookup user", "error", err)
		return "", common.ErrorInternal
	}

	if !cryptox.VerifyPassword(user.PasswordHash, user.Salt, []byte(password)) || user.Role != role {
		s.logger.Info(ctx, "login rejected", "user_id", user.ID)
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(access.Principal{ID: user.ID, Role: user.Role}, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		s.logger.Error(ctx, "sign token", "error", err)
		return "", common.ErrorInternal
	}
	return token, nil
}
