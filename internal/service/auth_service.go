package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"

	"github.com/samber/oops"
	"gorm.io/gorm"

	"imagevault/internal/auth"
	"imagevault/internal/errors"
	"imagevault/internal/model"
	"imagevault/internal/notify"
	"imagevault/internal/repository"
)

// Registration is the input of Register.
type Registration struct {
	FirstName      string
	LastName       string
	Email          string
	Password       string
	RepeatPassword string
}

// Profile describes the calling identity.
type Profile struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	Authorities []string   `json:"authorities"`
}

// AuthService handles registration, login and the password reset handshake.
type AuthService interface {
	Register(ctx context.Context, reg Registration) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, newPassword, repeatPassword, resetToken string) error
	Profile(ctx context.Context, bearer string) (*Profile, error)
}

type authService struct {
	repo          repository.IdentityRepository
	tokens        *auth.JWTService
	hasher        auth.PasswordHasher
	authenticator auth.Authenticator
	notifier      notify.Notifier
	resetLinkBase string
	resolver      identityResolver
	newResetToken func() (string, error)
	options
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	repo repository.IdentityRepository,
	tokens *auth.JWTService,
	hasher auth.PasswordHasher,
	authenticator auth.Authenticator,
	notifier notify.Notifier,
	resetLinkBase string,
	opts ...Option,
) AuthService {
	o := buildOptions(opts)
	return &authService{
		repo:          repo,
		tokens:        tokens,
		hasher:        hasher,
		authenticator: authenticator,
		notifier:      notifier,
		resetLinkBase: resetLinkBase,
		resolver:      identityResolver{tokens: tokens, repo: repo, cache: o.cache},
		newResetToken: generateResetToken,
		options:       o,
	}
}

// Register creates an identity with role USER and returns a fresh token.
func (s *authService) Register(ctx context.Context, reg Registration) (token string, err error) {
	defer func() { s.metrics.RecordAuth("register", err) }()

	exists, err := s.repo.ExistsByEmail(ctx, reg.Email)
	if err != nil {
		return "", oops.With("email", reg.Email).Wrapf(err, "check identity existence")
	}
	if exists {
		return "", errors.AlreadyExists("User with that email already exists")
	}
	if reg.Password != reg.RepeatPassword {
		return "", errors.PasswordMismatch("Password do not match")
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return "", err
	}
	identity := &model.Identity{
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Email:        reg.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	// A concurrent registration can still win the race; the repository
	// reports the unique index violation as ALREADY_EXISTS.
	if err := s.repo.Create(ctx, identity); err != nil {
		return "", err
	}
	s.cache.Put(ctx, identity)
	s.logger.InfoContext(ctx, "identity registered", "identity_id", identity.ID)

	return s.tokens.Issue(identity)
}

// Login checks the credentials through the authenticator and issues a token.
func (s *authService) Login(ctx context.Context, email, password string) (token string, err error) {
	defer func() { s.metrics.RecordAuth("login", err) }()

	identity, err := s.repo.FindByEmail(ctx, email)
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.NotFound("User with that email does not exist")
	}
	if err != nil {
		return "", oops.With("email", email).Wrapf(err, "load identity")
	}

	if err := s.authenticator.Authenticate(ctx, identity, password); err != nil {
		return "", err
	}
	return s.tokens.Issue(identity)
}

// ForgotPassword stores a new reset token and sends the reset link. The token
// is committed before dispatch, so a failed send leaves a usable token behind.
func (s *authService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer func() { s.metrics.RecordAuth("forgot_password", err) }()

	var resetToken string
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.IdentityRepository) error {
		identity, err := repo.FindByEmail(ctx, email)
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("User with that email does not exist")
		}
		if err != nil {
			return oops.With("email", email).Wrapf(err, "load identity")
		}

		resetToken, err = s.newResetToken()
		if err != nil {
			return err
		}
		identity.ResetToken = &resetToken
		return repo.Update(ctx, identity)
	})
	if err != nil {
		return err
	}

	link, err := notify.ResetLink(s.resetLinkBase, resetToken)
	if err != nil {
		return oops.With("base", s.resetLinkBase).Wrapf(err, "build reset link")
	}
	if err := s.notifier.SendResetLink(ctx, email, link); err != nil {
		return errors.NotificationDeliveryFailed(err, "Could not send password reset email")
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the password hash.
func (s *authService) ResetPassword(ctx context.Context, newPassword, repeatPassword, resetToken string) (err error) {
	defer func() { s.metrics.RecordAuth("reset_password", err) }()

	if resetToken == "" {
		return errors.InvalidToken("Invalid password reset token")
	}

	var email string
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.IdentityRepository) error {
		identity, err := repo.FindByResetToken(ctx, resetToken)
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.InvalidToken("Invalid password reset token")
		}
		if err != nil {
			return oops.Wrapf(err, "load identity by reset token")
		}
		if newPassword != repeatPassword {
			return errors.PasswordMismatch("Passwords do not match")
		}

		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		identity.PasswordHash = hash
		identity.ResetToken = nil
		email = identity.Email
		return repo.Update(ctx, identity)
	})
	if err != nil {
		return err
	}

	s.cache.Evict(ctx, email)
	return nil
}

// Profile returns the caller's identity and role authorities.
func (s *authService) Profile(ctx context.Context, bearer string) (*Profile, error) {
	identity, err := s.resolver.resolve(ctx, bearer)
	if err != nil {
		return nil, err
	}
	return &Profile{
		ID:          identity.ID.String(),
		FirstName:   identity.FirstName,
		LastName:    identity.LastName,
		Email:       identity.Email,
		Role:        identity.Role,
		Authorities: auth.Authorities(identity.Role),
	}, nil
}

// generateResetToken returns 16 random bytes as 32 hex characters.
func generateResetToken() (string, error) {
	buf := make([]byte, model.ResetTokenLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Wrapf(err, "generate reset token")
	}
	return hex.EncodeToString(buf), nil
}
