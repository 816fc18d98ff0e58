package service

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/samber/oops"
	"gorm.io/gorm"

	"imagevault/internal/auth"
	"imagevault/internal/cache"
	"imagevault/internal/errors"
	"imagevault/internal/observability"
	"imagevault/internal/repository"
)

// Option configures optional collaborators shared by the services.
type Option func(*options)

type options struct {
	cache    *cache.IdentityCache
	metrics  *observability.Metrics
	logger   *slog.Logger
	activity ActivityRecorder
}

// WithIdentityCache serves caller lookups from c before hitting MySQL.
func WithIdentityCache(c *cache.IdentityCache) Option {
	return func(o *options) { o.cache = c }
}

// WithMetrics records operation outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithActivityRecorder logs asset mutations to r.
func WithActivityRecorder(r ActivityRecorder) Option {
	return func(o *options) { o.activity = r }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// identityResolver turns a bearer credential into the calling identity.
type identityResolver struct {
	tokens *auth.JWTService
	repo   repository.IdentityRepository
	cache  *cache.IdentityCache
}

// resolve strips the bearer prefix, extracts the subject and loads the
// identity. Token expiry is not checked here; the HTTP gate does that.
func (r identityResolver) resolve(ctx context.Context, bearer string) (*cache.CachedIdentity, error) {
	email, err := r.tokens.SubjectFromBearer(bearer)
	if err != nil {
		return nil, err
	}
	if cached := r.cache.Get(ctx, email); cached != nil {
		return cached, nil
	}

	identity, err := r.repo.FindByEmail(ctx, email)
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("User %s does not exist", email)
	}
	if err != nil {
		return nil, oops.With("email", email).Wrapf(err, "load identity")
	}
	r.cache.Put(ctx, identity)
	ci := cache.FromIdentity(identity)
	return &ci, nil
}
