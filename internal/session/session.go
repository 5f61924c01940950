package session

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/campusmarket/storefront/internal/api"
	"github.com/campusmarket/storefront/internal/domain"
	"github.com/campusmarket/storefront/internal/logger"
	"github.com/campusmarket/storefront/internal/storage"
)

var (
	ErrAuth            = errors.New("session: authentication failed")
	ErrUnauthenticated = errors.New("session: not signed in")
	ErrForbidden       = errors.New("session: role not allowed")
)

// AuthError is a rejected login. Message is the backend's explanation when
// it gave one.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return "session: " + e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// AuthAPI is the part of the backend the session talks to.
type AuthAPI interface {
	Login(ctx context.Context, creds domain.Credentials) (api.Session, error)
	Register(ctx context.Context, profile domain.Profile) (domain.Identity, error)
	Me(ctx context.Context) (domain.Identity, error)
}

// Listener is notified when a session starts or ends. Notifications are
// delivered synchronously, after the session state has been updated. A
// stored credential discarded by Init is reported as SessionEnded. Signing
// in as another account while a session is active is reported only as
// SessionStarted for the new identity.
type Listener interface {
	SessionStarted(ctx context.Context, id domain.Identity)
	SessionEnded(ctx context.Context)
}

// Service holds the current identity, if any.
type Service struct {
	store    storage.Store
	auth     AuthAPI
	log      *zap.Logger
	now      func() time.Time
	validate *validator.Validate
	sfg      singleflight.Group

	mu        sync.RWMutex
	token     string
	identity  *domain.Identity
	listeners []Listener
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = logger.OrNop(l) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store storage.Store, auth AuthAPI, opts ...Option) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	s := &Service{
		store:    store,
		auth:     auth,
		log:      zap.NewNop(),
		now:      time.Now,
		validate: v,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers l for session start/end events.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Init restores a previously stored credential. A credential that cannot be
// resolved is discarded without surfacing an error and the session stays
// anonymous.
func (s *Service) Init(ctx context.Context) {
	_, _, _ = s.sfg.Do("restore", func() (any, error) {
		s.restore(ctx)
		return nil, nil
	})
}

func (s *Service) restore(ctx context.Context) {
	log := logger.WithTrace(ctx, s.log)

	var token string
	if err := storage.GetJSON(ctx, s.store, storage.KeyToken, &token); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("stored token unreadable, discarding", zap.Error(err))
			s.end(ctx)
		}
		return
	}
	if token == "" || s.expired(token) {
		log.Info("stored token expired, discarding")
		s.end(ctx)
		return
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	id, err := s.auth.Me(ctx)
	if err != nil {
		log.Info("stored token rejected, discarding", zap.Error(err))
		s.end(ctx)
		return
	}
	if err := storage.SetJSON(ctx, s.store, storage.KeyUser, id); err != nil {
		log.Warn("identity snapshot not persisted", zap.Error(err))
	}
	s.start(ctx, token, id)
}

// expired reports whether token is a JWT whose exp lies in the past. Tokens
// that are not JWTs are left to the backend to judge.
func (s *Service) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(s.now())
}

func (s *Service) Login(ctx context.Context, creds domain.Credentials) (domain.Identity, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	sess, err := s.auth.Login(ctx, creds)
	if err != nil {
		if domain.IsNetwork(err) {
			return domain.Identity{}, err
		}
		return domain.Identity{}, &AuthError{Message: api.Message(err, "invalid email or password"), Err: err}
	}
	if err := s.persist(ctx, sess); err != nil {
		return domain.Identity{}, err
	}
	s.start(ctx, sess.Token, sess.Identity)
	return sess.Identity, nil
}

// Register creates the account and then signs in with the same credentials.
func (s *Service) Register(ctx context.Context, profile domain.Profile) (domain.Identity, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Email = strings.TrimSpace(profile.Email)
	if err := s.validate.Struct(profile); err != nil {
		return domain.Identity{}, toValidationError(err)
	}

	if _, err := s.auth.Register(ctx, profile); err != nil {
		if domain.IsNetwork(err) {
			return domain.Identity{}, err
		}
		return domain.Identity{}, &domain.ValidationError{Message: api.Message(err, "registration failed")}
	}
	return s.Login(ctx, domain.Credentials{Email: profile.Email, Password: profile.Password})
}

// Logout forgets the credential both in memory and in local storage.
func (s *Service) Logout(ctx context.Context) {
	s.end(ctx)
}

// Teardown detaches listeners and drops in-memory state. Local storage is
// left alone so the next Init can restore the session.
func (s *Service) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = nil
	s.token = ""
	s.identity = nil
}

func (s *Service) CurrentUser() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return domain.Identity{}, false
	}
	return *s.identity, true
}

func (s *Service) IsAuthenticated() bool {
	_, ok := s.CurrentUser()
	return ok
}

func (s *Service) IsAdmin() bool {
	return s.hasRole(domain.RoleAdmin)
}

func (s *Service) IsSeller() bool {
	return s.hasRole(domain.RoleSeller)
}

// Token returns the bearer token of the current session, or "".
func (s *Service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// RequireRole guards a view. With no roles any signed-in user passes.
func (s *Service) RequireRole(roles ...domain.Role) error {
	id, ok := s.CurrentUser()
	if !ok {
		return ErrUnauthenticated
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if id.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

func (s *Service) hasRole(role domain.Role) bool {
	id, ok := s.CurrentUser()
	return ok && id.Role == role
}

func (s *Service) persist(ctx context.Context, sess api.Session) error {
	if err := storage.SetJSON(ctx, s.store, storage.KeyToken, sess.Token); err != nil {
		return err
	}
	return storage.SetJSON(ctx, s.store, storage.KeyUser, sess.Identity)
}

func (s *Service) start(ctx context.Context, token string, id domain.Identity) {
	s.mu.Lock()
	prev := s.identity
	s.token = token
	s.identity = &id
	s.mu.Unlock()

	log := logger.WithTrace(ctx, s.log)
	if prev != nil && prev.ID != id.ID {
		log.Info("switching account", zap.String("previous_user_id", prev.ID))
	}
	log.Info("session started", zap.String("user_id", id.ID), zap.String("role", string(id.Role)))
	for _, l := range s.snapshotListeners() {
		l.SessionStarted(ctx, id)
	}
}

// end discards the credential and tells listeners the session is over.
func (s *Service) end(ctx context.Context) {
	s.discard(ctx)
	for _, l := range s.snapshotListeners() {
		l.SessionEnded(ctx)
	}
}

func (s *Service) discard(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.identity = nil
	s.mu.Unlock()

	for _, key := range []string{storage.KeyToken, storage.KeyUser} {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn("credential not removed from storage", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *Service) snapshotListeners() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Listener, len(s.listeners))
	copy(out, s.listeners)
	return out
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "email":
		msg = "must be a valid email address"
	case "min":
		msg = "must be at least " + fe.Param() + " characters"
	case "oneof":
		msg = "must be one of: " + fe.Param()
	default:
		msg = "is invalid"
	}
	return &domain.ValidationError{Field: fe.Field(), Message: msg}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
