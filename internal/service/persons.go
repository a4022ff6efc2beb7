// Package service contains the application service over the person store.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/and161185/persondb/internal/errs"
	"github.com/and161185/persondb/internal/limiter"
	"github.com/and161185/persondb/internal/model"
	"github.com/and161185/persondb/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// PersonService defines the person record operations exposed to callers.
type PersonService interface {
	// Create validates and stores a new person, returning its identifier.
	Create(ctx context.Context, p model.Person) (uuid.UUID, error)
	// Get returns the person with the given identifier.
	Get(ctx context.Context, id uuid.UUID) (model.Person, error)
	// Update applies the non-empty fields of ch.
	Update(ctx context.Context, id uuid.UUID, ch model.PersonChanges) error
	// Delete removes the person.
	Delete(ctx context.Context, id uuid.UUID) error
	// Lookup resolves a login to an identifier.
	Lookup(ctx context.Context, login string) (uuid.UUID, error)
	// Verify checks login/password with rate limiting and issues an access token.
	Verify(ctx context.Context, login, password string) (model.Tokens, uuid.UUID, error)
	// Authenticate validates an access token and returns the live record it names.
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
	// Count returns the number of live records.
	Count(ctx context.Context) (int, error)
	// Check verifies store consistency.
	Check(ctx context.Context) error
}

// forgetter is implemented by limiters that can drop per-login state.
type forgetter interface{ Forget(login string) }

type PersonServiceImpl struct {
	mu        sync.Mutex // guards st; held for the whole of every call
	st        repository.PersonRepository
	lim       limiter.Limiter
	signKey   []byte
	accessTTL time.Duration
	log       *zap.Logger
}

// NewPersonService constructs PersonService with required dependencies.
// A nil logger is replaced by a no-op logger.
func NewPersonService(st repository.PersonRepository, lim limiter.Limiter, signKey []byte, accessTTL time.Duration, log *zap.Logger) *PersonServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &PersonServiceImpl{st: st, lim: lim, signKey: signKey, accessTTL: accessTTL, log: log}
}

var _ PersonService = (*PersonServiceImpl)(nil)

// Create validates and inserts a new person.
func (s *PersonServiceImpl) Create(ctx context.Context, p model.Person) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.st.Create(p)
	if err != nil {
		s.log.Info("create rejected", zap.String("login", p.Login), zap.Error(err))
		return uuid.Nil, err
	}
	s.log.Info("person created", zap.Stringer("id", id), zap.String("login", p.Login))
	return id, nil
}

// Get returns a copy of the stored person.
func (s *PersonServiceImpl) Get(ctx context.Context, id uuid.UUID) (model.Person, error) {
	if err := ctx.Err(); err != nil {
		return model.Person{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Read(id)
}

// Update applies changes to an existing person.
func (s *PersonServiceImpl) Update(ctx context.Context, id uuid.UUID, ch model.PersonChanges) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch.IsEmpty() {
		// still report unknown ids
		_, err := s.st.Read(id)
		return err
	}

	prev, err := s.st.Read(id)
	if err != nil {
		return err
	}
	if err := s.st.Update(id, ch); err != nil {
		s.log.Info("update rejected", zap.Stringer("id", id), zap.Error(err))
		return err
	}
	fields := []zap.Field{zap.Stringer("id", id)}
	if ch.Login != "" && ch.Login != prev.Login {
		fields = append(fields, zap.String("old_login", prev.Login), zap.String("login", ch.Login))
		s.forget(prev.Login)
	}
	if ch.Password != "" {
		fields = append(fields, zap.Bool("password_changed", true))
		s.forget(prev.Login)
	}
	s.log.Info("person updated", fields...)
	return nil
}

// Delete removes a person and its login index entry.
func (s *PersonServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.st.Read(id)
	if err != nil {
		return err
	}
	if err := s.st.Delete(id); err != nil {
		return err
	}
	s.forget(p.Login)
	s.log.Info("person deleted", zap.Stringer("id", id), zap.String("login", p.Login))
	return nil
}

// Lookup resolves a login to its identifier.
func (s *PersonServiceImpl) Lookup(ctx context.Context, login string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Lookup(login)
}

// Verify authenticates login/password with rate limiting by login and
// issues a signed access token for the record.
func (s *PersonServiceImpl) Verify(ctx context.Context, login, password string) (model.Tokens, uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return model.Tokens{}, uuid.Nil, err
	}

	allowed, _, err := s.lim.Allow(ctx, login)
	if err != nil {
		return model.Tokens{}, uuid.Nil, err
	}
	if !allowed {
		return model.Tokens{}, uuid.Nil, errs.ErrRateLimited
	}

	s.mu.Lock()
	id, lerr := s.st.Lookup(login)
	var p model.Person
	if lerr == nil {
		p, lerr = s.st.Read(id)
	}
	s.mu.Unlock()

	if lerr != nil || subtle.ConstantTimeCompare([]byte(password), []byte(p.Password)) != 1 {
		// Record failure; if threshold reached, report rate-limited.
		if blocked, _, ferr := s.lim.Failure(ctx, login); ferr == nil && blocked {
			s.log.Warn("verification locked", zap.String("login", login))
			return model.Tokens{}, uuid.Nil, errs.ErrRateLimited
		}
		if lerr != nil && !errors.Is(lerr, errs.ErrNotFound) {
			return model.Tokens{}, uuid.Nil, lerr
		}
		// unknown login and wrong password look the same to the caller
		return model.Tokens{}, uuid.Nil, errs.ErrUnauthorized
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, login)

	access, exp, err := s.issueAccessToken(id)
	if err != nil {
		return model.Tokens{}, uuid.Nil, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, id, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *PersonServiceImpl) issueAccessToken(id uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// Authenticate verifies an HS256 access token and returns its subject,
// provided the record still exists.
func (s *PersonServiceImpl) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.st.Read(id); err != nil {
		// token outlived its record
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}

// Count returns the number of live records.
func (s *PersonServiceImpl) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Len(), nil
}

// Check verifies that the login index and record table agree.
func (s *PersonServiceImpl) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.Check(); err != nil {
		s.log.Error("store inconsistent", zap.Error(err))
		return err
	}
	return nil
}

func (s *PersonServiceImpl) forget(login string) {
	if f, ok := s.lim.(forgetter); ok {
		f.Forget(login)
	}
}
