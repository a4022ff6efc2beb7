// Package store implements the in-memory person record store: a record table
// keyed by random identifier and a login uniqueness index kept in sync with it.
//
// A Store is not safe for concurrent use; callers that share one must
// serialize access (see service.PersonService).
package store

import (
	"fmt"
	"sort"

	"github.com/and161185/persondb/internal/errs"
	"github.com/and161185/persondb/internal/model"
	"github.com/and161185/persondb/internal/policy"
	"github.com/and161185/persondb/internal/repository"
	"github.com/gofrs/uuid/v5"
)

var _ repository.PersonRepository = (*Store)(nil)

// Store owns the record table and the login index.
type Store struct {
	records map[uuid.UUID]model.Person
	logins  map[string]uuid.UUID
	retired map[uuid.UUID]struct{} // deleted ids, never handed out again
	policy  *policy.Policy
	newID   func() (uuid.UUID, error)
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy overrides the default validation policy.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithIDGenerator overrides identifier generation (tests only).
func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(s *Store) { s.newID = gen }
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		records: map[uuid.UUID]model.Person{},
		logins:  map[string]uuid.UUID{},
		retired: map[uuid.UUID]struct{}{},
		policy:  policy.Default(),
		newID:   uuid.NewV4,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates p and inserts it, returning the new record identifier.
func (s *Store) Create(p model.Person) (uuid.UUID, error) {
	if err := s.validateLogin(p.Login, uuid.Nil); err != nil {
		return uuid.Nil, err
	}
	if err := s.policy.ValidatePassword(p.Password); err != nil {
		return uuid.Nil, err
	}
	id, err := s.allocateID()
	if err != nil {
		return uuid.Nil, err
	}

	s.records[id] = p
	s.logins[p.Login] = id
	return id, nil
}

// Read returns a copy of the record with the given id.
func (s *Store) Read(id uuid.UUID) (model.Person, error) {
	p, ok := s.records[id]
	if !ok {
		return model.Person{}, &errs.NotFoundError{ID: id}
	}
	return p, nil
}

// Update applies the non-empty fields of ch to the record with the given id.
// All changed fields are validated before anything is written; changes with
// every field empty are a successful no-op.
func (s *Store) Update(id uuid.UUID, ch model.PersonChanges) error {
	cur, ok := s.records[id]
	if !ok {
		return &errs.NotFoundError{ID: id}
	}

	next := cur
	relogin := ch.Login != "" && ch.Login != cur.Login
	if relogin {
		if err := s.validateLogin(ch.Login, id); err != nil {
			return err
		}
		next.Login = ch.Login
	}
	if ch.Password != "" {
		if err := s.policy.ValidatePassword(ch.Password); err != nil {
			return err
		}
		next.Password = ch.Password
	}
	if ch.Username != "" {
		next.Username = ch.Username
	}
	if ch.Metadata != "" {
		next.Metadata = ch.Metadata
	}

	if relogin {
		delete(s.logins, cur.Login)
		s.logins[next.Login] = id
	}
	s.records[id] = next
	return nil
}

// Delete removes the record and its login index entry.
func (s *Store) Delete(id uuid.UUID) error {
	p, ok := s.records[id]
	if !ok {
		return &errs.NotFoundError{ID: id}
	}
	delete(s.logins, p.Login)
	delete(s.records, id)
	s.retired[id] = struct{}{}
	return nil
}

// Lookup resolves a login to its record identifier.
func (s *Store) Lookup(login string) (uuid.UUID, error) {
	id, ok := s.logins[login]
	if !ok {
		return uuid.Nil, &errs.NotFoundError{Login: login}
	}
	return id, nil
}

// Len returns the number of live records.
func (s *Store) Len() int { return len(s.records) }

// Logins returns the indexed logins in sorted order.
func (s *Store) Logins() []string {
	out := make([]string, 0, len(s.logins))
	for l := range s.logins {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Check verifies that the login index and the record table agree.
func (s *Store) Check() error {
	if len(s.logins) != len(s.records) {
		return fmt.Errorf("index has %d logins, table has %d records", len(s.logins), len(s.records))
	}
	for login, id := range s.logins {
		p, ok := s.records[id]
		if !ok {
			return fmt.Errorf("login %q points to missing record %s", login, id)
		}
		if p.Login != login {
			return fmt.Errorf("login %q points to record %s with login %q", login, id, p.Login)
		}
	}
	for id, p := range s.records {
		if got, ok := s.logins[p.Login]; !ok || got != id {
			return fmt.Errorf("record %s login %q is not indexed to it", id, p.Login)
		}
	}
	return nil
}

// validateLogin applies the login policy and the uniqueness rule; self is the
// record allowed to already own the login (uuid.Nil on create).
func (s *Store) validateLogin(login string, self uuid.UUID) error {
	if err := s.policy.ValidateLogin(login); err != nil {
		return err
	}
	if owner, taken := s.logins[login]; taken && owner != self {
		return errs.NewValidation("login", errs.KindDuplicateLogin, fmt.Sprintf("%q is taken", login))
	}
	return nil
}

const maxIDAttempts = 8

func (s *Store) allocateID() (uuid.UUID, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := s.newID()
		if err != nil {
			return uuid.Nil, fmt.Errorf("generate id: %w", err)
		}
		if id == uuid.Nil {
			continue
		}
		if _, live := s.records[id]; live {
			continue
		}
		if _, dead := s.retired[id]; dead {
			continue
		}
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("generate id: no unused id after %d attempts", maxIDAttempts)
}
