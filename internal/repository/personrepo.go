// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"github.com/and161185/persondb/internal/model"
	"github.com/gofrs/uuid/v5"
)

// PersonRepository provides CRUD access to person records and their login index.
// Implementations need not be safe for concurrent use.
type PersonRepository interface {
	// Create validates and inserts a person, returning the generated identifier.
	Create(p model.Person) (uuid.UUID, error)
	// Read loads a person by identifier.
	Read(id uuid.UUID) (model.Person, error)
	// Update applies the non-empty fields of ch.
	Update(id uuid.UUID, ch model.PersonChanges) error
	// Delete removes a person and its login index entry.
	Delete(id uuid.UUID) error
	// Lookup resolves a login to an identifier.
	Lookup(login string) (uuid.UUID, error)
	// Len returns the number of live records.
	Len() int
	// Check verifies index/table consistency.
	Check() error
}
