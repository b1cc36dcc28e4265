package models

import (
	"time"

	"github.com/google/uuid"
)

// Source scopes known to the service. Each one is an independent partition of
// the store, replaced wholesale on every sync.
const (
	SourceUNConsolidated = "UN_CONSOLIDATED"
	SourceMexSancionados = "MEX_SANCIONADOS"
	SourceSAT69B         = "SAT_69B"
)

// Alias is an alternative name published for a listed individual.
type Alias struct {
	Quality string `json:"quality,omitempty"`
	Name    string `json:"name"`
	Note    string `json:"note,omitempty"`
}

// Address is a known location of a listed individual.
type Address struct {
	Street        string `json:"street,omitempty"`
	City          string `json:"city,omitempty"`
	StateProvince string `json:"state_province,omitempty"`
	Country       string `json:"country,omitempty"`
	Note          string `json:"note,omitempty"`
}

// BirthDate keeps the feed's loose date-of-birth shape (exact date, year only,
// or a range described by TypeOfDate).
type BirthDate struct {
	TypeOfDate string `json:"type_of_date,omitempty"`
	Date       string `json:"date,omitempty"`
	Year       string `json:"year,omitempty"`
	FromYear   string `json:"from_year,omitempty"`
	ToYear     string `json:"to_year,omitempty"`
}

// Place is a place of birth.
type Place struct {
	City          string `json:"city,omitempty"`
	StateProvince string `json:"state_province,omitempty"`
	Country       string `json:"country,omitempty"`
}

// Document is an identity document referenced by a listing.
type Document struct {
	Type           string `json:"type,omitempty"`
	Number         string `json:"number,omitempty"`
	IssuingCountry string `json:"issuing_country,omitempty"`
	Note           string `json:"note,omitempty"`
}

// CanonicalRecord is one feed entry normalized by a source adapter, before it
// reaches the store.
type CanonicalRecord struct {
	Source          string
	DataID          string
	EntityName      string
	Program         string
	Remarks         string
	ReferenceNumber string
	ListType        string
	Gender          string
	Nationality     string
	ListedOn        *time.Time
	SanctionDate    *time.Time
	LastUpdated     *time.Time
	Aliases         []Alias
	Addresses       []Address
	Designations    []string
	BirthDates      []BirthDate
	BirthPlaces     []Place
	Documents       []Document
	// StrongKey is a canonicalized identifier (e.g. an RFC tax id) whose
	// equality across records is treated as a same-identity signal.
	StrongKey string
}

// SanctionRecord is a persisted CanonicalRecord. ProfileID and Embedding are
// owned by the identity resolver and the embedding backfill respectively;
// reconciliation never clears them.
type SanctionRecord struct {
	CanonicalRecord
	ID        int64
	ProfileID *uuid.UUID
	// Embedding is only populated by stores that keep vectors in memory;
	// HasEmbedding is always accurate.
	Embedding    []float32
	HasEmbedding bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentityProfile is one real-world person or organization believed to span
// one or more sanction records.
type IdentityProfile struct {
	ID          uuid.UUID
	PrimaryName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
