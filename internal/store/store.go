// Package store persists contacts, companies, and import jobs. Two backends
// are provided: Postgres (pgx) for production and SQLite for local use.
package store

import (
	"context"

	"github.com/sells-group/import-cli/internal/model"
)

// Store defines the persistence interface for the import pipeline.
//
// Company uniqueness by domain is advisory: backends enforce it with a
// partial unique index, and callers recover from duplicate-insert races by
// re-looking the record up rather than aborting.
type Store interface {
	// Contacts
	GetContactsByEmails(ctx context.Context, emails []string) ([]model.Contact, error)
	GetContactsByPhones(ctx context.Context, phones []string) ([]model.Contact, error)
	GetContactByPhone(ctx context.Context, phone string) (*model.Contact, error)
	InsertContact(ctx context.Context, c *model.Contact) error
	UpdateContact(ctx context.Context, c *model.Contact) error

	// Companies
	GetCompanyByDomain(ctx context.Context, domain string) (*model.Company, error)
	// SearchCompanyByName returns the first company whose name contains the
	// given fragment, case-insensitively, or nil when none matches. The
	// unanchored match can merge unrelated companies whose names contain one
	// another; see the resolver notes before changing it.
	SearchCompanyByName(ctx context.Context, name string) (*model.Company, error)
	InsertCompany(ctx context.Context, c *model.Company) error
	UpdateCompany(ctx context.Context, c *model.Company) error
	// FirstContactEmail returns the email of one contact linked to the
	// company, or "" when the company has no contacts with an email.
	FirstContactEmail(ctx context.Context, companyID int64) (string, error)

	// Import jobs
	CreateJob(ctx context.Context, j *model.ImportJob) error
	UpdateJob(ctx context.Context, j *model.ImportJob) error
	GetJob(ctx context.Context, id string) (*model.ImportJob, error)
	ListJobs(ctx context.Context, limit int) ([]model.ImportJob, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
