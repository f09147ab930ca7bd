// Package dedupe classifies incoming rows as duplicates of existing
// contacts or as unique.
package dedupe

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/import-cli/internal/model"
	"github.com/sells-group/import-cli/internal/normalize"
)

// Match types reported on duplicates. Email takes precedence when a row
// matches on both axes.
const (
	MatchEmail = "email"
	MatchPhone = "phone"
)

// Store defines the bulk lookups the detector needs.
type Store interface {
	GetContactsByEmails(ctx context.Context, emails []string) ([]model.Contact, error)
	GetContactsByPhones(ctx context.Context, phones []string) ([]model.Contact, error)
}

// Duplicate pairs a row with the contact it matched and how.
type Duplicate struct {
	Row       model.Row
	MatchType string
	Existing  model.Contact
}

// Detector finds rows that already exist in the contact store.
type Detector struct {
	store Store
}

// NewDetector creates a duplicate detector.
func NewDetector(store Store) *Detector {
	return &Detector{store: store}
}

// FindDuplicates classifies each row against the existing store using at
// most two bulk lookups, one per identity axis. A lookup failure degrades
// that axis to an empty result set rather than aborting detection.
func (d *Detector) FindDuplicates(ctx context.Context, rows []model.Row) (duplicates []Duplicate, uniques []model.Row) {
	emailSet := map[string]bool{}
	phoneSet := map[string]bool{}
	for _, row := range rows {
		if e := normalize.Email(row.Email); e != "" {
			emailSet[e] = true
		}
		if p := normalize.Phone(row.Phone); p != "" {
			phoneSet[p] = true
		}
	}

	byEmail := d.lookup(ctx, keys(emailSet), d.store.GetContactsByEmails, "email")
	byPhone := d.lookup(ctx, keys(phoneSet), d.store.GetContactsByPhones, "phone")

	emailIndex := map[string]model.Contact{}
	for _, c := range byEmail {
		emailIndex[normalize.Email(c.Email)] = c
	}
	phoneIndex := map[string]model.Contact{}
	for _, c := range byPhone {
		phoneIndex[normalize.Phone(c.Phone)] = c
	}

	for _, row := range rows {
		if existing, ok := emailIndex[normalize.Email(row.Email)]; ok && normalize.Email(row.Email) != "" {
			duplicates = append(duplicates, Duplicate{Row: row, MatchType: MatchEmail, Existing: existing})
			continue
		}
		if existing, ok := phoneIndex[normalize.Phone(row.Phone)]; ok && normalize.Phone(row.Phone) != "" {
			duplicates = append(duplicates, Duplicate{Row: row, MatchType: MatchPhone, Existing: existing})
			continue
		}
		uniques = append(uniques, row)
	}
	return duplicates, uniques
}

func (d *Detector) lookup(ctx context.Context, values []string, fetch func(context.Context, []string) ([]model.Contact, error), axis string) []model.Contact {
	if len(values) == 0 {
		return nil
	}
	contacts, err := fetch(ctx, values)
	if err != nil {
		zap.L().Warn("dedupe: lookup failed, treating axis as empty",
			zap.String("axis", axis),
			zap.Int("keys", len(values)),
			zap.Error(err),
		)
		return nil
	}
	return contacts
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
