// Package company resolves (name, domain, industry) triples to company
// records, creating them when absent.
package company

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/import-cli/internal/db"
	"github.com/sells-group/import-cli/internal/model"
	"github.com/sells-group/import-cli/internal/normalize"
	"github.com/sells-group/import-cli/pkg/enrich"
)

var titleCaser = cases.Title(language.English)

// Resolver handles company identity resolution. Uniqueness by domain is
// best-effort: a duplicate-insert race is recovered by re-lookup, never
// surfaced to the caller as a failure.
type Resolver struct {
	store    Store
	enricher enrich.Client
}

// NewResolver creates a company resolver. The enricher may be nil, in which
// case the enrichment fallback step is skipped.
func NewResolver(store Store, enricher enrich.Client) *Resolver {
	return &Resolver{store: store, enricher: enricher}
}

// Resolve finds or creates the company for the given attributes and returns
// its id. The cascade, first success wins:
//
//  1. Exact lookup by normalized domain.
//  2. Substring name match; a domain-less match gets its domain backfilled
//     from the caller or from one linked contact's email.
//  3. Enrichment by domain when no name was supplied.
//  4. Name synthesized from the domain's leading label.
//  5. Insert, recovering from duplicate-insert races by re-lookup.
//
// Returns (nil, nil) when neither name nor domain yields anything to store.
func (r *Resolver) Resolve(ctx context.Context, name, domain, industry string) (*int64, error) {
	name = strings.TrimSpace(name)
	domain = strings.ToLower(strings.TrimSpace(domain))
	industry = normalize.Industry(industry)

	if name == "" && domain == "" {
		return nil, nil
	}

	if domain != "" {
		existing, err := r.store.GetCompanyByDomain(ctx, domain)
		if err != nil {
			return nil, eris.Wrap(err, "company: resolve by domain")
		}
		if existing != nil {
			zap.L().Debug("resolve: matched by domain",
				zap.String("domain", domain),
				zap.Int64("company_id", existing.ID),
			)
			return &existing.ID, nil
		}
	}

	if name != "" {
		// Unanchored substring match, deliberately: "Ford" will match
		// "Fordham Inc". Kept as-is pending product guidance.
		match, err := r.store.SearchCompanyByName(ctx, name)
		if err != nil {
			zap.L().Warn("resolve: name search failed", zap.Error(err))
		} else if match != nil {
			r.backfillDomain(ctx, match, domain)
			zap.L().Debug("resolve: matched by name",
				zap.String("name", name),
				zap.Int64("company_id", match.ID),
			)
			return &match.ID, nil
		}
	}

	location := ""
	if name == "" && domain != "" && r.enricher != nil {
		profile, err := r.enricher.FromDomain(ctx, domain, "")
		if err != nil {
			zap.L().Warn("resolve: enrichment failed",
				zap.String("domain", domain),
				zap.Error(err),
			)
		} else if profile != nil && profile.Name != "" {
			name = profile.Name
			location = profile.Location
			if industry == "" {
				industry = normalize.Industry(profile.Industry)
			}
		}
	}

	if name == "" {
		name = nameFromDomain(domain)
	}
	if name == "" && domain == "" {
		return nil, nil
	}

	record := &model.Company{
		Name:     name,
		Domain:   domain,
		Industry: industry,
		Location: location,
	}
	if err := r.store.InsertCompany(ctx, record); err != nil {
		if db.IsUniqueViolation(err) {
			return r.recoverExisting(ctx, name, domain)
		}
		return nil, eris.Wrap(err, "company: create")
	}

	zap.L().Info("resolve: created new company",
		zap.String("name", name),
		zap.String("domain", domain),
		zap.Int64("company_id", record.ID),
	)
	return &record.ID, nil
}

// backfillDomain fills a matched company's missing domain, preferring the
// caller-supplied one, falling back to the email domain of one linked
// contact. Failures are logged and swallowed.
func (r *Resolver) backfillDomain(ctx context.Context, c *model.Company, domain string) {
	if c.Domain != "" {
		return
	}

	d := domain
	if d == "" {
		email, err := r.store.FirstContactEmail(ctx, c.ID)
		if err != nil {
			zap.L().Warn("resolve: contact email lookup failed",
				zap.Int64("company_id", c.ID),
				zap.Error(err),
			)
			return
		}
		d = normalize.DomainFromEmail(email)
	}
	if d == "" {
		return
	}

	c.Domain = d
	if err := r.store.UpdateCompany(ctx, c); err != nil {
		zap.L().Warn("resolve: domain backfill failed",
			zap.Int64("company_id", c.ID),
			zap.String("domain", d),
			zap.Error(err),
		)
		c.Domain = ""
	}
}

// recoverExisting re-finds the company another writer inserted first.
func (r *Resolver) recoverExisting(ctx context.Context, name, domain string) (*int64, error) {
	if name != "" {
		match, err := r.store.SearchCompanyByName(ctx, name)
		if err == nil && match != nil {
			return &match.ID, nil
		}
	}
	if domain != "" {
		existing, err := r.store.GetCompanyByDomain(ctx, domain)
		if err == nil && existing != nil {
			return &existing.ID, nil
		}
	}
	return nil, eris.Errorf("company: lost insert race for %q/%q and could not re-find winner", name, domain)
}

// nameFromDomain synthesizes a display name from the domain's leading label:
// "acme.com" becomes "Acme".
func nameFromDomain(domain string) string {
	if domain == "" {
		return ""
	}
	label, _, _ := strings.Cut(domain, ".")
	return titleCaser.String(label)
}
