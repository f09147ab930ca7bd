// Package importer contains the batch upsert engine and the import job
// orchestrator that drives it.
package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/import-cli/internal/company"
	"github.com/sells-group/import-cli/internal/db"
	"github.com/sells-group/import-cli/internal/model"
	"github.com/sells-group/import-cli/internal/normalize"
	"github.com/sells-group/import-cli/internal/store"
	"github.com/sells-group/import-cli/pkg/enrich"
)

// EngineConfig tunes the upsert engine. Zero values take the defaults.
type EngineConfig struct {
	// ChunkSize bounds rows per store round-trip group. Default 25.
	ChunkSize int
	// LookupChunkSize bounds emails per bulk lookup call. Default 50.
	LookupChunkSize int
}

// Engine performs chunked lookup-or-insert/update of contact rows against
// the store, resolving each row's company inline.
type Engine struct {
	store      store.Store
	resolver   *company.Resolver
	profiles   enrich.Client // optional LinkedIn-based gap filling
	chunkSize  int
	lookupSize int
}

// NewEngine creates an upsert engine. profiles may be nil to disable
// LinkedIn enrichment.
func NewEngine(st store.Store, resolver *company.Resolver, profiles enrich.Client, cfg EngineConfig) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 25
	}
	if cfg.LookupChunkSize <= 0 {
		cfg.LookupChunkSize = 50
	}
	return &Engine{
		store:      st,
		resolver:   resolver,
		profiles:   profiles,
		chunkSize:  cfg.ChunkSize,
		lookupSize: cfg.LookupChunkSize,
	}
}

// prepRow carries a row's derived identity keys through the engine.
type prepRow struct {
	model.Row
	displayName  string
	explicitName bool // name came from the sheet, not derived from the email
	normEmail    string
	normPhone    string
	bestDomain   string
}

// Upsert writes the rows to the contact store in fixed-size chunks and
// returns the aggregate result. Failures are recovered at the smallest
// possible scope: a bad row yields one error outcome, a failed bulk lookup
// yields one entry covering its chunk, and the run always completes.
func (e *Engine) Upsert(ctx context.Context, rows []model.Row, opts model.Options) *model.UpsertResult {
	res := &model.UpsertResult{}
	eligible := e.preprocess(rows, res)

	for start := 0; start < len(eligible); start += e.chunkSize {
		end := min(start+e.chunkSize, len(eligible))
		e.processChunk(ctx, eligible[start:end], opts, res)
	}
	return res
}

// preprocess derives per-row keys and filters out rows with no identity
// key, recording them as skipped.
func (e *Engine) preprocess(rows []model.Row, res *model.UpsertResult) []prepRow {
	var eligible []prepRow
	for _, row := range rows {
		p := prepRow{
			Row:       row,
			normEmail: normalize.Email(row.Email),
			normPhone: normalize.Phone(row.Phone),
		}
		p.displayName = normalize.DisplayName(row.Name, row.FirstName, row.LastName, row.Email)
		p.explicitName = row.Name != "" || row.FirstName != "" || row.LastName != ""
		p.bestDomain = normalize.BestDomain(row.Domain, row.Email)

		p.LeadSource = normalize.LeadSource(row.LeadSource)
		if p.LeadSource == "" {
			p.LeadSource = normalize.LeadSource(row.SourceSheet)
		}
		p.Industry = normalize.Industry(row.Industry)

		if p.normEmail == "" && p.normPhone == "" {
			res.Report = append(res.Report, model.RowOutcome{
				Index:  row.Index,
				Status: model.OutcomeSkipped,
			})
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}

func (e *Engine) processChunk(ctx context.Context, chunk []prepRow, opts model.Options, res *model.UpsertResult) {
	var emailRows, phoneRows []prepRow
	for _, p := range chunk {
		if p.normEmail != "" {
			emailRows = append(emailRows, p)
		} else {
			phoneRows = append(phoneRows, p)
		}
	}

	existing, err := e.fetchExisting(ctx, emailRows)
	if err != nil {
		// One aggregate entry covers the chunk; every row still gets an
		// outcome so the report stays complete.
		msg := fmt.Sprintf("chunk starting at row %d: %v", chunk[0].Index, err)
		res.Errors = append(res.Errors, msg)
		for _, p := range chunk {
			res.Report = append(res.Report, model.RowOutcome{
				Index:  p.Index,
				Email:  p.normEmail,
				Phone:  p.normPhone,
				Status: model.OutcomeError,
				Error:  msg,
			})
		}
		return
	}

	for _, p := range emailRows {
		e.record(res, e.upsertEmailRow(ctx, p, opts, existing))
	}
	for _, p := range phoneRows {
		e.record(res, e.upsertPhoneRow(ctx, p, opts))
	}
}

// fetchExisting bulk-loads contacts for the chunk's emails, sub-chunked to
// respect the store's query size limit.
func (e *Engine) fetchExisting(ctx context.Context, emailRows []prepRow) (map[string]*model.Contact, error) {
	emailSet := map[string]bool{}
	for _, p := range emailRows {
		emailSet[p.normEmail] = true
	}
	emails := make([]string, 0, len(emailSet))
	for email := range emailSet {
		emails = append(emails, email)
	}

	existing := map[string]*model.Contact{}
	for start := 0; start < len(emails); start += e.lookupSize {
		end := min(start+e.lookupSize, len(emails))
		contacts, err := e.store.GetContactsByEmails(ctx, emails[start:end])
		if err != nil {
			return nil, err
		}
		for i := range contacts {
			c := contacts[i]
			existing[normalize.Email(c.Email)] = &c
		}
	}
	return existing, nil
}

type rowResult struct {
	outcome model.RowOutcome
	contact *model.Contact
}

func (e *Engine) record(res *model.UpsertResult, rr rowResult) {
	res.Report = append(res.Report, rr.outcome)
	switch rr.outcome.Status {
	case model.OutcomeOK:
		res.Imported++
		if rr.contact != nil {
			res.Data = append(res.Data, *rr.contact)
		}
	case model.OutcomeError:
		res.Errors = append(res.Errors, fmt.Sprintf("row %d: %s", rr.outcome.Index, rr.outcome.Error))
	}
}

// upsertEmailRow writes one email-keyed row. The existing map is shared
// across the chunk, so a later duplicate email resolves to an update of the
// record an earlier row just inserted.
func (e *Engine) upsertEmailRow(ctx context.Context, p prepRow, opts model.Options, existing map[string]*model.Contact) rowResult {
	outcome := model.RowOutcome{Index: p.Index, Email: p.normEmail, Phone: p.normPhone}

	e.fillFromLinkedIn(ctx, &p)
	companyID := e.resolveCompany(ctx, p)

	if match, ok := existing[p.normEmail]; ok {
		e.merge(match, p, companyID, opts.UpdateExisting)
		if err := e.store.UpdateContact(ctx, match); err != nil {
			outcome.Status = model.OutcomeError
			outcome.Error = err.Error()
			return rowResult{outcome: outcome}
		}
		outcome.Status = model.OutcomeOK
		outcome.ID = match.ID
		return rowResult{outcome: outcome, contact: match}
	}

	contact := e.newContact(p, companyID)
	if err := e.store.InsertContact(ctx, contact); err != nil {
		if !db.IsUniqueViolation(err) {
			outcome.Status = model.OutcomeError
			outcome.Error = err.Error()
			return rowResult{outcome: outcome}
		}
		// Another writer inserted this email first; recover by re-lookup
		// and fall through to the update path.
		winner, lookupErr := e.refetchByEmail(ctx, p.normEmail)
		if lookupErr != nil || winner == nil {
			outcome.Status = model.OutcomeError
			outcome.Error = fmt.Sprintf("lost insert race for %s and could not re-find winner", p.normEmail)
			return rowResult{outcome: outcome}
		}
		e.merge(winner, p, companyID, opts.UpdateExisting)
		if err := e.store.UpdateContact(ctx, winner); err != nil {
			outcome.Status = model.OutcomeError
			outcome.Error = err.Error()
			return rowResult{outcome: outcome}
		}
		contact = winner
	}

	existing[p.normEmail] = contact
	outcome.Status = model.OutcomeOK
	outcome.ID = contact.ID
	return rowResult{outcome: outcome, contact: contact}
}

// upsertPhoneRow writes one phone-only row via per-row lookup. Phone-only
// contacts are rare, so there is no batch path.
func (e *Engine) upsertPhoneRow(ctx context.Context, p prepRow, opts model.Options) rowResult {
	outcome := model.RowOutcome{Index: p.Index, Phone: p.normPhone}

	e.fillFromLinkedIn(ctx, &p)
	companyID := e.resolveCompany(ctx, p)

	match, err := e.store.GetContactByPhone(ctx, p.normPhone)
	if err != nil {
		outcome.Status = model.OutcomeError
		outcome.Error = err.Error()
		return rowResult{outcome: outcome}
	}

	if match != nil {
		e.merge(match, p, companyID, opts.UpdateExisting)
		if err := e.store.UpdateContact(ctx, match); err != nil {
			outcome.Status = model.OutcomeError
			outcome.Error = err.Error()
			return rowResult{outcome: outcome}
		}
		outcome.Status = model.OutcomeOK
		outcome.ID = match.ID
		return rowResult{outcome: outcome, contact: match}
	}

	contact := e.newContact(p, companyID)
	if err := e.store.InsertContact(ctx, contact); err != nil {
		outcome.Status = model.OutcomeError
		outcome.Error = err.Error()
		return rowResult{outcome: outcome}
	}
	outcome.Status = model.OutcomeOK
	outcome.ID = contact.ID
	return rowResult{outcome: outcome, contact: contact}
}

func (e *Engine) refetchByEmail(ctx context.Context, email string) (*model.Contact, error) {
	contacts, err := e.store.GetContactsByEmails(ctx, []string{email})
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// fillFromLinkedIn fills missing company/industry/role from the contact's
// LinkedIn profile. Any failure is logged and the row proceeds without it.
func (e *Engine) fillFromLinkedIn(ctx context.Context, p *prepRow) {
	if e.profiles == nil || p.LinkedInURL == "" {
		return
	}
	if p.Company != "" && p.Industry != "" && p.Role != "" {
		return
	}
	profile, err := e.profiles.FromLinkedIn(ctx, p.LinkedInURL)
	if err != nil {
		zap.L().Warn("upsert: linkedin enrichment failed",
			zap.Int("row", p.Index),
			zap.Error(err),
		)
		return
	}
	if profile == nil {
		return
	}
	if p.Company == "" {
		p.Company = profile.Company
	}
	if p.Industry == "" {
		p.Industry = normalize.Industry(profile.Industry)
	}
	if p.Role == "" {
		p.Role = profile.Role
	}
}

// resolveCompany resolves the row's company, treating any failure as soft.
func (e *Engine) resolveCompany(ctx context.Context, p prepRow) *int64 {
	if e.resolver == nil {
		return nil
	}
	id, err := e.resolver.Resolve(ctx, p.Company, p.bestDomain, p.Industry)
	if err != nil {
		zap.L().Warn("upsert: company resolution failed",
			zap.Int("row", p.Index),
			zap.String("company", p.Company),
			zap.Error(err),
		)
		return nil
	}
	return id
}

func (e *Engine) newContact(p prepRow, companyID *int64) *model.Contact {
	return &model.Contact{
		Name:        p.displayName,
		Email:       p.normEmail,
		Phone:       p.normPhone,
		Role:        p.Role,
		LinkedInURL: p.LinkedInURL,
		Industry:    p.Industry,
		City:        p.City,
		LeadSource:  p.LeadSource,
		CompanyID:   companyID,
	}
}

// merge folds an incoming row into an existing contact. With updateExisting,
// non-empty incoming fields win; otherwise only empty fields are filled. A
// conflicting email or phone lands in the secondary slot instead of
// overwriting the identity key. A name derived from the email never
// replaces a real one.
func (e *Engine) merge(c *model.Contact, p prepRow, companyID *int64, updateExisting bool) {
	set := func(dst *string, v string) {
		if v == "" {
			return
		}
		if updateExisting || *dst == "" {
			*dst = v
		}
	}

	if p.explicitName {
		set(&c.Name, p.displayName)
	} else if c.Name == "" {
		c.Name = p.displayName
	}

	if p.normEmail != "" {
		if c.Email == "" {
			c.Email = p.normEmail
		} else if c.Email != p.normEmail && c.SecondaryEmail == "" {
			c.SecondaryEmail = p.normEmail
		}
	}
	if p.normPhone != "" {
		if c.Phone == "" {
			c.Phone = p.normPhone
		} else if c.Phone != p.normPhone && c.SecondaryPhone == "" {
			c.SecondaryPhone = p.normPhone
		}
	}

	set(&c.Role, p.Role)
	set(&c.LinkedInURL, p.LinkedInURL)
	set(&c.Industry, p.Industry)
	set(&c.City, p.City)
	set(&c.LeadSource, p.LeadSource)

	if companyID != nil && (updateExisting || c.CompanyID == nil) {
		c.CompanyID = companyID
	}
}
