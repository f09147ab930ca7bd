package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/import-cli/internal/db"
	"github.com/sells-group/import-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	domain     TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	location   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_domain ON companies(domain) WHERE domain != '';
CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(lower(name));

CREATE TABLE IF NOT EXISTS contacts (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	secondary_email TEXT NOT NULL DEFAULT '',
	secondary_phone TEXT NOT NULL DEFAULT '',
	role            TEXT NOT NULL DEFAULT '',
	linkedin_url    TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	lead_source     TEXT NOT NULL DEFAULT '',
	company_id      BIGINT REFERENCES companies(id),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email) WHERE email != '';
CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts(phone) WHERE phone != '';
CREATE INDEX IF NOT EXISTS idx_contacts_company_id ON contacts(company_id);

CREATE TABLE IF NOT EXISTS import_jobs (
	id                TEXT PRIMARY KEY,
	file_name         TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'pending',
	total_records     INTEGER NOT NULL DEFAULT 0,
	processed_records INTEGER NOT NULL DEFAULT 0,
	imported_count    INTEGER NOT NULL DEFAULT 0,
	error_count       INTEGER NOT NULL DEFAULT 0,
	skipped_count     INTEGER NOT NULL DEFAULT 0,
	error_details     JSONB NOT NULL DEFAULT '[]',
	progress_message  TEXT NOT NULL DEFAULT '',
	started_at        TIMESTAMPTZ,
	completed_at      TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_import_jobs_status ON import_jobs(status);
CREATE INDEX IF NOT EXISTS idx_import_jobs_created_at ON import_jobs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const contactColumns = `id, name, email, phone, secondary_email, secondary_phone, role, linkedin_url, industry, city, lead_source, company_id, created_at, updated_at`

func contactDests(c *model.Contact) []any {
	return []any{
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.SecondaryEmail, &c.SecondaryPhone,
		&c.Role, &c.LinkedInURL, &c.Industry, &c.City, &c.LeadSource,
		&c.CompanyID, &c.CreatedAt, &c.UpdatedAt,
	}
}

func scanContacts(rows pgx.Rows) ([]model.Contact, error) {
	var out []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(contactDests(&c)...); err != nil {
			return nil, eris.Wrap(err, "contacts: scan")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "contacts: rows")
}

func (s *PostgresStore) GetContactsByEmails(ctx context.Context, emails []string) ([]model.Contact, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE email = ANY($1)`, emails)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: get by emails")
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (s *PostgresStore) GetContactsByPhones(ctx context.Context, phones []string) ([]model.Contact, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE phone = ANY($1)`, phones)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: get by phones")
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (s *PostgresStore) GetContactByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	c := &model.Contact{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE phone = $1 ORDER BY id LIMIT 1`, phone).
		Scan(contactDests(c)...)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "contacts: get by phone %s", phone)
	}
	return c, nil
}

func (s *PostgresStore) InsertContact(ctx context.Context, c *model.Contact) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (
			name, email, phone, secondary_email, secondary_phone,
			role, linkedin_url, industry, city, lead_source, company_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Email, c.Phone, c.SecondaryEmail, c.SecondaryPhone,
		c.Role, c.LinkedInURL, c.Industry, c.City, c.LeadSource, c.CompanyID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return eris.Wrap(err, "contacts: insert")
}

func (s *PostgresStore) UpdateContact(ctx context.Context, c *model.Contact) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE contacts SET
			name=$2, email=$3, phone=$4, secondary_email=$5, secondary_phone=$6,
			role=$7, linkedin_url=$8, industry=$9, city=$10, lead_source=$11,
			company_id=$12, updated_at=now()
		WHERE id=$1`,
		c.ID,
		c.Name, c.Email, c.Phone, c.SecondaryEmail, c.SecondaryPhone,
		c.Role, c.LinkedInURL, c.Industry, c.City, c.LeadSource, c.CompanyID,
	)
	return eris.Wrapf(err, "contacts: update %d", c.ID)
}

const companyColumns = `id, name, domain, industry, location, created_at, updated_at`

func companyDests(c *model.Company) []any {
	return []any{&c.ID, &c.Name, &c.Domain, &c.Industry, &c.Location, &c.CreatedAt, &c.UpdatedAt}
}

func (s *PostgresStore) GetCompanyByDomain(ctx context.Context, domain string) (*model.Company, error) {
	c := &model.Company{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE domain = $1 ORDER BY id LIMIT 1`, domain).
		Scan(companyDests(c)...)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "companies: get by domain %s", domain)
	}
	return c, nil
}

func (s *PostgresStore) SearchCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	c := &model.Company{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE name ILIKE '%' || $1 || '%' ORDER BY id LIMIT 1`, name).
		Scan(companyDests(c)...)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "companies: search by name %s", name)
	}
	return c, nil
}

func (s *PostgresStore) InsertCompany(ctx context.Context, c *model.Company) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO companies (name, domain, industry, location)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Domain, c.Industry, c.Location,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return eris.Wrap(err, "companies: insert")
}

func (s *PostgresStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE companies SET name=$2, domain=$3, industry=$4, location=$5, updated_at=now()
		WHERE id=$1`,
		c.ID, c.Name, c.Domain, c.Industry, c.Location,
	)
	return eris.Wrapf(err, "companies: update %d", c.ID)
}

func (s *PostgresStore) FirstContactEmail(ctx context.Context, companyID int64) (string, error) {
	var email string
	err := s.pool.QueryRow(ctx,
		`SELECT email FROM contacts WHERE company_id = $1 AND email != '' ORDER BY id LIMIT 1`,
		companyID).Scan(&email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", eris.Wrapf(err, "contacts: first email for company %d", companyID)
	}
	return email, nil
}

const jobColumns = `id, file_name, status, total_records, processed_records, imported_count, error_count, skipped_count, error_details, progress_message, started_at, completed_at, created_at, updated_at`

func (s *PostgresStore) CreateJob(ctx context.Context, j *model.ImportJob) error {
	details, err := json.Marshal(j.ErrorDetails)
	if err != nil {
		return eris.Wrap(err, "jobs: marshal error details")
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO import_jobs (
			id, file_name, status, total_records, processed_records,
			imported_count, error_count, skipped_count, error_details,
			progress_message, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		j.ID, j.FileName, string(j.Status), j.TotalRecords, j.ProcessedRecords,
		j.ImportedCount, j.ErrorCount, j.SkippedCount, details,
		j.ProgressMessage, j.StartedAt, j.CompletedAt,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	return eris.Wrap(err, "jobs: create")
}

func (s *PostgresStore) UpdateJob(ctx context.Context, j *model.ImportJob) error {
	details, err := json.Marshal(j.ErrorDetails)
	if err != nil {
		return eris.Wrap(err, "jobs: marshal error details")
	}
	j.UpdatedAt = time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		UPDATE import_jobs SET
			status=$2, total_records=$3, processed_records=$4, imported_count=$5,
			error_count=$6, skipped_count=$7, error_details=$8, progress_message=$9,
			started_at=$10, completed_at=$11, updated_at=now()
		WHERE id=$1`,
		j.ID, string(j.Status), j.TotalRecords, j.ProcessedRecords, j.ImportedCount,
		j.ErrorCount, j.SkippedCount, details, j.ProgressMessage,
		j.StartedAt, j.CompletedAt,
	)
	return eris.Wrapf(err, "jobs: update %s", j.ID)
}

func scanJob(row pgx.Row) (*model.ImportJob, error) {
	j := &model.ImportJob{}
	var status string
	var details []byte
	err := row.Scan(
		&j.ID, &j.FileName, &status, &j.TotalRecords, &j.ProcessedRecords,
		&j.ImportedCount, &j.ErrorCount, &j.SkippedCount, &details,
		&j.ProgressMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &j.ErrorDetails); err != nil {
			return nil, eris.Wrap(err, "jobs: unmarshal error details")
		}
	}
	return j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.ImportJob, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "jobs: get %s", id)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, limit int) ([]model.ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM import_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: list")
	}
	defer rows.Close()

	var out []model.ImportJob
	for rows.Next() {
		j := model.ImportJob{}
		var status string
		var details []byte
		if err := rows.Scan(
			&j.ID, &j.FileName, &status, &j.TotalRecords, &j.ProcessedRecords,
			&j.ImportedCount, &j.ErrorCount, &j.SkippedCount, &details,
			&j.ProgressMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "jobs: scan")
		}
		j.Status = model.JobStatus(status)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &j.ErrorDetails); err != nil {
				return nil, eris.Wrap(err, "jobs: unmarshal error details")
			}
		}
		out = append(out, j)
	}
	return out, eris.Wrap(rows.Err(), "jobs: rows")
}
