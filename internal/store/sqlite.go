package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/import-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Single writer connection: keeps concurrent jobs serialized and makes
	// ":memory:" refer to one database rather than one per pooled conn.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL DEFAULT '',
	domain     TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	location   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_domain ON companies(domain) WHERE domain != '';
CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS contacts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
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
	company_id      INTEGER REFERENCES companies(id),
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
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
	error_details     TEXT NOT NULL DEFAULT '[]',
	progress_message  TEXT NOT NULL DEFAULT '',
	started_at        DATETIME,
	completed_at      DATETIME,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_import_jobs_status ON import_jobs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func sqliteContactDests(c *model.Contact, companyID *sql.NullInt64) []any {
	return []any{
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.SecondaryEmail, &c.SecondaryPhone,
		&c.Role, &c.LinkedInURL, &c.Industry, &c.City, &c.LeadSource,
		companyID, &c.CreatedAt, &c.UpdatedAt,
	}
}

func scanSQLiteContacts(rows *sql.Rows) ([]model.Contact, error) {
	var out []model.Contact
	for rows.Next() {
		var c model.Contact
		var companyID sql.NullInt64
		if err := rows.Scan(sqliteContactDests(&c, &companyID)...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		if companyID.Valid {
			c.CompanyID = &companyID.Int64
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: contact rows")
}

func (s *SQLiteStore) queryContacts(ctx context.Context, column string, values []string) ([]model.Contact, error) {
	if len(values) == 0 {
		return nil, nil
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE `+column+` IN (`+placeholders(len(values))+`)`,
		args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contacts by %s", column)
	}
	defer rows.Close()
	return scanSQLiteContacts(rows)
}

func (s *SQLiteStore) GetContactsByEmails(ctx context.Context, emails []string) ([]model.Contact, error) {
	return s.queryContacts(ctx, "email", emails)
}

func (s *SQLiteStore) GetContactsByPhones(ctx context.Context, phones []string) ([]model.Contact, error) {
	return s.queryContacts(ctx, "phone", phones)
}

func (s *SQLiteStore) GetContactByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	c := &model.Contact{}
	var companyID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE phone = ? ORDER BY id LIMIT 1`, phone).
		Scan(sqliteContactDests(c, &companyID)...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get contact by phone %s", phone)
	}
	if companyID.Valid {
		c.CompanyID = &companyID.Int64
	}
	return c, nil
}

func (s *SQLiteStore) InsertContact(ctx context.Context, c *model.Contact) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (
			name, email, phone, secondary_email, secondary_phone,
			role, linkedin_url, industry, city, lead_source, company_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Email, c.Phone, c.SecondaryEmail, c.SecondaryPhone,
		c.Role, c.LinkedInURL, c.Industry, c.City, c.LeadSource, nullableID(c.CompanyID),
		now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert contact")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: insert contact id")
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, c *model.Contact) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE contacts SET
			name=?, email=?, phone=?, secondary_email=?, secondary_phone=?,
			role=?, linkedin_url=?, industry=?, city=?, lead_source=?,
			company_id=?, updated_at=?
		WHERE id=?`,
		c.Name, c.Email, c.Phone, c.SecondaryEmail, c.SecondaryPhone,
		c.Role, c.LinkedInURL, c.Industry, c.City, c.LeadSource,
		nullableID(c.CompanyID), c.UpdatedAt, c.ID,
	)
	return eris.Wrapf(err, "sqlite: update contact %d", c.ID)
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func (s *SQLiteStore) scanCompany(row *sql.Row, context string) (*model.Company, error) {
	c := &model.Company{}
	err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.Industry, &c.Location, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, context)
	}
	return c, nil
}

func (s *SQLiteStore) GetCompanyByDomain(ctx context.Context, domain string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE domain = ? ORDER BY id LIMIT 1`, domain)
	return s.scanCompany(row, "sqlite: get company by domain")
}

func (s *SQLiteStore) SearchCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	// LIKE is case-insensitive for ASCII in SQLite, matching the ILIKE
	// semantics of the Postgres backend.
	row := s.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE name LIKE '%' || ? || '%' ORDER BY id LIMIT 1`, name)
	return s.scanCompany(row, "sqlite: search company by name")
}

func (s *SQLiteStore) InsertCompany(ctx context.Context, c *model.Company) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (name, domain, industry, location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Domain, c.Industry, c.Location, now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert company")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: insert company id")
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE companies SET name=?, domain=?, industry=?, location=?, updated_at=? WHERE id=?`,
		c.Name, c.Domain, c.Industry, c.Location, c.UpdatedAt, c.ID,
	)
	return eris.Wrapf(err, "sqlite: update company %d", c.ID)
}

func (s *SQLiteStore) FirstContactEmail(ctx context.Context, companyID int64) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx,
		`SELECT email FROM contacts WHERE company_id = ? AND email != '' ORDER BY id LIMIT 1`,
		companyID).Scan(&email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", eris.Wrapf(err, "sqlite: first contact email for company %d", companyID)
	}
	return email, nil
}

func (s *SQLiteStore) CreateJob(ctx context.Context, j *model.ImportJob) error {
	details, err := json.Marshal(j.ErrorDetails)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal error details")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO import_jobs (
			id, file_name, status, total_records, processed_records,
			imported_count, error_count, skipped_count, error_details,
			progress_message, started_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.FileName, string(j.Status), j.TotalRecords, j.ProcessedRecords,
		j.ImportedCount, j.ErrorCount, j.SkippedCount, string(details),
		j.ProgressMessage, j.StartedAt, j.CompletedAt, now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: create job")
	}
	j.CreatedAt = now
	j.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, j *model.ImportJob) error {
	details, err := json.Marshal(j.ErrorDetails)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal error details")
	}
	j.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE import_jobs SET
			status=?, total_records=?, processed_records=?, imported_count=?,
			error_count=?, skipped_count=?, error_details=?, progress_message=?,
			started_at=?, completed_at=?, updated_at=?
		WHERE id=?`,
		string(j.Status), j.TotalRecords, j.ProcessedRecords, j.ImportedCount,
		j.ErrorCount, j.SkippedCount, string(details), j.ProgressMessage,
		j.StartedAt, j.CompletedAt, j.UpdatedAt, j.ID,
	)
	return eris.Wrapf(err, "sqlite: update job %s", j.ID)
}

func scanSQLiteJob(scan func(dest ...any) error) (*model.ImportJob, error) {
	j := &model.ImportJob{}
	var status, details string
	var startedAt, completedAt sql.NullTime
	err := scan(
		&j.ID, &j.FileName, &status, &j.TotalRecords, &j.ProcessedRecords,
		&j.ImportedCount, &j.ErrorCount, &j.SkippedCount, &details,
		&j.ProgressMessage, &startedAt, &completedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	if details != "" {
		if err := json.Unmarshal([]byte(details), &j.ErrorDetails); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal error details")
		}
	}
	return j, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.ImportJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE id = ?`, id)
	j, err := scanSQLiteJob(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, limit int) ([]model.ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM import_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var out []model.ImportJob
	for rows.Next() {
		j, err := scanSQLiteJob(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		out = append(out, *j)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: job rows")
}
