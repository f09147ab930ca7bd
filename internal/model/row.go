package model

// Row is one mapped spreadsheet row. The header-mapping step produces this
// fixed shape so downstream stages never deal with raw cell bags; fields the
// sheet did not provide stay empty.
type Row struct {
	Index       int    `json:"index"`
	Name        string `json:"name,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Company     string `json:"company,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Role        string `json:"role,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	Industry    string `json:"industry,omitempty"`
	City        string `json:"city,omitempty"`
	LeadSource  string `json:"lead_source,omitempty"`

	// SourceSheet is the sheet the row came from, used as a lead-source
	// fallback when the sheet provides none.
	SourceSheet string `json:"source_sheet,omitempty"`
}

// Options controls one import run.
type Options struct {
	// SelectedSheets restricts parsing to the named sheets. Empty means all.
	SelectedSheets []string `json:"selected_sheets,omitempty"`

	// ColumnMap maps spreadsheet header text to canonical field names,
	// overriding the built-in synonym table.
	ColumnMap map[string]string `json:"column_map,omitempty"`

	// ImportOnlyNew discards rows that match existing contacts before upsert.
	ImportOnlyNew bool `json:"import_only_new"`

	// UpdateExisting overwrites fields on matched contacts. When false,
	// matched contacts only have empty fields backfilled.
	UpdateExisting bool `json:"update_existing"`
}

// Row outcome statuses.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// RowOutcome is the per-row audit entry produced by the upsert engine.
// Every eligible row yields exactly one outcome.
type RowOutcome struct {
	Index  int    `json:"index"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Status string `json:"status"`
	ID     int64  `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// UpsertResult aggregates one upsert call.
type UpsertResult struct {
	// Imported counts successful inserts plus updates.
	Imported int `json:"imported"`
	// Errors holds row- and chunk-granularity error entries.
	Errors []string `json:"errors,omitempty"`
	// Data holds the contact records as written.
	Data []Contact `json:"data,omitempty"`
	// Report is the full per-row audit trail.
	Report []RowOutcome `json:"report"`
}
