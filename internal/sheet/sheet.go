// Package sheet parses uploaded workbooks into mapped contact rows.
package sheet

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/import-cli/internal/model"
)

// Canonical field names produced by header mapping.
const (
	FieldName       = "name"
	FieldFirstName  = "first_name"
	FieldLastName   = "last_name"
	FieldEmail      = "email"
	FieldPhone      = "phone"
	FieldCompany    = "company"
	FieldDomain     = "domain"
	FieldRole       = "role"
	FieldLinkedIn   = "linkedin"
	FieldIndustry   = "industry"
	FieldCity       = "city"
	FieldLeadSource = "lead_source"
)

// headerSynonyms maps common spreadsheet header spellings to canonical
// fields. Lookup is on the trimmed, lower-cased header text.
var headerSynonyms = map[string]string{
	"name":          FieldName,
	"full name":     FieldName,
	"fullname":      FieldName,
	"contact name":  FieldName,
	"contact":       FieldName,
	"first name":    FieldFirstName,
	"firstname":     FieldFirstName,
	"first":         FieldFirstName,
	"last name":     FieldLastName,
	"lastname":      FieldLastName,
	"last":          FieldLastName,
	"surname":       FieldLastName,
	"email":         FieldEmail,
	"e-mail":        FieldEmail,
	"email address": FieldEmail,
	"mail":          FieldEmail,
	"phone":           FieldPhone,
	"phone number":    FieldPhone,
	"mobile":          FieldPhone,
	"cell":            FieldPhone,
	"telephone":       FieldPhone,
	"company":         FieldCompany,
	"company name":    FieldCompany,
	"organization":    FieldCompany,
	"organisation":    FieldCompany,
	"account":         FieldCompany,
	"domain":          FieldDomain,
	"website":         FieldDomain,
	"company website": FieldDomain,
	"company domain":  FieldDomain,
	"url":             FieldDomain,
	"role":          FieldRole,
	"title":         FieldRole,
	"job title":     FieldRole,
	"position":      FieldRole,
	"linkedin":      FieldLinkedIn,
	"linkedin url":  FieldLinkedIn,
	"linkedin profile": FieldLinkedIn,
	"industry":      FieldIndustry,
	"sector":        FieldIndustry,
	"city":          FieldCity,
	"location":      FieldCity,
	"town":          FieldCity,
	"lead source":   FieldLeadSource,
	"lead_source":   FieldLeadSource,
	"source":        FieldLeadSource,
}

// Options configures workbook parsing.
type Options struct {
	// SelectedSheets restricts parsing to the named sheets
	// (case-insensitive). Empty means every sheet.
	SelectedSheets []string
	// ColumnMap maps header text to canonical field names, taking
	// precedence over the built-in synonyms.
	ColumnMap map[string]string
}

// Parse reads workbook bytes and returns the mapped data rows across the
// selected sheets. Rows with no name, email, or phone are dropped. Each row
// is tagged with its source sheet and a workbook-wide index.
func Parse(data []byte, opts Options) ([]model.Row, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("sheet: workbook has no sheets")
	}

	selected := map[string]bool{}
	for _, name := range opts.SelectedSheets {
		selected[strings.ToLower(strings.TrimSpace(name))] = true
	}

	var rows []model.Row
	index := 0
	for _, sh := range f.Sheets {
		if len(selected) > 0 && !selected[strings.ToLower(sh.Name)] {
			continue
		}
		if len(sh.Rows) == 0 {
			continue
		}

		fields := mapHeader(rowCells(sh.Rows[0]), opts.ColumnMap)
		if len(fields) == 0 {
			zap.L().Warn("sheet: no recognizable headers, skipping sheet",
				zap.String("sheet", sh.Name),
			)
			continue
		}

		for _, raw := range sh.Rows[1:] {
			row := mapRow(rowCells(raw), fields)
			if row.Name == "" && row.FirstName == "" && row.LastName == "" &&
				row.Email == "" && row.Phone == "" {
				continue
			}
			row.Index = index
			row.SourceSheet = sh.Name
			rows = append(rows, row)
			index++
		}
	}
	return rows, nil
}

// mapHeader resolves each header cell to a canonical field, returning a
// column-position → field mapping. The caller-supplied map wins over the
// synonym table.
func mapHeader(header []string, columnMap map[string]string) map[int]string {
	fields := map[int]string{}
	for i, cell := range header {
		key := strings.ToLower(strings.TrimSpace(cell))
		if key == "" {
			continue
		}
		if columnMap != nil {
			if field, ok := columnMap[key]; ok {
				fields[i] = field
				continue
			}
		}
		if field, ok := headerSynonyms[key]; ok {
			fields[i] = field
		}
	}
	return fields
}

func mapRow(cells []string, fields map[int]string) model.Row {
	var row model.Row
	for i, field := range fields {
		if i >= len(cells) {
			continue
		}
		v := strings.TrimSpace(cells[i])
		if v == "" {
			continue
		}
		switch field {
		case FieldName:
			row.Name = v
		case FieldFirstName:
			row.FirstName = v
		case FieldLastName:
			row.LastName = v
		case FieldEmail:
			row.Email = v
		case FieldPhone:
			row.Phone = v
		case FieldCompany:
			row.Company = v
		case FieldDomain:
			row.Domain = v
		case FieldRole:
			row.Role = v
		case FieldLinkedIn:
			row.LinkedInURL = v
		case FieldIndustry:
			row.Industry = v
		case FieldCity:
			row.City = v
		case FieldLeadSource:
			row.LeadSource = v
		}
	}
	return row
}

func rowCells(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}
