package company

import (
	"context"

	"github.com/sells-group/import-cli/internal/model"
)

// Store defines the persistence operations the resolver needs.
type Store interface {
	GetCompanyByDomain(ctx context.Context, domain string) (*model.Company, error)
	SearchCompanyByName(ctx context.Context, name string) (*model.Company, error)
	InsertCompany(ctx context.Context, c *model.Company) error
	UpdateCompany(ctx context.Context, c *model.Company) error
	FirstContactEmail(ctx context.Context, companyID int64) (string, error)
}
