package importer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sells-group/import-cli/internal/model"
)

// fakeStore is an in-memory Store for exercising the engine and
// orchestrator end to end.
type fakeStore struct {
	mu        sync.Mutex
	contacts  []*model.Contact
	companies []*model.Company
	jobs      map[string]*model.ImportJob
	nextID    int64

	// failEmailLookup makes GetContactsByEmails fail once per decrement.
	failEmailLookup int
	insertErr       error
	updatedJobs     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: map[string]*model.ImportJob{}, nextID: 1}
}

func (f *fakeStore) GetContactsByEmails(_ context.Context, emails []string) ([]model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEmailLookup > 0 {
		f.failEmailLookup--
		return nil, errors.New("lookup unavailable")
	}
	want := map[string]bool{}
	for _, e := range emails {
		want[strings.ToLower(e)] = true
	}
	var out []model.Contact
	for _, c := range f.contacts {
		if want[strings.ToLower(c.Email)] {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetContactsByPhones(_ context.Context, phones []string) ([]model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]bool{}
	for _, p := range phones {
		want[p] = true
	}
	var out []model.Contact
	for _, c := range f.contacts {
		if c.Phone != "" && want[c.Phone] {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetContactByPhone(_ context.Context, phone string) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertContact(_ context.Context, c *model.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if c.Email != "" {
		for _, have := range f.contacts {
			if strings.EqualFold(have.Email, c.Email) {
				return errors.New(`duplicate key value violates unique constraint "contacts_email_key"`)
			}
		}
	}
	c.ID = f.nextID
	f.nextID++
	cp := *c
	f.contacts = append(f.contacts, &cp)
	return nil
}

func (f *fakeStore) UpdateContact(_ context.Context, c *model.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, have := range f.contacts {
		if have.ID == c.ID {
			cp := *c
			f.contacts[i] = &cp
			return nil
		}
	}
	return errors.New("contact not found")
}

func (f *fakeStore) GetCompanyByDomain(_ context.Context, domain string) (*model.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.companies {
		if c.Domain == domain {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SearchCompanyByName(_ context.Context, name string) (*model.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.companies {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(name)) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertCompany(_ context.Context, c *model.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.Domain != "" {
		for _, have := range f.companies {
			if have.Domain == c.Domain {
				return errors.New(`duplicate key value violates unique constraint "companies_domain_key"`)
			}
		}
	}
	c.ID = f.nextID
	f.nextID++
	cp := *c
	f.companies = append(f.companies, &cp)
	return nil
}

func (f *fakeStore) UpdateCompany(_ context.Context, c *model.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, have := range f.companies {
		if have.ID == c.ID {
			cp := *c
			f.companies[i] = &cp
			return nil
		}
	}
	return errors.New("company not found")
}

func (f *fakeStore) FirstContactEmail(_ context.Context, companyID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.CompanyID != nil && *c.CompanyID == companyID && c.Email != "" {
			return c.Email, nil
		}
	}
	return "", nil
}

func (f *fakeStore) CreateJob(_ context.Context, j *model.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *j
	f.jobs[j.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateJob(_ context.Context, j *model.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *j
	f.jobs[j.ID] = &cp
	f.updatedJobs++
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, id string) (*model.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) ListJobs(_ context.Context, limit int) ([]model.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ImportJob
	for _, j := range f.jobs {
		out = append(out, *j)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Ping(context.Context) error    { return nil }
func (f *fakeStore) Close() error                  { return nil }

func (f *fakeStore) contactByEmail(email string) *model.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if strings.EqualFold(c.Email, email) {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (f *fakeStore) companyByName(name string) *model.Company {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.companies {
		if c.Name == name {
			cp := *c
			return &cp
		}
	}
	return nil
}
