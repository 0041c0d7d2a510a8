package customer

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	refdatax "github.com/tanpawarit/chative-retail/agent/service/refdata"
)

type File struct {
	Customers []domainx.Customer `json:"customers" yaml:"customers"`
}

// Directory is a read-only customer lookup.
type Directory struct {
	byID map[string]domainx.Customer
}

func New(f File) *Directory {
	d := &Directory{byID: make(map[string]domainx.Customer, len(f.Customers))}
	for _, c := range f.Customers {
		if c.ID == "" {
			continue
		}
		d.byID[c.ID] = c
	}
	return d
}

func Load(dir string) *Directory {
	return New(refdatax.Load[File](dir, "customers"))
}

// Get returns a copy; callers may not mutate reference data.
func (d *Directory) Get(id string) (*domainx.Customer, error) {
	c, ok := d.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: customer_id=%s", contractx.ErrCustomerNotFound, id)
	}
	return &c, nil
}

func (d *Directory) Len() int {
	return len(d.byID)
}
