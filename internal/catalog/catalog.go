// Package catalog holds the static plan catalog: which vendor plan, price and
// carrier network a plan identifier resolves to. A Catalog is immutable once
// built and is injected into the purchase workflow.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Plan is a purchasable data allotment.
type Plan struct {
	ID             string
	Network        string
	VendorPlanCode int
	// Price is the expected amount in the payment currency's whole units,
	// the same unit the payment processor reports.
	Price       int64
	CarrierCode int
}

// Catalog is a read-only plan lookup table.
type Catalog struct {
	plans map[string]Plan
}

// New validates plans and builds a catalog. Plan IDs are matched exactly.
func New(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("catalog has no plans")
	}

	byID := make(map[string]Plan, len(plans))
	for _, p := range plans {
		if err := validatePlan(p); err != nil {
			return nil, err
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("plan %q defined twice", p.ID)
		}
		byID[p.ID] = p
	}
	return &Catalog{plans: byID}, nil
}

func validatePlan(p Plan) error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("plan with empty id")
	case p.VendorPlanCode <= 0:
		return fmt.Errorf("plan %q: vendor plan code must be positive", p.ID)
	case p.Price <= 0:
		return fmt.Errorf("plan %q: price must be positive", p.ID)
	case p.CarrierCode <= 0:
		return fmt.Errorf("plan %q: carrier code must be positive", p.ID)
	}
	return nil
}

// Lookup returns the plan for id.
func (c *Catalog) Lookup(id string) (Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// Plans returns all plans ordered by ID.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of plans.
func (c *Catalog) Len() int {
	return len(c.plans)
}
