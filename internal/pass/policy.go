package pass

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Policy bounds one pass type: at most Capacity passes may be in flight
// before new requests queue, and an active pass expires once it has been
// out for longer than Budget.
type Policy struct {
	Capacity int
	Budget   time.Duration
}

// DefaultBudget applies to active passes whose type is no longer in the
// policy table.
const DefaultBudget = 60 * time.Minute

// Policies maps exact, normalised pass types to their Policy.
type Policies struct {
	byType   map[string]Policy
	fallback time.Duration
}

// DefaultPolicies is the built-in policy table.
func DefaultPolicies() Policies {
	p, _ := NewPolicies(map[string]Policy{
		"bathroom":       {Capacity: 1, Budget: 5 * time.Minute},
		"testing_center": {Capacity: 8, Budget: 60 * time.Minute},
		"nurse":          {Capacity: 1, Budget: 60 * time.Minute},
		"office":         {Capacity: 1, Budget: 60 * time.Minute},
		"counselor":      {Capacity: 1, Budget: 60 * time.Minute},
		"library":        {Capacity: 1, Budget: 60 * time.Minute},
	}, DefaultBudget)
	return p
}

// NewPolicies validates table and returns it as Policies.  Type names are
// normalised with NormalizeType.
func NewPolicies(table map[string]Policy, fallback time.Duration) (Policies, error) {
	if fallback <= 0 {
		fallback = DefaultBudget
	}
	out := Policies{byType: make(map[string]Policy, len(table)), fallback: fallback}
	for name, p := range table {
		t := NormalizeType(name)
		if t == "" {
			return Policies{}, fmt.Errorf("policy: empty pass type")
		}
		if p.Capacity < 1 {
			return Policies{}, fmt.Errorf("policy %s: capacity must be at least 1, got %d", t, p.Capacity)
		}
		if p.Budget <= 0 {
			return Policies{}, fmt.Errorf("policy %s: budget must be positive, got %s", t, p.Budget)
		}
		out.byType[t] = p
	}
	return out, nil
}

// ParsePolicies reads a table written as
//
//	bathroom=1/5m,testing_center=8/60m
//
// where each entry is type=capacity/budget.  Entries override base; types
// not mentioned keep their base policy.  An empty string returns base.
func ParsePolicies(raw string, base Policies) (Policies, error) {
	table := make(map[string]Policy, len(base.byType))
	for t, p := range base.byType {
		table[t] = p
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, rest, ok := strings.Cut(entry, "=")
		if !ok {
			return Policies{}, fmt.Errorf("policy %q: expected type=capacity/budget", entry)
		}
		capStr, budgetStr, ok := strings.Cut(rest, "/")
		if !ok {
			return Policies{}, fmt.Errorf("policy %q: expected type=capacity/budget", entry)
		}
		capacity, err := strconv.Atoi(strings.TrimSpace(capStr))
		if err != nil {
			return Policies{}, fmt.Errorf("policy %q: capacity: %w", entry, err)
		}
		budget, err := time.ParseDuration(strings.TrimSpace(budgetStr))
		if err != nil {
			return Policies{}, fmt.Errorf("policy %q: budget: %w", entry, err)
		}
		table[NormalizeType(name)] = Policy{Capacity: capacity, Budget: budget}
	}
	return NewPolicies(table, base.fallback)
}

// NormalizeType lower-cases and trims a pass type.  Matching is exact after
// normalisation; "bathroom_2" is not "bathroom".
func NormalizeType(t string) string { return strings.ToLower(strings.TrimSpace(t)) }

// Lookup returns the policy for an exact type.
func (p Policies) Lookup(passType string) (Policy, bool) {
	pol, ok := p.byType[NormalizeType(passType)]
	return pol, ok
}

// Budget returns the expiration budget for passType, falling back to the
// default budget for types missing from the table.
func (p Policies) Budget(passType string) time.Duration {
	if pol, ok := p.Lookup(passType); ok {
		return pol.Budget
	}
	if p.fallback <= 0 {
		return DefaultBudget
	}
	return p.fallback
}

// Types returns the configured pass types in sorted order.
func (p Policies) Types() []string {
	out := make([]string, 0, len(p.byType))
	for t := range p.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
