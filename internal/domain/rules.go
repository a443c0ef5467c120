package domain

import (
	"fmt"
)

// UnmatchedPolicy decides what happens to a record whose sub_category matches no bucket
type UnmatchedPolicy string

const (
	// UnmatchedKeep leaves the record unchanged and flags it
	UnmatchedKeep UnmatchedPolicy = "keep"
	// UnmatchedDefault assigns the table's default placement
	UnmatchedDefault UnmatchedPolicy = "default"
)

// Bucket is a target placement with the legacy sub_category labels that resolve to it
type Bucket struct {
	Target  Placement
	Accepts []string
}

// TitleOverride pins a record with an exact title to a target placement
type TitleOverride struct {
	Title  string
	Target Placement
}

// RuleTable is one version of the classification rules. Buckets are kept in declaration order.
type RuleTable struct {
	Version     int
	Description string
	Source      string
	Policy      UnmatchedPolicy
	Default     *Placement
	Buckets     []Bucket
	Overrides   []TitleOverride
}

// Validate checks the table for authoring errors. It must pass before any record is reclassified.
func (t *RuleTable) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: table is nil", ErrInvalidRuleTable)
	}
	if len(t.Buckets) == 0 {
		return fmt.Errorf("%w: version %d declares no buckets", ErrInvalidRuleTable, t.Version)
	}

	switch t.Policy {
	case UnmatchedKeep:
	case UnmatchedDefault:
		if t.Default == nil || t.Default.Category == "" || t.Default.SubCategory == "" {
			return fmt.Errorf("%w: version %d uses the default policy without a default placement", ErrInvalidRuleTable, t.Version)
		}
	default:
		return fmt.Errorf("%w: unknown unmatched policy %q", ErrInvalidRuleTable, t.Policy)
	}

	targets := make(map[Placement]int, len(t.Buckets))
	labels := make(map[string]int)
	for i, b := range t.Buckets {
		if b.Target.Category == "" || b.Target.SubCategory == "" {
			return fmt.Errorf("%w: bucket %d has an empty category or sub_category", ErrInvalidRuleTable, i+1)
		}
		if _, dup := targets[b.Target]; dup {
			return fmt.Errorf("%w: bucket %q declared twice", ErrInvalidRuleTable, b.Target)
		}
		targets[b.Target] = i

		for _, label := range b.Accepts {
			if prev, dup := labels[label]; dup && prev != i {
				return fmt.Errorf("%w: legacy label %q assigned to both %q and %q",
					ErrInvalidRuleTable, label, t.Buckets[prev].Target, b.Target)
			}
			labels[label] = i
		}
	}

	// A target name accepted by another bucket would move records again on a second pass.
	for i, b := range t.Buckets {
		if j, ok := labels[b.Target.SubCategory]; ok && j != i {
			return fmt.Errorf("%w: target %q is accepted as a legacy label by %q",
				ErrInvalidRuleTable, b.Target, t.Buckets[j].Target)
		}
	}

	if t.Policy == UnmatchedDefault {
		if j, ok := labels[t.Default.SubCategory]; ok && t.Buckets[j].Target != *t.Default {
			return fmt.Errorf("%w: default %q is accepted as a legacy label by %q",
				ErrInvalidRuleTable, *t.Default, t.Buckets[j].Target)
		}
	}

	titles := make(map[string]bool, len(t.Overrides))
	for _, o := range t.Overrides {
		if o.Title == "" {
			return fmt.Errorf("%w: title override with empty title", ErrInvalidRuleTable)
		}
		if titles[o.Title] {
			return fmt.Errorf("%w: title %q overridden twice", ErrInvalidRuleTable, o.Title)
		}
		titles[o.Title] = true
		if _, ok := targets[o.Target]; !ok {
			return fmt.Errorf("%w: override for %q targets undeclared bucket %q", ErrInvalidRuleTable, o.Title, o.Target)
		}
	}

	return nil
}

// HasTarget reports whether pl is one of the table's declared buckets
func (t *RuleTable) HasTarget(pl Placement) bool {
	for _, b := range t.Buckets {
		if b.Target == pl {
			return true
		}
	}
	return false
}

// Categories returns the distinct target categories in declaration order
func (t *RuleTable) Categories() []string {
	var out []string
	seen := make(map[string]bool)
	for _, b := range t.Buckets {
		if !seen[b.Target.Category] {
			seen[b.Target.Category] = true
			out = append(out, b.Target.Category)
		}
	}
	return out
}
