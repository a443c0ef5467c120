package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/catalogsync/backend/internal/domain"
)

// tableFile mirrors the on-disk layout. Buckets stay a raw node so their order survives decoding.
type tableFile struct {
	Version     int               `yaml:"version"`
	Description string            `yaml:"description"`
	Unmatched   string            `yaml:"unmatched"`
	Default     *domain.Placement `yaml:"default"`
	Buckets     yaml.Node         `yaml:"buckets"`
	Overrides   []overrideEntry   `yaml:"overrides"`
}

type overrideEntry struct {
	Title       string `yaml:"title"`
	Category    string `yaml:"category"`
	SubCategory string `yaml:"sub_category"`
}

// LoadFile reads and validates one rule table
func LoadFile(path string) (*domain.RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule table: %w", err)
	}

	table, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	table.Source = path
	return table, nil
}

// Parse decodes a rule table document and validates it
func Parse(data []byte) (*domain.RuleTable, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRuleTable, err)
	}

	buckets, err := decodeBuckets(&f.Buckets)
	if err != nil {
		return nil, err
	}

	policy := domain.UnmatchedPolicy(f.Unmatched)
	if policy == "" {
		policy = domain.UnmatchedKeep
	}

	table := &domain.RuleTable{
		Version:     f.Version,
		Description: f.Description,
		Policy:      policy,
		Default:     f.Default,
		Buckets:     buckets,
	}
	for _, o := range f.Overrides {
		table.Overrides = append(table.Overrides, domain.TitleOverride{
			Title:  o.Title,
			Target: domain.Placement{Category: o.Category, SubCategory: o.SubCategory},
		})
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// decodeBuckets walks category -> sub_category -> [labels] in document order
func decodeBuckets(node *yaml.Node) ([]domain.Bucket, error) {
	if node.Kind == 0 {
		return nil, fmt.Errorf("%w: missing buckets", domain.ErrInvalidRuleTable)
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: buckets must be a mapping of category to sub_categories", domain.ErrInvalidRuleTable, node.Line)
	}

	var buckets []domain.Bucket
	seenCategories := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		catKey, subs := node.Content[i], node.Content[i+1]
		category := catKey.Value
		if seenCategories[category] {
			return nil, fmt.Errorf("%w: line %d: category %q declared twice", domain.ErrInvalidRuleTable, catKey.Line, category)
		}
		seenCategories[category] = true

		if subs.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: line %d: category %q must map sub_categories to label lists", domain.ErrInvalidRuleTable, subs.Line, category)
		}

		seenSubs := make(map[string]bool)
		for j := 0; j+1 < len(subs.Content); j += 2 {
			subKey, labels := subs.Content[j], subs.Content[j+1]
			if seenSubs[subKey.Value] {
				return nil, fmt.Errorf("%w: line %d: %s > %s declared twice", domain.ErrInvalidRuleTable, subKey.Line, category, subKey.Value)
			}
			seenSubs[subKey.Value] = true

			var accepts []string
			if err := labels.Decode(&accepts); err != nil {
				return nil, fmt.Errorf("%w: line %d: %s > %s: %v", domain.ErrInvalidRuleTable, labels.Line, category, subKey.Value, err)
			}
			buckets = append(buckets, domain.Bucket{
				Target:  domain.Placement{Category: category, SubCategory: subKey.Value},
				Accepts: accepts,
			})
		}
	}
	return buckets, nil
}

// LoadAll reads every table in dir, ordered by version
func LoadAll(dir string) ([]*domain.RuleTable, error) {
	paths, err := tablePaths(dir)
	if err != nil {
		return nil, err
	}

	tables := make([]*domain.RuleTable, 0, len(paths))
	versions := make(map[int]string, len(paths))
	for _, p := range paths {
		t, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := versions[t.Version]; dup {
			return nil, fmt.Errorf("%w: version %d declared by both %s and %s", domain.ErrInvalidRuleTable, t.Version, prev, p)
		}
		versions[t.Version] = p
		tables = append(tables, t)
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Version < tables[j].Version })
	return tables, nil
}

// LoadLatest returns the most recent table in dir, which is the authoritative one
func LoadLatest(dir string) (*domain.RuleTable, error) {
	tables, err := LoadAll(dir)
	if err != nil {
		return nil, err
	}
	return tables[len(tables)-1], nil
}

// LoadVersion returns the table with the given version; zero means latest
func LoadVersion(dir string, version int) (*domain.RuleTable, error) {
	if version == 0 {
		return LoadLatest(dir)
	}
	tables, err := LoadAll(dir)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t.Version == version {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: version %d not found in %s", domain.ErrInvalidRuleTable, version, dir)
}

func tablePaths(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, m...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no rule tables in %s", domain.ErrInvalidRuleTable, dir)
	}
	sort.Strings(paths)
	return paths, nil
}
