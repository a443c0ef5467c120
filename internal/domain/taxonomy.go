package domain

import "strings"

// Collection names used in the document store
const (
	CollectionProducts      = "product_details"
	CollectionCategories    = "categories"
	CollectionSubcategories = "subcategories"
)

// CategoryDoc is a document in the category collection
type CategoryDoc struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Rank     int    `json:"rank"`
	IsActive bool   `json:"isActive"`
	Image    string `json:"image,omitempty"`
}

// SubcategoryDoc is a document in the subcategory collection. CategoryID links it to its parent.
type SubcategoryDoc struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	CategoryID string `json:"categoryId"`
	Rank       int    `json:"rank"`
	IsActive   bool   `json:"isActive"`
}

// Taxonomy is the category tree the catalog is expected to conform to
type Taxonomy struct {
	Categories    []CategoryDoc
	Subcategories []SubcategoryDoc
}

// Slug turns a display name into a document id: "Power & Batteries" -> "power-and-batteries"
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	return strings.ReplaceAll(s, "&", "and")
}

// TaxonomyFromRules derives the taxonomy from a rule table's buckets in declaration order.
// A sub_category name used under more than one category gets its category slug as a prefix
// so each placement keeps its own document.
func TaxonomyFromRules(t *RuleTable) Taxonomy {
	var tax Taxonomy
	subRank := make(map[string]int)
	parents := make(map[string]map[string]bool)
	for _, b := range t.Buckets {
		if parents[b.Target.SubCategory] == nil {
			parents[b.Target.SubCategory] = make(map[string]bool)
		}
		parents[b.Target.SubCategory][b.Target.Category] = true
	}
	for _, name := range t.Categories() {
		tax.Categories = append(tax.Categories, CategoryDoc{
			ID:       Slug(name),
			Name:     name,
			Rank:     len(tax.Categories) + 1,
			IsActive: true,
		})
	}
	for _, b := range t.Buckets {
		subRank[b.Target.Category]++
		id := Slug(b.Target.SubCategory)
		if len(parents[b.Target.SubCategory]) > 1 {
			id = Slug(b.Target.Category) + "-" + id
		}
		tax.Subcategories = append(tax.Subcategories, SubcategoryDoc{
			ID:         id,
			Name:       b.Target.SubCategory,
			Category:   b.Target.Category,
			CategoryID: Slug(b.Target.Category),
			Rank:       subRank[b.Target.Category],
			IsActive:   true,
		})
	}
	return tax
}

// Contains reports whether the placement exists in the taxonomy
func (t Taxonomy) Contains(pl Placement) bool {
	for _, s := range t.Subcategories {
		if s.Category == pl.Category && s.Name == pl.SubCategory {
			return true
		}
	}
	return false
}

// HasCategory reports whether the category name exists in the taxonomy
func (t Taxonomy) HasCategory(name string) bool {
	for _, c := range t.Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CategoryIDFor returns the parent category id for a subcategory document. The document id
// is tried first; the name only resolves when a single category uses it.
func (t Taxonomy) CategoryIDFor(id, name string) (string, bool) {
	var byName []string
	for _, s := range t.Subcategories {
		if s.ID == id {
			return s.CategoryID, true
		}
		if s.Name == name {
			byName = append(byName, s.CategoryID)
		}
	}
	if len(byName) != 1 {
		return "", false
	}
	return byName[0], true
}
