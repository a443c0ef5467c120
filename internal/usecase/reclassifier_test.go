package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain"
)

func stationeryTable() *domain.RuleTable {
	return &domain.RuleTable{
		Version: 4,
		Policy:  domain.UnmatchedKeep,
		Buckets: []domain.Bucket{
			{Target: domain.Placement{Category: "Stationery", SubCategory: "Geometry & Scales"}, Accepts: []string{"Geometry Sets"}},
			{Target: domain.Placement{Category: "Stationery", SubCategory: "Adhesives & Tapes"}, Accepts: []string{"Adhesives"}},
			{Target: domain.Placement{Category: "Stationery", SubCategory: "Writing Instruments"}, Accepts: []string{"Writing Instruments"}},
			{Target: domain.Placement{Category: "Housekeeping", SubCategory: "Cleaning"}, Accepts: []string{"Cleaning Essentials"}},
			{Target: domain.Placement{Category: "Stationery", SubCategory: "Paper & Office"}, Accepts: []string{"Notebooks"}},
		},
	}
}

func defaultingTable() *domain.RuleTable {
	t := stationeryTable()
	t.Policy = domain.UnmatchedDefault
	t.Default = &domain.Placement{Category: "Stationery", SubCategory: "Paper & Office"}
	return t
}

func TestReclassify(t *testing.T) {
	t.Run("maps a legacy sub_category to its bucket", func(t *testing.T) {
		in := []domain.Product{{ID: "p1", Title: "Metal Scale 12 inch", Category: "Stationery", SubCategory: "Geometry Sets"}}

		out, report, err := Reclassify(in, stationeryTable())
		require.NoError(t, err)

		require.Len(t, out, 1)
		assert.Equal(t, "p1", out[0].ID)
		assert.Equal(t, "Stationery", out[0].Category)
		assert.Equal(t, "Geometry & Scales", out[0].SubCategory)
		assert.Equal(t, 1, report.Outcomes[OutcomeMapped])
		assert.Equal(t, 1, report.Changed)
	})

	t.Run("does not modify its input", func(t *testing.T) {
		in := []domain.Product{{ID: "p1", Category: "Office Supplies", SubCategory: "Adhesives"}}

		_, _, err := Reclassify(in, stationeryTable())
		require.NoError(t, err)
		assert.Equal(t, "Adhesives", in[0].SubCategory)
	})

	t.Run("label repeated inside one bucket", func(t *testing.T) {
		table := stationeryTable()
		table.Buckets[1].Accepts = append(table.Buckets[1].Accepts, "Adhesives")

		out, _, err := Reclassify([]domain.Product{{ID: "p1", SubCategory: "Adhesives"}}, table)
		require.NoError(t, err)
		assert.Equal(t, "Adhesives & Tapes", out[0].SubCategory)
	})

	t.Run("keep policy leaves unmatched records and flags them", func(t *testing.T) {
		in := []domain.Product{{ID: "p9", Title: "Mystery", Category: "Misc", SubCategory: "Mystery Aisle"}}

		out, report, err := Reclassify(in, stationeryTable())
		require.NoError(t, err)

		assert.Equal(t, domain.Placement{Category: "Misc", SubCategory: "Mystery Aisle"}, out[0].Placement())
		assert.Equal(t, 1, report.Outcomes[OutcomeUnmatched])
		require.Len(t, report.Unmatched, 1)
		assert.Equal(t, "p9", report.Unmatched[0].ID)
		assert.Equal(t, 0, report.Changed)
	})

	t.Run("default policy assigns the default placement", func(t *testing.T) {
		in := []domain.Product{{ID: "p9", Category: "Books", SubCategory: "Mystery Aisle"}}

		out, report, err := Reclassify(in, defaultingTable())
		require.NoError(t, err)

		assert.Equal(t, domain.Placement{Category: "Stationery", SubCategory: "Paper & Office"}, out[0].Placement())
		assert.Equal(t, 1, report.Outcomes[OutcomeDefaulted])
		assert.Empty(t, report.Unmatched)
	})

	t.Run("records already on a bucket stay there", func(t *testing.T) {
		in := []domain.Product{{ID: "p1", Category: "Stationery", SubCategory: "Geometry & Scales"}}

		out, report, err := Reclassify(in, defaultingTable())
		require.NoError(t, err)

		assert.Equal(t, "Geometry & Scales", out[0].SubCategory)
		assert.Equal(t, 1, report.Outcomes[OutcomePlaced])
	})

	t.Run("title overrides take precedence", func(t *testing.T) {
		table := stationeryTable()
		table.Overrides = []domain.TitleOverride{{
			Title:  "Glue Stick 15g",
			Target: domain.Placement{Category: "Stationery", SubCategory: "Adhesives & Tapes"},
		}}
		in := []domain.Product{{ID: "p1", Title: "Glue Stick 15g", SubCategory: "Writing Instruments"}}

		out, report, err := Reclassify(in, table)
		require.NoError(t, err)

		assert.Equal(t, "Adhesives & Tapes", out[0].SubCategory)
		assert.Equal(t, 1, report.Outcomes[OutcomeOverride])
	})

	t.Run("preserves other attributes", func(t *testing.T) {
		in := []domain.Product{{
			ID: "p1", SubCategory: "Adhesives",
			Extra: map[string]any{"brand": "Fevicol"},
			SKUs:  []domain.SKU{newSKU(35, 45)},
		}}

		out, _, err := Reclassify(in, stationeryTable())
		require.NoError(t, err)

		assert.Equal(t, "Fevicol", out[0].Extra["brand"])
		assert.Equal(t, 35.0, out[0].SKUs[0].Price)
	})

	t.Run("rejects an invalid table before touching records", func(t *testing.T) {
		table := stationeryTable()
		table.Buckets[3].Accepts = append(table.Buckets[3].Accepts, "Geometry Sets")

		out, report, err := Reclassify([]domain.Product{{ID: "p1"}}, table)
		assert.True(t, errors.Is(err, domain.ErrInvalidRuleTable))
		assert.Nil(t, out)
		assert.Nil(t, report)
	})

	t.Run("summary is sorted by category then sub_category", func(t *testing.T) {
		in := []domain.Product{
			{ID: "1", SubCategory: "Cleaning Essentials"},
			{ID: "2", SubCategory: "Geometry Sets"},
			{ID: "3", SubCategory: "Adhesives"},
			{ID: "4", SubCategory: "Geometry Sets"},
		}

		_, report, err := Reclassify(in, stationeryTable())
		require.NoError(t, err)

		assert.Equal(t, []PlacementCount{
			{Category: "Housekeeping", SubCategory: "Cleaning", Count: 1},
			{Category: "Stationery", SubCategory: "Adhesives & Tapes", Count: 1},
			{Category: "Stationery", SubCategory: "Geometry & Scales", Count: 2},
		}, report.Placements)
	})
}

func TestReclassifyProperties(t *testing.T) {
	tables := map[string]*domain.RuleTable{
		"keep":    stationeryTable(),
		"default": defaultingTable(),
	}

	for name, table := range tables {
		t.Run(name, func(t *testing.T) {
			for seed := int64(1); seed <= 5; seed++ {
				in := fakeCatalog(seed, 200)

				once, report, err := Reclassify(in, table)
				require.NoError(t, err)

				// completeness
				require.Len(t, once, len(in))
				assert.Equal(t, len(in), report.Total)

				// every record got exactly one outcome
				sum := 0
				for _, n := range report.Outcomes {
					sum += n
				}
				assert.Equal(t, len(in), sum)

				// idempotence
				twice, second, err := Reclassify(once, table)
				require.NoError(t, err)
				assert.Equal(t, once, twice)
				assert.Equal(t, 0, second.Changed)

				// bucket coverage: unknown labels follow the policy
				for i := range in {
					if in[i].SubCategory != "Mystery Aisle" && in[i].SubCategory != "Seasonal" && in[i].SubCategory != "Gift Sets" {
						continue
					}
					if table.Policy == domain.UnmatchedDefault {
						assert.Equal(t, *table.Default, once[i].Placement())
					} else {
						assert.Equal(t, in[i].Placement(), once[i].Placement())
					}
				}
			}
		})
	}
}

func TestReclassifyService_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("writes the reclassified catalog", func(t *testing.T) {
		store := NewMockCatalogStore(
			domain.Product{ID: "p1", Title: "Metal Scale 12 inch", Category: "Stationery", SubCategory: "Geometry Sets"},
			domain.Product{ID: "p2", Title: "Duster", Category: "Housekeeping", SubCategory: "Cleaning Essentials"},
		)
		svc := NewReclassifyService(store, stationeryTable())

		report, err := svc.Run(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 2, report.Changed)
		assert.Equal(t, 1, store.replaceCalls)
		require.Len(t, store.replaced, 2)
		assert.Equal(t, "Geometry & Scales", store.replaced[0].SubCategory)
		assert.Equal(t, "Cleaning", store.replaced[1].SubCategory)
	})

	t.Run("dry run does not write", func(t *testing.T) {
		store := NewMockCatalogStore(domain.Product{ID: "p1", SubCategory: "Geometry Sets"})
		svc := NewReclassifyService(store, stationeryTable())

		report, err := svc.Run(ctx, true)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Changed)
		assert.Equal(t, 0, store.replaceCalls)
	})

	t.Run("returns load errors", func(t *testing.T) {
		store := NewMockCatalogStore()
		store.loadError = domain.ErrShardMissing
		svc := NewReclassifyService(store, stationeryTable())

		_, err := svc.Run(ctx, false)
		assert.True(t, errors.Is(err, domain.ErrShardMissing))
	})

	t.Run("invalid table fails before loading", func(t *testing.T) {
		store := NewMockCatalogStore()
		store.loadError = errors.New("should not be called")
		table := stationeryTable()
		table.Buckets = nil

		_, err := NewReclassifyService(store, table).Run(ctx, false)
		assert.True(t, errors.Is(err, domain.ErrInvalidRuleTable))
	})

	t.Run("returns write errors with the report", func(t *testing.T) {
		store := NewMockCatalogStore(domain.Product{ID: "p1", SubCategory: "Geometry Sets"})
		store.replaceError = errors.New("disk full")

		report, err := NewReclassifyService(store, stationeryTable()).Run(ctx, false)
		assert.Error(t, err)
		assert.NotNil(t, report)
	})
}
