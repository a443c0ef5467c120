package usecase

import (
	"context"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/logger"
)

// DefaultMatchThreshold is the similarity a match has to exceed to be applied
const DefaultMatchThreshold = 0.6

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	Threshold          float64
	ReviewMargin       float64 // flag picks whose runner-up is within this distance; 0 disables
	EnableDebugLogging bool
}

// MatchingService fuzzy-matches pricing item names to product titles
type MatchingService struct {
	threshold          float64
	reviewMargin       float64
	enableDebugLogging bool
}

// Candidate is a product title prepared for matching
type Candidate struct {
	Index int
	ID    string
	Title string

	normalized string
	chars      []string
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	threshold := config.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultMatchThreshold
	}

	margin := config.ReviewMargin
	if margin < 0 {
		margin = 0
	}

	return &MatchingService{
		threshold:          threshold,
		reviewMargin:       margin,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Threshold returns the configured acceptance threshold
func (s *MatchingService) Threshold() float64 { return s.threshold }

// NewCandidates prepares every product for matching, in catalog order.
// Products without a title are kept so indexes line up but never match.
func NewCandidates(products []domain.Product) []Candidate {
	out := make([]Candidate, len(products))
	for i := range products {
		normalized := NormalizeName(products[i].Title)
		out[i] = Candidate{
			Index:      i,
			ID:         products[i].Key(),
			Title:      products[i].Title,
			normalized: normalized,
			chars:      splitChars(normalized),
		}
	}
	return out
}

// Similarity returns the sequence similarity ratio of an item name against a title after
// normalization, in [0,1]
func Similarity(item, title string) float64 {
	return difflib.NewMatcher(splitChars(NormalizeName(item)), splitChars(NormalizeName(title))).Ratio()
}

// FindBestMatch finds the candidate that best matches the item name.
// A candidate is eligible when its ratio exceeds the threshold or one normalized name contains
// the other; the eligible candidate with the highest ratio wins and ties go to the earlier one.
// When nothing is eligible the closest candidate is returned together with ErrLowConfidence.
func (s *MatchingService) FindBestMatch(
	ctx context.Context,
	itemName string,
	candidates []Candidate,
) (*domain.MatchResult, error) {
	item := NormalizeName(itemName)
	if item == "" {
		return nil, domain.ErrMalformedRow
	}

	if len(candidates) == 0 {
		return nil, domain.ErrNoMatch
	}

	log := logger.Component(ctx, "matcher")
	if s.enableDebugLogging {
		log.Debug().Str("item", item).Int("candidates", len(candidates)).Msg("[MATCH] searching")
	}

	// ratios are taken with the item as the first sequence and the title as the second;
	// the ratio is not symmetric
	m := difflib.NewMatcher(splitChars(item), nil)

	var (
		best, runnerUp *domain.MatchResult
		closest        *domain.MatchResult
	)

	for i := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		c := &candidates[i]
		if c.normalized == "" {
			continue
		}

		contains := strings.Contains(item, c.normalized) || strings.Contains(c.normalized, item)
		m.SetSeq2(c.chars)
		if !contains && closest != nil {
			// cheap upper bound: skip titles that can neither qualify nor improve the closest miss
			if upper := m.RealQuickRatio(); upper <= s.threshold && upper <= closest.Score {
				continue
			}
		}

		score := m.Ratio()
		eligible := contains || score > s.threshold

		if s.enableDebugLogging {
			s.logCandidate(log, c, score, contains, eligible)
		}

		result := &domain.MatchResult{
			ProductIndex: c.Index,
			ProductID:    c.ID,
			Title:        c.Title,
			Score:        score,
			Containment:  contains,
		}

		if closest == nil || score > closest.Score {
			closest = result
		}
		if !eligible {
			continue
		}

		switch {
		case best == nil:
			best = result
		case score > best.Score:
			runnerUp, best = best, result
		case runnerUp == nil || score > runnerUp.Score:
			runnerUp = result
		}
	}

	if best == nil {
		if closest == nil {
			return nil, domain.ErrNoMatch
		}
		if s.enableDebugLogging {
			log.Debug().Str("item", item).Str("closest", closest.Title).Float64("score", closest.Score).Msg("[MATCH] no match above threshold")
		}
		return closest, domain.ErrLowConfidence
	}

	if runnerUp != nil {
		best.RunnerUpID = runnerUp.ProductID
		best.RunnerUp = runnerUp.Score
		best.NeedsReview = s.reviewMargin > 0 && best.Score-runnerUp.Score <= s.reviewMargin
	}

	if s.enableDebugLogging {
		log.Debug().Str("item", item).Str("match", best.Title).Float64("score", best.Score).Bool("needs_review", best.NeedsReview).Msg("[MATCH] best match")
	}

	return best, nil
}

func (s *MatchingService) logCandidate(log *zerolog.Logger, c *Candidate, score float64, contains, eligible bool) {
	log.Debug().
		Str("title", c.Title).
		Float64("score", score).
		Bool("containment", contains).
		Bool("eligible", eligible).
		Msg("[MATCH] candidate")
}

// splitChars splits a string into its characters
func splitChars(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "")
}
