package domain

import "errors"

var (
	// ErrInvalidRuleTable is returned when a classification rule table is malformed
	ErrInvalidRuleTable = errors.New("invalid rule table")

	// ErrMalformedRow is returned when a pricing row is missing a required field or has an unparseable value
	ErrMalformedRow = errors.New("malformed pricing row")

	// ErrZeroPrice is returned when a pricing row carries a zero MRP or selling price
	ErrZeroPrice = errors.New("pricing row has no price data")

	// ErrNoMatch is returned when there are no candidate products to match against
	ErrNoMatch = errors.New("no candidate products")

	// ErrLowConfidence is returned when the best match score is not above the threshold
	ErrLowConfidence = errors.New("match score below threshold")

	// ErrNoSKU is returned when a matched product has no SKU entry to update
	ErrNoSKU = errors.New("product has no SKU entries")

	// ErrDocumentNotFound is returned when a document does not exist in the store
	ErrDocumentNotFound = errors.New("document not found")

	// ErrBatchCommit is returned when a write batch fails to commit
	ErrBatchCommit = errors.New("batch commit failed")

	// ErrMissingColumn is returned when a pricing sheet lacks a required column
	ErrMissingColumn = errors.New("required pricing column missing")

	// ErrShardMissing is returned when a catalog shard file cannot be found
	ErrShardMissing = errors.New("catalog shard missing")

	// ErrStoreSetup is returned when the remote store cannot be reached or credentials are invalid
	ErrStoreSetup = errors.New("document store setup failed")
)
