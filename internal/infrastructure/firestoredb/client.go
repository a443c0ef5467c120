package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/logger"
)

// Client is a DocumentStore backed by Cloud Firestore
type Client struct {
	fs      *firestore.Client
	project string
}

// NewClient connects to the project with a service account file. Any failure here is a setup
// failure: nothing has been read or written yet.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", domain.ErrStoreSetup)
	}
	if _, err := os.Stat(credentialsFile); err != nil {
		return nil, fmt.Errorf("%w: credentials file: %v", domain.ErrStoreSetup, err)
	}

	fs, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreSetup, err)
	}

	log(ctx).Info().Str("project", projectID).Msg("connected")
	return &Client{fs: fs, project: projectID}, nil
}

func log(ctx context.Context) *zerolog.Logger {
	return logger.Component(ctx, "firestore")
}

// Get retrieves one document
func (c *Client) Get(ctx context.Context, collection, id string) (*domain.Document, error) {
	snap, err := c.fs.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapError(err, collection, id)
	}
	return &domain.Document{ID: snap.Ref.ID, Data: FromFirestore(snap.Data())}, nil
}

// List streams every document of a collection
func (c *Client) List(ctx context.Context, collection string) ([]domain.Document, error) {
	iter := c.fs.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var docs []domain.Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, mapError(err, collection, ""))
		}
		docs = append(docs, domain.Document{ID: snap.Ref.ID, Data: FromFirestore(snap.Data())})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	log(ctx).Debug().Str("collection", collection).Int("documents", len(docs)).Msg("listed")
	return docs, nil
}

// Set writes a document, merging nested fields when merge is set
func (c *Client) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	ref := c.fs.Collection(collection).Doc(id)
	var err error
	if merge {
		_, err = ref.Set(ctx, ToFirestore(data), firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, ToFirestore(data))
	}
	return mapError(err, collection, id)
}

// Update overwrites top-level fields of an existing document
func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := c.fs.Collection(collection).Doc(id).Update(ctx, Updates(fields))
	return mapError(err, collection, id)
}

// Delete removes a document
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	_, err := c.fs.Collection(collection).Doc(id).Delete(ctx)
	return mapError(err, collection, id)
}

// CommitBatch commits writes as one atomic write batch
func (c *Client) CommitBatch(ctx context.Context, collection string, writes []domain.DocumentWrite) error {
	if len(writes) == 0 {
		return nil
	}

	coll := c.fs.Collection(collection)
	batch := c.fs.Batch()
	for _, w := range writes {
		ref := coll.Doc(w.ID)
		switch w.Op {
		case domain.OpSet:
			if w.Merge {
				batch.Set(ref, ToFirestore(w.Data), firestore.MergeAll)
			} else {
				batch.Set(ref, ToFirestore(w.Data))
			}
		case domain.OpUpdate:
			batch.Update(ref, Updates(w.Data))
		case domain.OpDelete:
			batch.Delete(ref)
		default:
			return fmt.Errorf("unknown write op %d", w.Op)
		}
	}

	if _, err := batch.Commit(ctx); err != nil {
		return mapError(err, collection, "")
	}
	return nil
}

// Close releases the client connection
func (c *Client) Close() error {
	return c.fs.Close()
}

// mapError converts gRPC status codes into domain errors
func mapError(err error, collection, id string) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %s/%s", domain.ErrDocumentNotFound, collection, id)
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %v", domain.ErrStoreSetup, err)
	}
	return err
}
