package remote

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/roach88/shiftguard/internal/model"
)

// firestoreRecord is the stored shape. The document is kept as a JSON
// string so that field names and defaults match the other backends.
type firestoreRecord struct {
	Payload   string `firestore:"payload"`
	UpdatedAt int64  `firestore:"updatedAt"`
}

// FirestoreStore keeps the document at <collection>/<key>.
type FirestoreStore struct {
	client *firestore.Client
	ref    *firestore.DocumentRef
}

// NewFirestoreStore connects to Firestore. credentialsFile may be empty to
// use application default credentials or the emulator
// (FIRESTORE_EMULATOR_HOST).
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile, collection, key string) (*FirestoreStore, error) {
	if collection == "" {
		collection = DefaultTable
	}
	if key == "" {
		key = DefaultKey
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreStore{
		client: client,
		ref:    client.Collection(collection).Doc(key),
	}, nil
}

// Fetch reads the document.
func (s *FirestoreStore) Fetch(ctx context.Context) (model.Document, bool, error) {
	snap, err := s.ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return model.Document{}, false, nil
	}
	if err != nil {
		return model.Document{}, false, fmt.Errorf("firestore fetch: %w", err)
	}

	var rec firestoreRecord
	if err := snap.DataTo(&rec); err != nil {
		return model.Document{}, false, fmt.Errorf("firestore fetch: %w", err)
	}
	if rec.Payload == "" {
		return model.Document{}, false, nil
	}
	doc, err := model.DecodeDocument([]byte(rec.Payload))
	if err != nil {
		return model.Document{}, false, err
	}
	return doc, true, nil
}

// Update rewrites the payload field. Firestore rejects updates to missing
// documents with NotFound, which is reported as no match.
func (s *FirestoreStore) Update(ctx context.Context, doc model.Document) (bool, error) {
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return false, err
	}
	_, err = s.ref.Update(ctx, []firestore.Update{
		{Path: "payload", Value: string(data)},
		{Path: "updatedAt", Value: time.Now().UnixMilli()},
	})
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("firestore update: %w", err)
	}
	return true, nil
}

// Create writes the whole record.
func (s *FirestoreStore) Create(ctx context.Context, doc model.Document) error {
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return err
	}
	rec := firestoreRecord{Payload: string(data), UpdatedAt: time.Now().UnixMilli()}
	if _, err := s.ref.Set(ctx, rec); err != nil {
		return fmt.Errorf("firestore create: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
