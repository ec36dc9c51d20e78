package kv

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultFirestoreCollection holds one document per key.
const DefaultFirestoreCollection = "kv"

type firestoreValue struct {
	Value     []byte    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// FirestoreStore stores each key as a document whose ID is the key.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

var (
	_ Store   = (*FirestoreStore)(nil)
	_ Updater = (*FirestoreStore)(nil)
	_ Pinger  = (*FirestoreStore)(nil)
)

// NewFirestoreStore uses collection, or DefaultFirestoreCollection when empty.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = DefaultFirestoreCollection
	}
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(key)
}

// Get reads the document for key.
func (s *FirestoreStore) Get(ctx context.Context, key string) ([]byte, error) {
	snap, err := s.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var v firestoreValue
	if err := snap.DataTo(&v); err != nil {
		return nil, err
	}
	return v.Value, nil
}

// Set overwrites the document for key.
func (s *FirestoreStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.doc(key).Set(ctx, firestoreValue{Value: value, UpdatedAt: time.Now().UTC()})
	return err
}

// Update runs fn inside a Firestore transaction; Firestore retries it on contention.
func (s *FirestoreStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	ref := s.doc(key)
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		var (
			current []byte
			found   bool
		)
		snap, err := tx.Get(ref)
		switch {
		case err == nil && snap.Exists():
			var v firestoreValue
			if err := snap.DataTo(&v); err != nil {
				return err
			}
			current, found = v.Value, true
		case err != nil && status.Code(err) != codes.NotFound:
			return err
		}

		next, err := fn(current, found)
		if err != nil {
			return err
		}
		return tx.Set(ref, firestoreValue{Value: next, UpdatedAt: time.Now().UTC()})
	})
	if status.Code(err) == codes.Aborted {
		return errors.Join(ErrConflict, err)
	}
	return err
}

// Ping reads a sentinel document to confirm Firestore is reachable.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.doc("_ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}
