// Package firestore implements chat.Store on Cloud Firestore using the
// users/{uid}/ai_chat layout shared with the web client.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hay-kot/mentor/internal/core/chat"
)

const (
	DefaultCollection = "ai_chat"
	usersCollection   = "users"

	// senderAI is how the web client names the assistant.
	senderAI = "ai"
)

// messageDoc is the stored document. Timestamp is filled in by the server.
type messageDoc struct {
	Content   string    `firestore:"content"`
	Sender    string    `firestore:"sender"`
	Timestamp time.Time `firestore:"timestamp,serverTimestamp"`
	Category  string    `firestore:"category"`
}

// Store is a Firestore-backed chat.Store.
type Store struct {
	client     *firestore.Client
	collection string
}

// New connects to projectID. An empty collection uses DefaultCollection.
func New(ctx context.Context, projectID, collection string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return NewWithClient(client, collection), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *firestore.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection}
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) messagesCol(userID string) *firestore.CollectionRef {
	return s.client.Collection(usersCollection).Doc(userID).Collection(s.collection)
}

// Append implements chat.Store. The message id is the document id, so a
// repeated append is answered from the existing document.
func (s *Store) Append(ctx context.Context, userID string, m chat.Message) (chat.Message, error) {
	if err := chat.CheckAppend(userID, m); err != nil {
		return chat.Message{}, err
	}

	ref := s.messagesCol(userID).Doc(m.ID)

	wr, err := ref.Create(ctx, encode(m))
	if err == nil {
		stored := m
		stored.CreatedAt = wr.UpdateTime
		stored.Pending = false
		return stored, nil
	}

	if status.Code(err) != codes.AlreadyExists {
		return chat.Message{}, fmt.Errorf("firestore append: %w", err)
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		return chat.Message{}, fmt.Errorf("firestore read existing: %w", err)
	}

	var doc messageDoc
	if err := snap.DataTo(&doc); err != nil {
		return chat.Message{}, fmt.Errorf("firestore decode: %w", err)
	}
	return decode(snap.Ref.ID, doc)
}

// Subscribe implements chat.Store with a realtime query listener. When the
// listener fails the error is delivered as a snapshot and a new listener is
// opened after a backoff, until ctx ends.
func (s *Store) Subscribe(ctx context.Context, userID string, limit int) (<-chan chat.Snapshot, error) {
	if err := chat.ValidateUserID(userID); err != nil {
		return nil, err
	}

	q := s.messagesCol(userID).
		OrderBy("timestamp", firestore.Desc).
		Limit(chat.NormalizeLimit(limit))

	out := make(chan chat.Snapshot)
	go relisten(ctx, out, func() listener {
		return queryListener{it: q.Snapshots(ctx)}
	}, newBackOff())

	return out, nil
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// listener yields snapshots until it fails. Decode problems are carried in
// the snapshot; a returned error means the listener itself broke.
type listener interface {
	Next() (chat.Snapshot, error)
	Stop()
}

type queryListener struct {
	it *firestore.QuerySnapshotIterator
}

func (l queryListener) Next() (chat.Snapshot, error) {
	qs, err := l.it.Next()
	if err != nil {
		return chat.Snapshot{}, err
	}

	var snap chat.Snapshot
	snap.Messages, snap.Err = decodeAll(qs.Documents)
	return snap, nil
}

func (l queryListener) Stop() { l.it.Stop() }

// relisten forwards snapshots from listeners made by open and closes out
// once ctx ends.
func relisten(ctx context.Context, out chan<- chat.Snapshot, open func() listener, b backoff.BackOff) {
	defer close(out)

	for {
		l := open()
		err := forward(ctx, out, l, b)
		l.Stop()
		if err == nil || ctx.Err() != nil {
			return
		}

		if !send(ctx, out, chat.Snapshot{Err: fmt.Errorf("firestore listen: %w", err)}) {
			return
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// forward copies snapshots from l to out. It returns nil when l or ctx is
// done and the listener error otherwise.
func forward(ctx context.Context, out chan<- chat.Snapshot, l listener, b backoff.BackOff) error {
	for {
		snap, err := l.Next()
		switch {
		case ctx.Err() != nil, errors.Is(err, iterator.Done), status.Code(err) == codes.Canceled:
			return nil
		case err != nil:
			return err
		}

		b.Reset()
		if !send(ctx, out, snap) {
			return nil
		}
	}
}

func send(ctx context.Context, out chan<- chat.Snapshot, snap chat.Snapshot) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func decodeAll(docs *firestore.DocumentIterator) ([]chat.Message, error) {
	snaps, err := docs.GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore read snapshot: %w", err)
	}

	msgs := make([]chat.Message, 0, len(snaps))
	for _, ds := range snaps {
		var doc messageDoc
		if err := ds.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore decode %s: %w", ds.Ref.ID, err)
		}
		m, err := decode(ds.Ref.ID, doc)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}

	// queried newest first to apply the limit
	slices.Reverse(msgs)
	return msgs, nil
}

func encode(m chat.Message) messageDoc {
	sender := string(m.Sender)
	if m.Sender == chat.SenderAssistant {
		sender = senderAI
	}

	return messageDoc{
		Content:  m.Content,
		Sender:   sender,
		Category: string(m.Category),
	}
}

func decode(id string, doc messageDoc) (chat.Message, error) {
	sender, err := chat.ParseSender(doc.Sender)
	if err != nil {
		return chat.Message{}, fmt.Errorf("document %s: %w", id, err)
	}
	category, err := chat.ParseCategory(doc.Category)
	if err != nil {
		return chat.Message{}, fmt.Errorf("document %s: %w", id, err)
	}

	m := chat.Message{
		ID:        id,
		Content:   doc.Content,
		Sender:    sender,
		Category:  category,
		CreatedAt: doc.Timestamp,
	}
	if err := m.Validate(); err != nil {
		return chat.Message{}, fmt.Errorf("document %s: %w", id, err)
	}
	return m, nil
}
