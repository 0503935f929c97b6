package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/kafka"
)

type memStore struct {
	mu   sync.Mutex
	docs map[string]document.Document
	err  error
}

func (m *memStore) Upsert(_ context.Context, doc document.Document) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, exists := m.docs[doc.ID]
	m.docs[doc.ID] = doc
	return !exists, nil
}

func (m *memStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	delete(m.docs, id)
	return ok, nil
}

type captureWriter struct {
	msgs []segkafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...segkafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func newPublisher() (*Publisher, *memStore, *captureWriter) {
	store := &memStore{docs: map[string]document.Document{}}
	w := &captureWriter{}
	p := New(store, kafka.NewProducerWithWriter(w, "document-changes"))
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	return p, store, w
}

func decodeEvent(t *testing.T, msg segkafka.Message) document.ChangeEvent {
	t.Helper()
	ev, err := kafka.DecodeJSON[document.ChangeEvent](msg.Value)
	require.NoError(t, err)
	require.NoError(t, ev.Validate())
	return ev
}

func TestPutPublishesCreateThenUpdate(t *testing.T) {
	p, store, w := newPublisher()
	doc := document.Document{ID: "budget", Title: "Budget", OwnerID: "alice", Visibility: document.VisibilityPublic}

	op, err := p.Put(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, document.OpCreate, op)

	doc.Title = "Budget v2"
	op, err = p.Put(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, document.OpUpdate, op)

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "budget", string(w.msgs[0].Key))
	ev := decodeEvent(t, w.msgs[1])
	assert.Equal(t, document.OpUpdate, ev.Op)
	require.NotNil(t, ev.Document)
	assert.Equal(t, "Budget v2", ev.Document.Title)
	assert.Equal(t, p.now(), store.docs["budget"].CreatedAt)
}

func TestPutRejectsInvalidDocument(t *testing.T) {
	p, _, w := newPublisher()

	_, err := p.Put(context.Background(), document.Document{ID: "no-owner"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, w.msgs)
}

func TestPutStoreFailure(t *testing.T) {
	p, store, w := newPublisher()
	store.err = errors.New("connection refused")

	_, err := p.Put(context.Background(), document.Document{ID: "d", OwnerID: "alice"})
	assert.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestPutPublishFailureKeepsDocument(t *testing.T) {
	p, store, w := newPublisher()
	w.err = errors.New("broker unavailable")

	_, err := p.Put(context.Background(), document.Document{ID: "d", OwnerID: "alice"})
	assert.Error(t, err)
	assert.Contains(t, store.docs, "d")
}

func TestDelete(t *testing.T) {
	p, _, w := newPublisher()
	_, err := p.Put(context.Background(), document.Document{ID: "d", OwnerID: "alice"})
	require.NoError(t, err)

	require.NoError(t, p.Delete(context.Background(), "d"))
	ev := decodeEvent(t, w.msgs[len(w.msgs)-1])
	assert.Equal(t, document.OpDelete, ev.Op)
	assert.Equal(t, "d", ev.DocumentID)
	assert.Nil(t, ev.Document)

	assert.ErrorIs(t, p.Delete(context.Background(), "d"), apperrors.ErrDocumentNotFound)
	assert.ErrorIs(t, p.Delete(context.Background(), ""), apperrors.ErrInvalidInput)
}
