package archive_test

import (
	"context"
	"encoding/json"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/archive"
	"matchchat/backend/internal/chat"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/storage"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemObjects() *memObjects { return &memObjects{objects: map[string][]byte{}} }

func (m *memObjects) Put(_ context.Context, key, _ string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errors.New("bucket unavailable")
	}
	m.objects[key] = data
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, archive.ErrObjectNotFound
	}
	return data, nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjects) PresignURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

func setup(t *testing.T) (*archive.Archiver, *memObjects, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	objects := newMemObjects()
	a := archive.NewArchiver(storage.NewRedisStore(rdb), objects, nil)
	a.Clock = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return a, objects, mr
}

func putMessage(t *testing.T, mr *miniredis.Miniredis, m models.ChatMessage) {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	mr.HSet(chat.MessagesKey(m.ChatID), m.ID, string(data))
	_, err = mr.ZAdd(chat.OrderKey(m.ChatID), float64(m.CreatedAt), m.ID)
	require.NoError(t, err)
}

func TestArchive_WritesOrderedDocument(t *testing.T) {
	a, objects, mr := setup(t)
	ctx := context.Background()
	putMessage(t, mr, models.ChatMessage{ID: "m2", ChatID: "c1", FromUser: "B", ToUser: "A", Text: "second", CreatedAt: 20})
	putMessage(t, mr, models.ChatMessage{ID: "m1", ChatID: "c1", FromUser: "A", ToUser: "B", Text: "first", CreatedAt: 10})
	mr.HSet(chat.MessagesKey("c1"), "junk", "not json")
	mr.HSet(chat.ReadKey("c1"), "B", "m1")

	key, archived, err := a.Archive(ctx, "c1")

	require.NoError(t, err)
	assert.True(t, archived)
	assert.Equal(t, "archives/chats/c1/1700000000000.json", key)
	require.Contains(t, objects.objects, key)

	doc, err := a.Fetch(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, doc.Metadata)
	require.Len(t, doc.Messages, 2)
	assert.Equal(t, "m1", doc.Messages[0].ID)
	assert.Equal(t, "m2", doc.Messages[1].ID)
	assert.Equal(t, map[string]string{"B": "m1"}, doc.ReadStatus)
	assert.Equal(t, []string{"A", "B"}, doc.Participants())
}

func TestArchive_EmptyChatIsNotArchived(t *testing.T) {
	a, objects, _ := setup(t)

	key, archived, err := a.Archive(context.Background(), "c-empty")

	require.NoError(t, err)
	assert.False(t, archived)
	assert.Empty(t, key)
	assert.Empty(t, objects.objects)
}

func TestArchive_UploadFailureIsArchivalFailed(t *testing.T) {
	a, objects, mr := setup(t)
	objects.failPut = true
	putMessage(t, mr, models.ChatMessage{ID: "m1", ChatID: "c1", FromUser: "A", ToUser: "B", Text: "hi", CreatedAt: 1})

	_, archived, err := a.Archive(context.Background(), "c1")

	assert.False(t, archived)
	assert.Equal(t, apperr.KindArchivalFailed, apperr.KindOf(err))
	assert.True(t, mr.Exists(chat.MessagesKey("c1")))
}

func TestArchive_KeepsMetadataWhenPresent(t *testing.T) {
	a, _, mr := setup(t)
	ctx := context.Background()
	meta, err := json.Marshal(models.Chat{ID: "c1", Participants: [2]string{"X", "Y"}, CreatedAt: 5})
	require.NoError(t, err)
	require.NoError(t, mr.Set(chat.MetaKey("c1"), string(meta)))
	putMessage(t, mr, models.ChatMessage{ID: "m1", ChatID: "c1", FromUser: "X", ToUser: "Y", Text: "hi", CreatedAt: 6})

	doc, err := a.Snapshot(ctx, "c1")

	require.NoError(t, err)
	require.NotNil(t, doc.Metadata)
	assert.Equal(t, []string{"X", "Y"}, doc.Participants())
}

func TestSnapshot_FallsBackToMetadataCopy(t *testing.T) {
	a, _, mr := setup(t)
	meta, err := json.Marshal(models.Chat{ID: "c1", Participants: [2]string{"X", "Y"}, CreatedAt: 5})
	require.NoError(t, err)
	require.NoError(t, mr.Set(chat.ArchiveMetaKey("c1"), string(meta)))

	doc, err := a.Snapshot(context.Background(), "c1")

	require.NoError(t, err)
	require.NotNil(t, doc.Metadata)
	assert.Equal(t, "c1", doc.Metadata.ID)
	assert.Equal(t, []string{"X", "Y"}, doc.Participants())
}

func TestFetch_MissingAndRemove(t *testing.T) {
	a, _, mr := setup(t)
	ctx := context.Background()

	_, err := a.Fetch(ctx, "archives/chats/none/1.json")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	putMessage(t, mr, models.ChatMessage{ID: "m1", ChatID: "c1", FromUser: "A", ToUser: "B", Text: "hi", CreatedAt: 1})
	key, _, err := a.Archive(ctx, "c1")
	require.NoError(t, err)

	url, err := a.DownloadURL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, key)

	require.NoError(t, a.Remove(ctx, key))
	_, err = a.Fetch(ctx, key)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
