package match_test

import (
	"context"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/match"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/notify/notifytest"
	"matchchat/backend/internal/storage"
	"matchchat/backend/internal/storage/storagetest"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memLikes is a LikeStore with the unique (from, to) constraint.
type memLikes struct {
	mu     sync.Mutex
	nextID uint
	rows   map[[2]string]*models.Like
}

func newMemLikes() *memLikes { return &memLikes{rows: map[[2]string]*models.Like{}} }

func (m *memLikes) GetLike(_ context.Context, from, to string) (*models.Like, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.rows[[2]string{from, to}]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (m *memLikes) CreateLike(_ context.Context, like *models.Like) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{like.FromUserID, like.ToUserID}
	if _, ok := m.rows[k]; ok {
		return apperr.Conflict("likes.CreateLike", storage.ErrLikeExists)
	}
	m.nextID++
	cp := *like
	cp.ID = m.nextID
	m.rows[k] = &cp
	return nil
}

func (m *memLikes) SetMatch(_ context.Context, from, to string, isMatch bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[[2]string{from, to}]
	if ok {
		l.IsMatch = isMatch
	}
	return ok, nil
}

func (m *memLikes) DeleteLike(_ context.Context, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{from, to}
	_, ok := m.rows[k]
	delete(m.rows, k)
	return ok, nil
}

func (m *memLikes) DeleteLikePair(ctx context.Context, a, b string) (int64, error) {
	var n int64
	for _, k := range [][2]string{{a, b}, {b, a}} {
		if ok, _ := m.DeleteLike(ctx, k[0], k[1]); ok {
			n++
		}
	}
	return n, nil
}

func (m *memLikes) ListMatchedPairs(context.Context, uint, int) ([]models.Like, error) {
	return nil, nil
}

func (m *memLikes) isMatch(from, to string) bool {
	l, _ := m.GetLike(context.Background(), from, to)
	return l != nil && l.IsMatch
}

type MockChats struct {
	mock.Mock
}

func (m *MockChats) Create(ctx context.Context, a, b string) (string, error) {
	args := m.Called(ctx, a, b)
	return args.String(0), args.Error(1)
}

func (m *MockChats) FindChatBetween(ctx context.Context, a, b string) (string, bool, error) {
	args := m.Called(ctx, a, b)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockChats) Delete(ctx context.Context, chatID string, purge bool) error {
	args := m.Called(ctx, chatID, purge)
	return args.Error(0)
}

type fixture struct {
	engine *match.Engine
	likes  *memLikes
	users  *storagetest.MockUserDirectory
	chats  *MockChats
	bus    *notifytest.Recorder
}

func newFixture() *fixture {
	f := &fixture{
		likes: newMemLikes(),
		users: new(storagetest.MockUserDirectory),
		chats: new(MockChats),
		bus:   new(notifytest.Recorder),
	}
	f.users.ActiveUser("A")
	f.users.ActiveUser("B")
	f.engine = match.NewEngine(f.likes, f.users, f.chats, f.bus, nil)
	return f
}

func TestLike_MutualLikesBecomeMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.chats.On("Create", mock.Anything, "B", "A").Return("chat-1", nil).Once()

	first, err := f.engine.Like(ctx, "A", "B")
	require.NoError(t, err)
	assert.False(t, first.IsMatch)
	require.Len(t, f.bus.On(models.ChannelNewLike), 1)

	second, err := f.engine.Like(ctx, "B", "A")
	require.NoError(t, err)

	assert.True(t, second.IsMatch)
	assert.Equal(t, "chat-1", second.ChatID)
	assert.True(t, f.likes.isMatch("A", "B"))
	assert.True(t, f.likes.isMatch("B", "A"))

	matches := f.bus.On(models.ChannelNewMatch)
	require.Len(t, matches, 1)
	ev := matches[0].(models.MatchEvent)
	assert.ElementsMatch(t, []string{"A", "B"}, []string{ev.User1ID, ev.User2ID})
	assert.Equal(t, "chat-1", ev.ChatID)
	f.chats.AssertExpectations(t)
}

func TestLike_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.users.On("FindByTelegramID", mock.Anything, "ghost").
		Return(nil, apperr.NotFound("users.FindByTelegramID", storage.ErrUserNotFound))
	f.users.On("FindByTelegramID", mock.Anything, "banned").
		Return(&models.User{TelegramID: "banned", Status: models.UserBlocked}, nil)

	_, err := f.engine.Like(ctx, "A", "A")
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	_, err = f.engine.Like(ctx, "A", "ghost")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.engine.Like(ctx, "banned", "A")
	assert.ErrorIs(t, err, match.ErrBlocked)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.engine.Like(ctx, "A", "banned")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.engine.Like(ctx, "A", "B")
	require.NoError(t, err)
	_, err = f.engine.Like(ctx, "A", "B")
	assert.ErrorIs(t, err, match.ErrAlreadyLiked)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestLike_ChatFailureIsReturned(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.chats.On("Create", mock.Anything, "B", "A").Return("", apperr.Transient("chat.Create", errors.New("redis down")))

	_, err := f.engine.Like(ctx, "A", "B")
	require.NoError(t, err)
	_, err = f.engine.Like(ctx, "B", "A")

	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
	assert.Empty(t, f.bus.On(models.ChannelNewMatch))
}

func TestLike_ConcurrentMutualLikesConverge(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture()
		f.chats.On("Create", mock.Anything, mock.Anything, mock.Anything).Return("chat-1", nil)

		var wg sync.WaitGroup
		results := make([]*match.Result, 2)
		for j, pair := range [][2]string{{"A", "B"}, {"B", "A"}} {
			wg.Add(1)
			go func(j int, from, to string) {
				defer wg.Done()
				res, err := f.engine.Like(context.Background(), from, to)
				assert.NoError(t, err)
				results[j] = res
			}(j, pair[0], pair[1])
		}
		wg.Wait()

		require.NotNil(t, results[0])
		require.NotNil(t, results[1])
		assert.True(t, results[0].IsMatch || results[1].IsMatch)
		assert.True(t, f.likes.isMatch("A", "B"))
		assert.True(t, f.likes.isMatch("B", "A"))
	}
}

func TestUnlike_CancelsMatchAndDeletesChat(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.chats.On("Create", mock.Anything, "B", "A").Return("chat-1", nil)
	f.chats.On("FindChatBetween", mock.Anything, "A", "B").Return("chat-1", true, nil)
	f.chats.On("Delete", mock.Anything, "chat-1", true).Return(nil).Once()
	_, err := f.engine.Like(ctx, "A", "B")
	require.NoError(t, err)
	_, err = f.engine.Like(ctx, "B", "A")
	require.NoError(t, err)

	require.NoError(t, f.engine.Unlike(ctx, "A", "B"))

	l, _ := f.likes.GetLike(ctx, "A", "B")
	assert.Nil(t, l)
	reverse, _ := f.likes.GetLike(ctx, "B", "A")
	require.NotNil(t, reverse)
	assert.False(t, reverse.IsMatch)

	cancelled := f.bus.On(models.ChannelMatchCancelled)
	require.Len(t, cancelled, 1)
	ev := cancelled[0].(models.MatchCancelledEvent)
	assert.Equal(t, match.ReasonUnlike, ev.Reason)
	assert.Equal(t, "chat-1", ev.ChatID)
	f.chats.AssertExpectations(t)
}

func TestUnlike_PlainLikeAndMissing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	err := f.engine.Unlike(ctx, "A", "B")
	assert.ErrorIs(t, err, match.ErrLikeNotFound)

	_, err = f.engine.Like(ctx, "A", "B")
	require.NoError(t, err)
	require.NoError(t, f.engine.Unlike(ctx, "A", "B"))

	assert.Empty(t, f.bus.On(models.ChannelMatchCancelled))
	f.chats.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}
