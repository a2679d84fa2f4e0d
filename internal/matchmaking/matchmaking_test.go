package matchmaking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/playmatatu/duelcore/internal/apierr"
	"github.com/playmatatu/duelcore/internal/tokenstore"
)

type fakePlayersClient struct {
	mu      sync.Mutex
	invalid map[int64]bool
}

func newFakePlayersClient() *fakePlayersClient {
	return &fakePlayersClient{invalid: make(map[int64]bool)}
}

func (f *fakePlayersClient) ValidateProfile(ctx context.Context, userID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.invalid[userID]
}

func (f *fakePlayersClient) ValidateFriendship(ctx context.Context, userID, otherID int64) bool {
	return true
}

func (f *fakePlayersClient) reject(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalid[userID] = true
}

type fakeGameEngineClient struct {
	mu      sync.Mutex
	nextID  int64
	fail    bool
	created [][2]int64
}

func (f *fakeGameEngineClient) CreateMatch(ctx context.Context, player1ID, player2ID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, errors.New("game engine unreachable")
	}
	f.nextID++
	f.created = append(f.created, [2]int64{player1ID, player2ID})
	return f.nextID, nil
}

func newCoordinator(gameEngine *fakeGameEngineClient, players *fakePlayersClient, maxQueue int) *Coordinator {
	return NewCoordinator(tokenstore.NewFakeStore(), gameEngine, players, maxQueue, zap.NewNop())
}

func TestEnqueueRejectsInvalidProfile(t *testing.T) {
	players := newFakePlayersClient()
	players.reject(1)
	coordinator := newCoordinator(&fakeGameEngineClient{}, players, 0)

	_, err := coordinator.Enqueue(context.Background(), 1)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.Permission, apiErr.Kind)
}

func TestEnqueueFirstPlayerWaits(t *testing.T) {
	coordinator := newCoordinator(&fakeGameEngineClient{}, newFakePlayersClient(), 0)

	result, err := coordinator.Enqueue(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, tokenstore.StatusWaiting, result.Status)
	assert.NotEmpty(t, result.QueueToken)
}

func TestEnqueueIsIdempotentWhileWaiting(t *testing.T) {
	coordinator := newCoordinator(&fakeGameEngineClient{}, newFakePlayersClient(), 0)
	ctx := context.Background()

	first, err := coordinator.Enqueue(ctx, 1)
	require.NoError(t, err)

	second, err := coordinator.Enqueue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.QueueToken, second.QueueToken)
	assert.Equal(t, tokenstore.StatusWaiting, second.Status)
}

func TestEnqueuePairsSecondPlayer(t *testing.T) {
	gameEngine := &fakeGameEngineClient{}
	coordinator := newCoordinator(gameEngine, newFakePlayersClient(), 0)
	ctx := context.Background()

	first, err := coordinator.Enqueue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, tokenstore.StatusWaiting, first.Status)

	second, err := coordinator.Enqueue(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, tokenstore.StatusMatched, second.Status)
	assert.Equal(t, int64(1), second.OpponentID)
	assert.NotZero(t, second.MatchID)

	firstStatus, err := coordinator.Status(ctx, first.QueueToken)
	require.NoError(t, err)
	assert.Equal(t, tokenstore.StatusMatched, firstStatus.Status)
	assert.Equal(t, second.MatchID, firstStatus.MatchID)
	assert.Equal(t, int64(2), firstStatus.OpponentID)
}

func TestEnqueueRejectsWhenQueueIsFull(t *testing.T) {
	coordinator := newCoordinator(&fakeGameEngineClient{}, newFakePlayersClient(), 1)
	ctx := context.Background()

	_, err := coordinator.Enqueue(ctx, 1)
	require.NoError(t, err)

	_, err = coordinator.Enqueue(ctx, 2)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.Conflict, apiErr.Kind)
}

func TestEnqueueRevertsBothPlayersOnGameEngineFailure(t *testing.T) {
	gameEngine := &fakeGameEngineClient{fail: true}
	coordinator := newCoordinator(gameEngine, newFakePlayersClient(), 0)
	ctx := context.Background()

	first, err := coordinator.Enqueue(ctx, 1)
	require.NoError(t, err)

	second, err := coordinator.Enqueue(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, tokenstore.StatusWaiting, second.Status)

	firstStatus, err := coordinator.Status(ctx, first.QueueToken)
	require.NoError(t, err)
	assert.Equal(t, tokenstore.StatusWaiting, firstStatus.Status)

	secondStatus, err := coordinator.Status(ctx, second.QueueToken)
	require.NoError(t, err)
	assert.Equal(t, tokenstore.StatusWaiting, secondStatus.Status)
}

func TestDequeueRemovesWaitingToken(t *testing.T) {
	coordinator := newCoordinator(&fakeGameEngineClient{}, newFakePlayersClient(), 0)
	ctx := context.Background()

	result, err := coordinator.Enqueue(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, coordinator.Dequeue(ctx, 1, result.QueueToken))

	_, err = coordinator.Status(ctx, result.QueueToken)
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.NotFound, apiErr.Kind)
}

func TestDequeueInvalidTokenIsNotFound(t *testing.T) {
	coordinator := newCoordinator(&fakeGameEngineClient{}, newFakePlayersClient(), 0)

	err := coordinator.Dequeue(context.Background(), 1, "does-not-exist")
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.NotFound, apiErr.Kind)
}

func TestDequeueAfterMatchIsTooLate(t *testing.T) {
	coordinator := newCoordinator(&fakeGameEngineClient{}, newFakePlayersClient(), 0)
	ctx := context.Background()

	first, err := coordinator.Enqueue(ctx, 1)
	require.NoError(t, err)
	_, err = coordinator.Enqueue(ctx, 2)
	require.NoError(t, err)

	err = coordinator.Dequeue(ctx, 1, first.QueueToken)
	require.Error(t, err)
	var tooLate *TooLateError
	require.ErrorAs(t, err, &tooLate)
	assert.Equal(t, int64(2), tooLate.OpponentID)
}
