package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/blacktop/postgate/internal/logutil"
	"github.com/blacktop/postgate/internal/postgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logutil.SetOutput(io.Discard)
}

type memStore struct {
	mu       sync.Mutex
	targets  map[int64]postgate.PostTarget
	accounts map[int64]postgate.SocialAccount
	posts    map[int64]postgate.Post
}

func newMemStore() *memStore {
	return &memStore{
		targets:  map[int64]postgate.PostTarget{},
		accounts: map[int64]postgate.SocialAccount{},
		posts:    map[int64]postgate.Post{},
	}
}

func (s *memStore) GetTarget(_ context.Context, id int64) (postgate.PostTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	if !ok {
		return postgate.PostTarget{}, postgate.ErrNotFound
	}
	return t, nil
}

func (s *memStore) GetAccount(_ context.Context, id int64) (postgate.SocialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return postgate.SocialAccount{}, postgate.ErrNotFound
	}
	return a, nil
}

func (s *memStore) GetPost(_ context.Context, userID, postID int64) (postgate.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok || p.UserID != userID {
		return postgate.Post{}, postgate.ErrNotFound
	}
	return p, nil
}

func (s *memStore) UpdateTargetStatus(_ context.Context, id int64, status postgate.TargetStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	if !ok {
		return postgate.ErrNotFound
	}
	t.Status = status
	t.LastError = lastError
	s.targets[id] = t
	return nil
}

func (s *memStore) target(id int64) postgate.PostTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targets[id]
}

type fakePoster struct {
	mu       sync.Mutex
	failures int
	err      error
	requests []postgate.Request
}

func (f *fakePoster) Name() string { return "fake" }

func (f *fakePoster) Post(_ context.Context, req postgate.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return nil
}

func (f *fakePoster) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func seed(store *memStore, platform postgate.Platform) {
	store.accounts[1] = postgate.SocialAccount{ID: 1, UserID: 7, Platform: platform, DisplayName: "acct"}
	store.posts[1] = postgate.Post{
		ID:            1,
		UserID:        7,
		ContentType:   postgate.ContentPhoto,
		Caption:       "hello",
		Hashtags:      []string{"go"},
		ImageFile:     "shot.png",
		MediaMetadata: postgate.MediaMetadata{"alt_text": "a screenshot"},
	}
	store.targets[1] = postgate.PostTarget{ID: 1, PostID: 1, SocialAccountID: 1, Status: postgate.StatusQueued}
}

func fastOptions() Options {
	return Options{Workers: 2, MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func runOne(t *testing.T, store *memStore, posters map[postgate.Platform]postgate.Poster) {
	t.Helper()
	pool := NewPool(store, posters, fastOptions())
	pool.Start(context.Background())
	require.NoError(t, pool.Enqueue(context.Background(), 1))
	require.NoError(t, pool.Close())
}

func TestPoolPublishes(t *testing.T) {
	store := newMemStore()
	seed(store, postgate.PlatformX)
	poster := &fakePoster{}

	runOne(t, store, map[postgate.Platform]postgate.Poster{postgate.PlatformX: poster})

	assert.Equal(t, postgate.StatusPublished, store.target(1).Status)
	require.Equal(t, 1, poster.calls())
	assert.Equal(t, postgate.Request{Message: "hello #go", MediaPath: "shot.png", MediaAlt: "a screenshot"}, poster.requests[0])
}

func TestPoolRetriesTransientErrors(t *testing.T) {
	store := newMemStore()
	seed(store, postgate.PlatformX)
	poster := &fakePoster{failures: 2, err: errors.New("503 service unavailable")}

	runOne(t, store, map[postgate.Platform]postgate.Poster{postgate.PlatformX: poster})

	assert.Equal(t, postgate.StatusPublished, store.target(1).Status)
	assert.Equal(t, 3, poster.calls())
}

func TestPoolGivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	seed(store, postgate.PlatformX)
	poster := &fakePoster{failures: 10, err: errors.New("timeout")}

	runOne(t, store, map[postgate.Platform]postgate.Poster{postgate.PlatformX: poster})

	target := store.target(1)
	assert.Equal(t, postgate.StatusFailed, target.Status)
	assert.Contains(t, target.LastError, "timeout")
	assert.Equal(t, 3, poster.calls())
}

func TestPoolDoesNotRetryPermanentErrors(t *testing.T) {
	store := newMemStore()
	seed(store, postgate.PlatformX)
	poster := &fakePoster{failures: 10, err: postgate.ValidationError{Provider: "x", Reason: "unsupported media"}}

	runOne(t, store, map[postgate.Platform]postgate.Poster{postgate.PlatformX: poster})

	assert.Equal(t, postgate.StatusFailed, store.target(1).Status)
	assert.Equal(t, 1, poster.calls())
}

func TestPoolMissingPoster(t *testing.T) {
	store := newMemStore()
	seed(store, postgate.PlatformLinkedIn)

	runOne(t, store, map[postgate.Platform]postgate.Poster{})

	target := store.target(1)
	assert.Equal(t, postgate.StatusFailed, target.Status)
	assert.Contains(t, target.LastError, "no publisher configured for linkedin")
}

func TestPoolSkipsTargetsNotQueued(t *testing.T) {
	store := newMemStore()
	seed(store, postgate.PlatformX)
	store.targets[1] = postgate.PostTarget{ID: 1, PostID: 1, SocialAccountID: 1, Status: postgate.StatusRejected, LastError: "blocked"}
	poster := &fakePoster{}

	runOne(t, store, map[postgate.Platform]postgate.Poster{postgate.PlatformX: poster})

	assert.Equal(t, postgate.StatusRejected, store.target(1).Status)
	assert.Zero(t, poster.calls())
}

func TestEnqueueAfterClose(t *testing.T) {
	pool := NewPool(newMemStore(), nil, fastOptions())
	pool.Start(context.Background())
	require.NoError(t, pool.Close())
	assert.ErrorIs(t, pool.Enqueue(context.Background(), 1), ErrClosed)
	require.NoError(t, pool.Close())
}

type slowPoster struct {
	delay time.Duration
}

func (slowPoster) Name() string { return "slow" }

func (s slowPoster) Post(ctx context.Context, _ postgate.Request) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestCancelledPoolLeavesNoTargetQueued(t *testing.T) {
	store := newMemStore()
	seed(store, postgate.PlatformX)
	for id := int64(2); id <= 5; id++ {
		store.targets[id] = postgate.PostTarget{ID: id, PostID: 1, SocialAccountID: 1, Status: postgate.StatusQueued}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := NewPool(store, map[postgate.Platform]postgate.Poster{postgate.PlatformX: slowPoster{delay: 50 * time.Millisecond}}, Options{Workers: 1})
	pool.Start(ctx)
	for id := int64(1); id <= 5; id++ {
		require.NoError(t, pool.Enqueue(context.Background(), id))
	}

	time.Sleep(10 * time.Millisecond)
	cancel()
	require.NoError(t, pool.Close())

	interrupted := 0
	for id := int64(1); id <= 5; id++ {
		target := store.target(id)
		assert.NotEqual(t, postgate.StatusQueued, target.Status, "target %d", id)
		if target.Status == postgate.StatusFailed {
			interrupted++
			assert.NotEmpty(t, target.LastError)
		}
	}
	assert.GreaterOrEqual(t, interrupted, 4)
	assert.ErrorIs(t, pool.Enqueue(context.Background(), 6), ErrClosed)
}

func TestEnqueueFailsFastAfterWorkersStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(newMemStore(), nil, Options{Workers: 1, Buffer: 1})
	pool.Start(ctx)
	cancel()

	assert.ErrorIs(t, pool.Enqueue(context.Background(), 1), ErrClosed)
	assert.ErrorIs(t, pool.Enqueue(context.Background(), 2), ErrClosed)
	require.NoError(t, pool.Close())
}

func TestCloseReleasesBlockedEnqueue(t *testing.T) {
	store := newMemStore()
	seed(store, postgate.PlatformX)
	pool := NewPool(store, nil, Options{Buffer: 1})
	require.NoError(t, pool.Enqueue(context.Background(), 1))

	blocked := make(chan error, 1)
	go func() { blocked <- pool.Enqueue(context.Background(), 2) }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, pool.Close())
	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Enqueue still blocked after Close")
	}

	target := store.target(1)
	assert.Equal(t, postgate.StatusFailed, target.Status)
	assert.Contains(t, target.LastError, "publish interrupted")
}
