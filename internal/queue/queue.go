// Package queue runs queued post targets through platform posters.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blacktop/postgate/internal/logutil"
	"github.com/blacktop/postgate/internal/metrics"
	"github.com/blacktop/postgate/internal/postgate"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue closed")

// Store is the storage surface the workers need.
type Store interface {
	GetTarget(ctx context.Context, id int64) (postgate.PostTarget, error)
	GetAccount(ctx context.Context, id int64) (postgate.SocialAccount, error)
	GetPost(ctx context.Context, userID, postID int64) (postgate.Post, error)
	UpdateTargetStatus(ctx context.Context, id int64, status postgate.TargetStatus, lastError string) error
}

// Options tune the pool.
type Options struct {
	Workers      int
	Buffer       int
	RatePerSec   float64
	Burst        int
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.Buffer <= 0 {
		o.Buffer = 64
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	return o
}

// Pool publishes targets with a fixed number of workers.
type Pool struct {
	store   Store
	posters map[postgate.Platform]postgate.Poster
	opts    Options
	limiter *rate.Limiter

	jobs     chan int64
	quit     chan struct{}
	quitOnce sync.Once
	stopped  <-chan struct{}
	group    *errgroup.Group
	mu       sync.RWMutex
	closed   bool
}

// NewPool returns a pool that dispatches by account platform to posters.
func NewPool(store Store, posters map[postgate.Platform]postgate.Poster, opts Options) *Pool {
	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &Pool{
		store:   store,
		posters: posters,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
		jobs:    make(chan int64, opts.Buffer),
		quit:    make(chan struct{}),
	}
}

// Start launches the workers. They stop when ctx is cancelled or after
// Close drains the queue. Targets still buffered when ctx is cancelled are
// marked failed by Close.
func (p *Pool) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.opts.Workers; i++ {
		worker := i
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case id, ok := <-p.jobs:
					if !ok {
						return nil
					}
					p.handle(gctx, worker, id)
				}
			}
		})
	}
	p.mu.Lock()
	p.group = g
	p.stopped = gctx.Done()
	p.mu.Unlock()
}

// Enqueue hands a target to the workers, blocking while the buffer is full.
// It returns ErrClosed once Close has been called or the workers have stopped.
func (p *Pool) Enqueue(ctx context.Context, targetID int64) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case <-p.stopped:
		return ErrClosed
	default:
	}
	select {
	case p.jobs <- targetID:
		return nil
	case <-p.quit:
		return ErrClosed
	case <-p.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for the workers. Jobs the workers
// never picked up, because their context was cancelled or Start was never
// called, are marked failed so no target is left queued.
func (p *Pool) Close() error {
	p.quitOnce.Do(func() { close(p.quit) })

	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	group := p.group
	p.mu.Unlock()

	var err error
	if group != nil {
		err = group.Wait()
	}
	for id := range p.jobs {
		p.abandon(id, ErrClosed)
	}
	return err
}

func (p *Pool) handle(ctx context.Context, worker int, targetID int64) {
	log := logutil.With("worker", worker, "target", targetID)
	if err := ctx.Err(); err != nil {
		p.abandon(targetID, err)
		return
	}

	target, err := p.store.GetTarget(ctx, targetID)
	if err != nil {
		log.Error("load target", "err", err)
		return
	}
	if target.Status != postgate.StatusQueued {
		log.Debug("skipping target", "status", target.Status)
		return
	}
	account, err := p.store.GetAccount(ctx, target.SocialAccountID)
	if err != nil {
		p.finish(ctx, target, "unknown", fmt.Errorf("load account: %w", err))
		return
	}
	post, err := p.store.GetPost(ctx, account.UserID, target.PostID)
	if err != nil {
		p.finish(ctx, target, string(account.Platform), fmt.Errorf("load post: %w", err))
		return
	}
	poster, ok := p.posters[account.Platform]
	if !ok {
		p.finish(ctx, target, string(account.Platform), fmt.Errorf("no publisher configured for %s", account.Platform))
		return
	}

	req := postgate.Request{
		Message:   post.Message(),
		MediaPath: post.MediaPath(),
	}
	if alt, ok := post.MediaMetadata["alt_text"].(string); ok {
		req.MediaAlt = alt
	}

	attempts := 0
	op := func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		err := poster.Post(ctx, req)
		if err != nil && postgate.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		if err != nil {
			log.Warn("publish attempt failed", "platform", account.Platform, "attempt", attempts, "err", err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.InitialDelay
	bo.MaxInterval = p.opts.MaxDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.opts.MaxAttempts-1)), ctx)

	err = backoff.Retry(op, policy)
	p.finish(ctx, target, string(account.Platform), err)
}

// abandon fails a target that was queued but never published.
func (p *Pool) abandon(targetID int64, cause error) {
	ctx := context.Background()
	target, err := p.store.GetTarget(ctx, targetID)
	if err != nil {
		logutil.Errorf("load abandoned target %d: %v", targetID, err)
		return
	}
	if target.Status != postgate.StatusQueued {
		return
	}
	platform := "unknown"
	if account, err := p.store.GetAccount(ctx, target.SocialAccountID); err == nil {
		platform = string(account.Platform)
	}
	p.finish(ctx, target, platform, fmt.Errorf("publish interrupted: %w", cause))
}

// finish records the outcome. The write ignores cancellation so a shutdown
// mid-publish still leaves the target published or failed.
func (p *Pool) finish(ctx context.Context, target postgate.PostTarget, platform string, err error) {
	ctx = context.WithoutCancel(ctx)
	status, lastError, outcome := postgate.StatusPublished, "", "published"
	if err != nil {
		status, lastError, outcome = postgate.StatusFailed, err.Error(), "failed"
		logutil.Errorf("publish target %d to %s: %v", target.ID, platform, err)
	} else {
		logutil.Infof("published target %d to %s", target.ID, platform)
	}
	metrics.ObservePublish(platform, outcome)
	if uerr := p.store.UpdateTargetStatus(ctx, target.ID, status, lastError); uerr != nil {
		logutil.Errorf("update target %d: %v", target.ID, uerr)
	}
}
