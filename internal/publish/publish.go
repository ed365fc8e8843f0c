// Package publish routes a post's targets to the job queue or marks them
// rejected, based on the availability report for the post.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/blacktop/postgate/internal/availability"
	"github.com/blacktop/postgate/internal/logutil"
	"github.com/blacktop/postgate/internal/metrics"
	"github.com/blacktop/postgate/internal/postgate"
)

// ReasonAccountUnavailable is stored when a target's account is missing from
// the availability report, e.g. it was disconnected after the post was drafted.
const ReasonAccountUnavailable = "Account not available for publishing."

// Store is the storage surface orchestration needs.
type Store interface {
	availability.AccountLister
	GetPost(ctx context.Context, userID, postID int64) (postgate.Post, error)
	ListTargets(ctx context.Context, postID int64) ([]postgate.PostTarget, error)
	UpdateTargetStatus(ctx context.Context, id int64, status postgate.TargetStatus, lastError string) error
}

// Queue accepts target ids for asynchronous publishing.
type Queue interface {
	Enqueue(ctx context.Context, targetID int64) error
}

// Rejection describes a target that will not be published.
type Rejection struct {
	PostTargetID    int64  `json:"post_target_id"`
	SocialAccountID int64  `json:"social_account_id"`
	Reason          string `json:"reason"`
}

// Result is the outcome of routing one post. Failed lists available targets
// the queue refused; they are stored as failed with the enqueue error.
type Result struct {
	Queued       []int64                             `json:"queued_post_target_ids"`
	Rejected     []Rejection                         `json:"rejected"`
	Failed       []Rejection                         `json:"failed"`
	Availability []availability.PlatformAvailability `json:"availability"`
}

// Orchestrator evaluates a post and routes its targets.
type Orchestrator struct {
	store     Store
	evaluator *availability.Evaluator
	queue     Queue
}

// NewOrchestrator wires storage and the publish queue.
func NewOrchestrator(store Store, queue Queue) *Orchestrator {
	return &Orchestrator{
		store:     store,
		evaluator: availability.NewEvaluator(store),
		queue:     queue,
	}
}

// Publish routes every target of the user's post. Available targets become
// queued and are handed to the queue; the rest become rejected with the
// account's reason stored verbatim. A target the queue refuses is stored as
// failed and reported in Result.Failed rather than as an error. Evaluation
// and the status writes are not atomic; account changes in between are not
// observed.
func (o *Orchestrator) Publish(ctx context.Context, userID, postID int64) (Result, error) {
	post, err := o.store.GetPost(ctx, userID, postID)
	if err != nil {
		return Result{}, err
	}

	report, err := o.evaluator.Evaluate(ctx, userID, post.ContentType, post.MediaMetadata)
	if err != nil {
		return Result{}, err
	}
	byAccount := availability.ByAccount(report)
	platformOf := platformIndex(report)

	targets, err := o.store.ListTargets(ctx, post.ID)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Queued:       []int64{},
		Rejected:     []Rejection{},
		Failed:       []Rejection{},
		Availability: report,
	}
	for _, target := range targets {
		verdict, ok := byAccount[target.SocialAccountID]
		platform := string(platformOf[target.SocialAccountID])
		if platform == "" {
			platform = "unknown"
		}
		if !ok || !verdict.Available {
			reason := ReasonAccountUnavailable
			if ok {
				reason = verdict.Reason
			}
			if err := o.store.UpdateTargetStatus(ctx, target.ID, postgate.StatusRejected, reason); err != nil {
				return Result{}, err
			}
			metrics.ObserveRouted(platform, string(postgate.StatusRejected))
			logutil.Debugf("target rejected: post=%d target=%d account=%d reason=%q", post.ID, target.ID, target.SocialAccountID, reason)
			result.Rejected = append(result.Rejected, Rejection{
				PostTargetID:    target.ID,
				SocialAccountID: target.SocialAccountID,
				Reason:          reason,
			})
			continue
		}

		if err := o.store.UpdateTargetStatus(ctx, target.ID, postgate.StatusQueued, ""); err != nil {
			return Result{}, err
		}
		if err := o.queue.Enqueue(ctx, target.ID); err != nil {
			reason := fmt.Sprintf("enqueue: %v", err)
			if uerr := o.store.UpdateTargetStatus(context.WithoutCancel(ctx), target.ID, postgate.StatusFailed, reason); uerr != nil {
				return result, errors.Join(fmt.Errorf("enqueue target %d: %w", target.ID, err), uerr)
			}
			metrics.ObserveRouted(platform, string(postgate.StatusFailed))
			logutil.Warnf("target %d not queued: %v", target.ID, err)
			result.Failed = append(result.Failed, Rejection{
				PostTargetID:    target.ID,
				SocialAccountID: target.SocialAccountID,
				Reason:          reason,
			})
			continue
		}
		metrics.ObserveRouted(platform, string(postgate.StatusQueued))
		logutil.Debugf("target queued: post=%d target=%d account=%d", post.ID, target.ID, target.SocialAccountID)
		result.Queued = append(result.Queued, target.ID)
	}

	logutil.Infof("post %d routed: queued=%d rejected=%d failed=%d", post.ID, len(result.Queued), len(result.Rejected), len(result.Failed))
	return result, nil
}

func platformIndex(report []availability.PlatformAvailability) map[int64]postgate.Platform {
	out := make(map[int64]postgate.Platform)
	for _, entry := range report {
		for _, account := range entry.Accounts {
			out[account.SocialAccountID] = entry.Platform
		}
	}
	return out
}
