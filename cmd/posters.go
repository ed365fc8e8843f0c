package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/blacktop/postgate/internal/config"
	"github.com/blacktop/postgate/internal/logutil"
	"github.com/blacktop/postgate/internal/postgate"
	"github.com/blacktop/postgate/internal/postgate/dryrun"
	"github.com/blacktop/postgate/internal/postgate/x"
	"github.com/blacktop/postgate/internal/queue"
)

// buildPosters returns the publisher for each platform. Platforms without a
// live client get no poster, so their targets fail instead of pretending to
// publish.
func buildPosters(ctx context.Context, dryRun bool, out io.Writer) (map[postgate.Platform]postgate.Poster, error) {
	posters := make(map[postgate.Platform]postgate.Poster, len(postgate.Platforms))
	if dryRun {
		for _, platform := range postgate.Platforms {
			posters[platform] = dryrun.New(platform, out)
		}
		return posters, nil
	}

	constructors := map[postgate.Platform]func(context.Context) (postgate.Poster, error){
		postgate.PlatformX: x.New,
	}

	var errs []error
	for _, platform := range postgate.Platforms {
		constructor, ok := constructors[platform]
		if !ok {
			logutil.Warnf("no live client for %s; its targets will fail", platform)
			continue
		}
		poster, err := constructor(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", platform, err))
			continue
		}
		posters[platform] = poster
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return posters, nil
}

func queueOptions(cfg config.Config) queue.Options {
	return queue.Options{
		Workers:      cfg.Workers,
		Buffer:       cfg.QueueBuffer,
		RatePerSec:   cfg.PublishRate,
		Burst:        cfg.PublishBurst,
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.RetryDelay,
	}
}
