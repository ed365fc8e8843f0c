// Package dryrun provides a poster that only logs what it would publish.
package dryrun

import (
	"context"
	"fmt"
	"io"

	"github.com/blacktop/postgate/internal/postgate"
)

// Poster writes a line per request instead of publishing.
type Poster struct {
	platform postgate.Platform
	out      io.Writer
}

// New returns a dry-run poster for platform writing to out.
func New(platform postgate.Platform, out io.Writer) *Poster {
	return &Poster{platform: platform, out: out}
}

// Name returns the platform identifier.
func (p *Poster) Name() string { return string(p.platform) }

// Post records the request.
func (p *Poster) Post(ctx context.Context, req postgate.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(p.out, "[dry-run] would post to %s: %q\n", p.platform, req.Message); err != nil {
		return fmt.Errorf("dry-run %s: %w", p.platform, err)
	}
	if req.MediaPath != "" {
		if _, err := fmt.Fprintf(p.out, "[dry-run] media: %s (alt: %q)\n", req.MediaPath, req.MediaAlt); err != nil {
			return fmt.Errorf("dry-run %s: %w", p.platform, err)
		}
	}
	return nil
}
