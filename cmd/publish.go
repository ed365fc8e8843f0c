package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/blacktop/postgate/internal/logutil"
	"github.com/blacktop/postgate/internal/postgate"
	"github.com/blacktop/postgate/internal/publish"
	"github.com/blacktop/postgate/internal/queue"
	"github.com/blacktop/postgate/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

func newPublishCommand(a *app) *cobra.Command {
	var (
		userID int64
		postID int64
		dryRun bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Route a post's targets and publish the eligible ones",
		Long: "publish evaluates every target of the post. Available targets are queued and published; " +
			"the rest are rejected with the reason their account cannot publish.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if err := requireUser(userID); err != nil {
				return err
			}
			simulate := a.cfg.DryRun
			if cmd.Flags().Changed("dry-run") {
				simulate = dryRun
			}

			ctx := cmd.Context()
			posters, err := buildPosters(ctx, simulate, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			return a.withStore(ctx, func(store *sqlite.Store) error {
				pool := queue.NewPool(store, posters, queueOptions(a.cfg))
				pool.Start(ctx)

				result, perr := publish.NewOrchestrator(store, pool).Publish(ctx, userID, postID)
				if cerr := pool.Close(); cerr != nil {
					perr = errors.Join(perr, cerr)
				}
				if perr != nil {
					return perr
				}
				logutil.Debugf("post %d: %d queued, %d rejected", postID, len(result.Queued), len(result.Rejected))

				view, err := loadPostView(cmd, store, userID, postID)
				if err != nil {
					return err
				}
				return writePublish(cmd.OutOrStdout(), result, view, asJSON)
			})
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "User id")
	cmd.Flags().Int64VarP(&postID, "post", "p", 0, "Post id")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print actions without posting (default $POSTGATE_DRY_RUN)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	_ = cmd.MarkFlagRequired("post")
	return cmd
}

func writePublish(out io.Writer, result publish.Result, view postView, asJSON bool) error {
	if asJSON || !isTerminal(out) {
		return writeJSON(out, struct {
			publish.Result
			Targets []postgate.PostTarget `json:"targets"`
		}{Result: result, Targets: view.Targets})
	}
	for _, rejection := range result.Rejected {
		if _, err := fmt.Fprintf(out, "rejected account %d: %s\n", rejection.SocialAccountID, rejection.Reason); err != nil {
			return err
		}
	}
	for _, failure := range result.Failed {
		if _, err := fmt.Fprintf(out, "failed account %d: %s\n", failure.SocialAccountID, failure.Reason); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(out, targetsTable(view.Targets))
	return err
}
