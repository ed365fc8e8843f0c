package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blacktop/postgate/internal/auth"
	"github.com/blacktop/postgate/internal/logutil"
	"github.com/blacktop/postgate/internal/queue"
	"github.com/blacktop/postgate/internal/server"
	"github.com/blacktop/postgate/internal/storage/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var errNoSecret = errors.New("POSTGATE_JWT_SECRET is not set")

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the publish workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(a.cfg.JWTSecret) == "" {
				return errNoSecret
			}
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			if !a.verbose {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			posters, err := buildPosters(ctx, a.cfg.DryRun, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.withStore(ctx, func(store *sqlite.Store) error {
				pool := queue.NewPool(store, posters, queueOptions(a.cfg))
				pool.Start(ctx)

				logutil.Infof("serving with %d workers (dry-run=%t)", a.cfg.Workers, a.cfg.DryRun)
				serr := server.New(store, pool, []byte(a.cfg.JWTSecret)).ListenAndServe(ctx, addr)
				return errors.Join(serr, pool.Close())
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default $POSTGATE_ADDR or :8080)")
	return cmd
}

func newTokenCommand(a *app) *cobra.Command {
	var (
		userID int64
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			if strings.TrimSpace(a.cfg.JWTSecret) == "" {
				return errNoSecret
			}
			if ttl <= 0 {
				ttl = a.cfg.TokenTTL
			}
			token, err := auth.IssueToken([]byte(a.cfg.JWTSecret), userID, ttl, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "User id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default $POSTGATE_TOKEN_TTL or 24h)")
	return cmd
}

func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate a shell completion script",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, out := cmd.Root(), cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			default:
				return root.GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
