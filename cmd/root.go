/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blacktop/postgate/internal/config"
	"github.com/blacktop/postgate/internal/logutil"
	"github.com/blacktop/postgate/internal/metrics"
	"github.com/blacktop/postgate/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

// app carries settings shared by every subcommand.
type app struct {
	cfg     config.Config
	envFile string
	dbPath  string
	verbose bool
}

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "postgate",
		Short: "Check which social accounts can receive a post, and publish to them",
		Long: "postgate evaluates a user's connected Instagram, Facebook, TikTok, YouTube, LinkedIn and X " +
			"accounts against a post's content type, explains why blocked accounts cannot publish, " +
			"and queues the eligible targets for publishing.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
		Example: `  postgate accounts add --user 1 --platform youtube --name "My Channel"
  postgate capabilities --user 1 --content-type VIDEO
  postgate posts create --user 1 --content-type TEXT --caption "Ship it!" --target 1
  postgate publish --user 1 --post 1`,
	}

	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "V", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to the SQLite database (default $POSTGATE_DB_PATH or postgate.db)")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Optional dotenv file to load")

	cmd.AddCommand(
		newCapabilitiesCommand(a),
		newValidateCommand(a),
		newAccountsCommand(a),
		newPostsCommand(a),
		newPublishCommand(a),
		newServeCommand(a),
		newTokenCommand(a),
		newCompletionCommand(),
	)
	return cmd
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(a.dbPath) != "" {
		cfg.DBPath = a.dbPath
	}
	a.cfg = cfg

	logutil.SetVerbose(a.verbose)
	logutil.SetJSON(cfg.LogJSON)
	metrics.Register()
	return nil
}

// withStore opens the database for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(*sqlite.Store) error) (err error) {
	store, err := sqlite.Open(ctx, a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", a.cfg.DBPath, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
		}
	}()
	return fn(store)
}

func requireUser(userID int64) error {
	if userID <= 0 {
		return errors.New("--user is required")
	}
	return nil
}
