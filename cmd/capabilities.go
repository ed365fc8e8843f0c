package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blacktop/postgate/internal/availability"
	"github.com/blacktop/postgate/internal/draft"
	"github.com/blacktop/postgate/internal/postgate"
	"github.com/blacktop/postgate/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

func newCapabilitiesCommand(a *app) *cobra.Command {
	var (
		userID      int64
		contentType string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Show which platforms can publish a content type for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			ct, err := postgate.ParseContentType(contentType)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store *sqlite.Store) error {
				report, err := availability.NewEvaluator(store).Evaluate(cmd.Context(), userID, ct, nil)
				if err != nil {
					return err
				}
				return writeReport(cmd.OutOrStdout(), report, asJSON)
			})
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "User id")
	cmd.Flags().StringVarP(&contentType, "content-type", "c", "", "Content type (TEXT, PHOTO or VIDEO)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	_ = cmd.MarkFlagRequired("content-type")
	return cmd
}

func newValidateCommand(a *app) *cobra.Command {
	var (
		userID int64
		file   string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a draft post and report platform availability for it",
		Long:  "validate reads a JSON draft from --file (or stdin with \"-\") and prints its availability report and validation errors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			d, err := readDraft(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			return a.withStore(cmd.Context(), func(store *sqlite.Store) error {
				report := []availability.PlatformAvailability{}
				if ct, err := postgate.ParseContentType(d.ContentType); err == nil {
					report, err = availability.NewEvaluator(store).Evaluate(cmd.Context(), userID, ct, d.MediaMetadata)
					if err != nil {
						return err
					}
				}

				errs := draft.Validate(d)
				out := struct {
					Availability []availability.PlatformAvailability `json:"availability"`
					Errors       draft.Errors                        `json:"errors"`
				}{Availability: report, Errors: errs}
				if out.Errors == nil {
					out.Errors = draft.Errors{}
				}
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				if errs != nil {
					return errs
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "User id")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Draft JSON file, or - for stdin")
	return cmd
}

func readDraft(stdin io.Reader, file string) (draft.Draft, error) {
	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(file) == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return draft.Draft{}, fmt.Errorf("read draft: %w", err)
	}

	var d draft.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return draft.Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return d, nil
}
