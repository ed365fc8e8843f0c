package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blacktop/postgate/internal/postgate"
	"github.com/blacktop/postgate/internal/storage/sqlite"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newAccountsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage connected social accounts",
	}
	cmd.AddCommand(newAccountsAddCommand(a), newAccountsListCommand(a))
	return cmd
}

func newAccountsAddCommand(a *app) *cobra.Command {
	var (
		account     postgate.SocialAccount
		platform    string
		accountType string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Connect an account for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(account.UserID); err != nil {
				return err
			}
			var err error
			if account.Platform, err = postgate.ParsePlatform(platform); err != nil {
				return err
			}
			if account.AccountType, err = postgate.ParseAccountType(accountType); err != nil {
				return err
			}
			account.DisplayName = strings.TrimSpace(account.DisplayName)
			if account.DisplayName == "" {
				return errors.New("--name is required")
			}

			return a.withStore(cmd.Context(), func(store *sqlite.Store) error {
				created, err := store.CreateAccount(cmd.Context(), account)
				if err != nil {
					return err
				}
				if asJSON || !isTerminal(cmd.OutOrStdout()) {
					return writeJSON(cmd.OutOrStdout(), created)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "connected %s account %q (id %d)\n", created.Platform.Label(), created.DisplayName, created.ID)
				return err
			})
		},
	}
	f := cmd.Flags()
	f.Int64VarP(&account.UserID, "user", "u", 0, "User id")
	f.StringVarP(&platform, "platform", "p", "", "Platform (instagram, facebook, tiktok, youtube, linkedin, x)")
	f.StringVarP(&account.DisplayName, "name", "n", "", "Display name")
	f.StringVar(&accountType, "type", "", "Account type (instagram_professional, instagram_personal, facebook_page, facebook_profile)")
	f.BoolVar(&account.PermissionsValid, "permissions-valid", false, "Publishing permissions have been granted")
	f.BoolVar(&account.TikTokPrerequisitesMet, "tiktok-prerequisites", false, "TikTok posting prerequisites are met")
	f.BoolVar(&account.TikTokPhotoPostEnabled, "tiktok-photo", false, "TikTok photo posting is enabled")
	f.BoolVar(&account.LinkedInAccessGranted, "linkedin-access", false, "LinkedIn posting access is granted")
	f.BoolVar(&account.XMediaUploadEnabled, "x-media-upload", false, "X media upload is enabled")
	f.StringVar(&account.XAPITier, "x-tier", "", "X API tier")
	f.BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	f.SortFlags = false
	_ = cmd.MarkFlagRequired("platform")
	return cmd
}

func newAccountsListCommand(a *app) *cobra.Command {
	var (
		userID int64
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's connected accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store *sqlite.Store) error {
				accounts, err := store.ListAccountsByUser(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if asJSON || !isTerminal(cmd.OutOrStdout()) {
					return writeJSON(cmd.OutOrStdout(), accounts)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), accountsTable(accounts))
				return err
			})
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "User id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	return cmd
}

func accountsTable(accounts []postgate.SocialAccount) string {
	rows := make([][]string, 0, len(accounts))
	for _, account := range accounts {
		rows = append(rows, []string{
			strconv.FormatInt(account.ID, 10),
			account.Platform.Label(),
			account.DisplayName,
			string(account.AccountType),
			yesNo(account.PermissionsValid),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "PLATFORM", "NAME", "TYPE", "PERMISSIONS").
		Rows(rows...).
		String()
}
