package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/blacktop/postgate/internal/draft"
	"github.com/blacktop/postgate/internal/postgate"
	"github.com/blacktop/postgate/internal/storage/sqlite"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

type postView struct {
	postgate.Post
	Targets []postgate.PostTarget `json:"targets"`
}

func newPostsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Create and inspect posts",
	}
	cmd.AddCommand(newPostsCreateCommand(a), newPostsShowCommand(a))
	return cmd
}

func newPostsCreateCommand(a *app) *cobra.Command {
	var (
		userID  int64
		d       draft.Draft
		altText string
		targets []int64
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "create [caption...]",
		Short: "Create a post with target accounts",
		Long:  "create stores a post. The caption comes from --caption, the arguments, or stdin when piped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			caption, err := resolveCaption(cmd.InOrStdin(), d.Caption, args)
			if err != nil {
				return err
			}
			d.Caption = caption
			if alt := strings.TrimSpace(altText); alt != "" {
				d.MediaMetadata = postgate.MediaMetadata{"alt_text": alt}
			}

			p, err := d.Post(userID)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store *sqlite.Store) error {
				created, err := store.CreatePost(cmd.Context(), p, targets)
				if err != nil {
					return err
				}
				view, err := loadPostView(cmd, store, userID, created.ID)
				if err != nil {
					return err
				}
				return writePost(cmd.OutOrStdout(), view, asJSON)
			})
		},
	}
	f := cmd.Flags()
	f.Int64VarP(&userID, "user", "u", 0, "User id")
	f.StringVarP(&d.ContentType, "content-type", "c", "", "Content type (TEXT, PHOTO or VIDEO)")
	f.StringVarP(&d.Caption, "caption", "m", "", "Caption text")
	f.StringSliceVar(&d.Hashtags, "hashtag", nil, "Hashtags to append (repeatable)")
	f.StringVar(&d.ImageFile, "image", "", "Path to the image for PHOTO posts")
	f.StringVar(&d.VideoFile, "video", "", "Path to the video for VIDEO posts")
	f.StringVar(&altText, "alt-text", "", "Alternative text describing the media")
	f.Int64SliceVarP(&targets, "target", "t", nil, "Target account ids (repeatable)")
	f.BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	f.SortFlags = false
	_ = cmd.MarkFlagRequired("content-type")
	return cmd
}

func newPostsShowCommand(a *app) *cobra.Command {
	var (
		userID int64
		postID int64
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a post and the status of its targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store *sqlite.Store) error {
				view, err := loadPostView(cmd, store, userID, postID)
				if err != nil {
					return err
				}
				return writePost(cmd.OutOrStdout(), view, asJSON)
			})
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "User id")
	cmd.Flags().Int64VarP(&postID, "post", "p", 0, "Post id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	_ = cmd.MarkFlagRequired("post")
	return cmd
}

func loadPostView(cmd *cobra.Command, store *sqlite.Store, userID, postID int64) (postView, error) {
	p, err := store.GetPost(cmd.Context(), userID, postID)
	if err != nil {
		if errors.Is(err, postgate.ErrNotFound) {
			return postView{}, fmt.Errorf("post %d: %w", postID, err)
		}
		return postView{}, err
	}
	targets, err := store.ListTargets(cmd.Context(), p.ID)
	if err != nil {
		return postView{}, err
	}
	return postView{Post: p, Targets: targets}, nil
}

func writePost(out io.Writer, view postView, asJSON bool) error {
	if asJSON || !isTerminal(out) {
		return writeJSON(out, view)
	}
	if _, err := fmt.Fprintf(out, "post %d (%s): %s\n", view.ID, view.ContentType, view.Message()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out, targetsTable(view.Targets))
	return err
}

func targetsTable(targets []postgate.PostTarget) string {
	rows := make([][]string, 0, len(targets))
	for _, target := range targets {
		rows = append(rows, []string{
			strconv.FormatInt(target.ID, 10),
			strconv.FormatInt(target.SocialAccountID, 10),
			string(target.Status),
			target.LastError,
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TARGET", "ACCOUNT", "STATUS", "LAST ERROR").
		Rows(rows...).
		String()
}

// resolveCaption prefers the flag, then the arguments, then piped stdin.
func resolveCaption(stdin io.Reader, flag string, args []string) (string, error) {
	caption := flag
	if len(args) > 0 {
		if caption != "" {
			return "", errors.New("provide the caption either as arguments or with --caption, not both")
		}
		caption = strings.Join(args, " ")
	}
	if caption != "" {
		return strings.TrimSpace(caption), nil
	}

	if file, ok := stdin.(*os.File); ok {
		info, err := file.Stat()
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if info.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
