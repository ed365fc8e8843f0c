// Package sqlite persists accounts, posts and post targets in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/blacktop/postgate/internal/postgate"
	"github.com/blacktop/postgate/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed storage collaborator.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// New wraps an existing handle without running migrations.
func New(sqlDB *sql.DB) *Store {
	return &Store{sqlDB: sqlDB}
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const accountColumns = `id, user_id, platform, display_name, account_type, permissions_valid,
	tiktok_prerequisites_met, tiktok_photo_post_enabled, linkedin_access_granted,
	x_media_upload_enabled, x_api_tier, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (postgate.SocialAccount, error) {
	var (
		a         postgate.SocialAccount
		platform  string
		acctType  string
		createdAt int64
	)
	if err := row.Scan(
		&a.ID, &a.UserID, &platform, &a.DisplayName, &acctType, &a.PermissionsValid,
		&a.TikTokPrerequisitesMet, &a.TikTokPhotoPostEnabled, &a.LinkedInAccessGranted,
		&a.XMediaUploadEnabled, &a.XAPITier, &createdAt,
	); err != nil {
		return postgate.SocialAccount{}, err
	}
	a.Platform = postgate.Platform(platform)
	a.AccountType = postgate.AccountType(acctType)
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}

// CreateAccount inserts a connected account and returns it with its id.
func (s *Store) CreateAccount(ctx context.Context, a postgate.SocialAccount) (postgate.SocialAccount, error) {
	if a.UserID <= 0 {
		return postgate.SocialAccount{}, fmt.Errorf("user id is required")
	}
	if _, err := postgate.ParsePlatform(string(a.Platform)); err != nil {
		return postgate.SocialAccount{}, err
	}
	a.DisplayName = strings.TrimSpace(a.DisplayName)
	if a.DisplayName == "" {
		return postgate.SocialAccount{}, fmt.Errorf("display name is required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO social_accounts (
		   user_id, platform, display_name, account_type, permissions_valid,
		   tiktok_prerequisites_met, tiktok_photo_post_enabled, linkedin_access_granted,
		   x_media_upload_enabled, x_api_tier, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, string(a.Platform), a.DisplayName, string(a.AccountType), a.PermissionsValid,
		a.TikTokPrerequisitesMet, a.TikTokPhotoPostEnabled, a.LinkedInAccessGranted,
		a.XMediaUploadEnabled, a.XAPITier, toMillis(a.CreatedAt),
	)
	if err != nil {
		return postgate.SocialAccount{}, fmt.Errorf("insert account: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return postgate.SocialAccount{}, fmt.Errorf("account id: %w", err)
	}
	a.CreatedAt = fromMillis(toMillis(a.CreatedAt))
	return a, nil
}

// GetAccount returns a single account by id.
func (s *Store) GetAccount(ctx context.Context, id int64) (postgate.SocialAccount, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM social_accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return postgate.SocialAccount{}, fmt.Errorf("account %d: %w", id, postgate.ErrNotFound)
	}
	if err != nil {
		return postgate.SocialAccount{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

// ListAccountsByUser returns the user's accounts in id order.
func (s *Store) ListAccountsByUser(ctx context.Context, userID int64) ([]postgate.SocialAccount, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+accountColumns+` FROM social_accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []postgate.SocialAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// CreatePost inserts a post and a selected target for every listed account
// owned by the post's user. Unknown or foreign account ids are skipped.
func (s *Store) CreatePost(ctx context.Context, p postgate.Post, targetAccountIDs []int64) (postgate.Post, error) {
	if p.UserID <= 0 {
		return postgate.Post{}, fmt.Errorf("user id is required")
	}
	if p.Hashtags == nil {
		p.Hashtags = []string{}
	}
	if p.MediaMetadata == nil {
		p.MediaMetadata = postgate.MediaMetadata{}
	}
	hashtags, err := json.Marshal(p.Hashtags)
	if err != nil {
		return postgate.Post{}, fmt.Errorf("encode hashtags: %w", err)
	}
	meta, err := json.Marshal(p.MediaMetadata)
	if err != nil {
		return postgate.Post{}, fmt.Errorf("encode media metadata: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	now := toMillis(p.CreatedAt)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return postgate.Post{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO posts (user_id, content_type, caption, hashtags, image_file, video_file, media_metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, string(p.ContentType), p.Caption, string(hashtags), p.ImageFile, p.VideoFile, string(meta), now,
	)
	if err != nil {
		return postgate.Post{}, fmt.Errorf("insert post: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return postgate.Post{}, fmt.Errorf("post id: %w", err)
	}

	for _, accountID := range targetAccountIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO post_targets (post_id, social_account_id, status, last_error, created_at)
			 SELECT ?, id, ?, '', ? FROM social_accounts WHERE id = ? AND user_id = ?`,
			p.ID, string(postgate.StatusSelected), now, accountID, p.UserID,
		); err != nil {
			return postgate.Post{}, fmt.Errorf("insert target for account %d: %w", accountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return postgate.Post{}, fmt.Errorf("commit: %w", err)
	}
	p.CreatedAt = fromMillis(now)
	return p, nil
}

// GetPost returns the post if it exists and belongs to userID.
func (s *Store) GetPost(ctx context.Context, userID, postID int64) (postgate.Post, error) {
	var (
		p         postgate.Post
		ct        string
		hashtags  string
		meta      string
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, user_id, content_type, caption, hashtags, image_file, video_file, media_metadata, created_at
		 FROM posts WHERE id = ? AND user_id = ?`,
		postID, userID,
	).Scan(&p.ID, &p.UserID, &ct, &p.Caption, &hashtags, &p.ImageFile, &p.VideoFile, &meta, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return postgate.Post{}, fmt.Errorf("post %d: %w", postID, postgate.ErrNotFound)
	}
	if err != nil {
		return postgate.Post{}, fmt.Errorf("get post %d: %w", postID, err)
	}
	p.ContentType = postgate.ContentType(ct)
	p.CreatedAt = fromMillis(createdAt)
	if err := json.Unmarshal([]byte(hashtags), &p.Hashtags); err != nil {
		return postgate.Post{}, fmt.Errorf("decode hashtags: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &p.MediaMetadata); err != nil {
		return postgate.Post{}, fmt.Errorf("decode media metadata: %w", err)
	}
	return p, nil
}

const targetColumns = `id, post_id, social_account_id, status, last_error, created_at`

func scanTarget(row scanner) (postgate.PostTarget, error) {
	var (
		t         postgate.PostTarget
		status    string
		createdAt int64
	)
	if err := row.Scan(&t.ID, &t.PostID, &t.SocialAccountID, &status, &t.LastError, &createdAt); err != nil {
		return postgate.PostTarget{}, err
	}
	t.Status = postgate.TargetStatus(status)
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}

// GetTarget returns a post target by id.
func (s *Store) GetTarget(ctx context.Context, id int64) (postgate.PostTarget, error) {
	t, err := scanTarget(s.sqlDB.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM post_targets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return postgate.PostTarget{}, fmt.Errorf("target %d: %w", id, postgate.ErrNotFound)
	}
	if err != nil {
		return postgate.PostTarget{}, fmt.Errorf("get target %d: %w", id, err)
	}
	return t, nil
}

// ListTargets returns the post's targets in id order.
func (s *Store) ListTargets(ctx context.Context, postID int64) ([]postgate.PostTarget, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+targetColumns+` FROM post_targets WHERE post_id = ? ORDER BY id`, postID)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	targets := []postgate.PostTarget{}
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate targets: %w", err)
	}
	return targets, nil
}

// UpdateTargetStatus sets a target's status and last error.
func (s *Store) UpdateTargetStatus(ctx context.Context, id int64, status postgate.TargetStatus, lastError string) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE post_targets SET status = ?, last_error = ? WHERE id = ?`,
		string(status), lastError, id,
	)
	if err != nil {
		return fmt.Errorf("update target %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update target %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("target %d: %w", id, postgate.ErrNotFound)
	}
	return nil
}
