package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blacktop/postgate/internal/availability"
	"github.com/blacktop/postgate/internal/postgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "postgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postgate.db")
	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestAccountsRoundTripInIDOrder(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)

	yt, err := store.CreateAccount(ctx, postgate.SocialAccount{UserID: 1, Platform: postgate.PlatformYouTube, DisplayName: "YT"})
	require.NoError(t, err)
	ig, err := store.CreateAccount(ctx, postgate.SocialAccount{
		UserID:           1,
		Platform:         postgate.PlatformInstagram,
		DisplayName:      "IG Pro",
		AccountType:      postgate.AccountInstagramProfessional,
		PermissionsValid: true,
	})
	require.NoError(t, err)
	_, err = store.CreateAccount(ctx, postgate.SocialAccount{UserID: 2, Platform: postgate.PlatformX, DisplayName: "other"})
	require.NoError(t, err)

	accounts, err := store.ListAccountsByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, yt.ID, accounts[0].ID)
	assert.Equal(t, ig.ID, accounts[1].ID)
	assert.Equal(t, postgate.AccountInstagramProfessional, accounts[1].AccountType)
	assert.True(t, accounts[1].PermissionsValid)
	assert.False(t, accounts[1].XMediaUploadEnabled)

	got, err := store.GetAccount(ctx, ig.ID)
	require.NoError(t, err)
	assert.Equal(t, ig, got)

	_, err = store.GetAccount(ctx, 999)
	assert.ErrorIs(t, err, postgate.ErrNotFound)

	empty, err := store.ListAccountsByUser(ctx, 77)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestCreateAccountValidates(t *testing.T) {
	store := openTempStore(t)
	_, err := store.CreateAccount(context.Background(), postgate.SocialAccount{UserID: 1, Platform: "myspace", DisplayName: "x"})
	assert.Error(t, err)
	_, err = store.CreateAccount(context.Background(), postgate.SocialAccount{UserID: 1, Platform: postgate.PlatformX})
	assert.Error(t, err)
}

func TestPostsAndTargets(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)

	mine, err := store.CreateAccount(ctx, postgate.SocialAccount{UserID: 1, Platform: postgate.PlatformX, DisplayName: "X"})
	require.NoError(t, err)
	theirs, err := store.CreateAccount(ctx, postgate.SocialAccount{UserID: 2, Platform: postgate.PlatformX, DisplayName: "X2"})
	require.NoError(t, err)

	post, err := store.CreatePost(ctx, postgate.Post{
		UserID:        1,
		ContentType:   postgate.ContentPhoto,
		Caption:       "Test",
		Hashtags:      []string{"#tag"},
		ImageFile:     "photo.jpg",
		MediaMetadata: postgate.MediaMetadata{"width": 1080.0},
	}, []int64{mine.ID, theirs.ID, mine.ID, 12345})
	require.NoError(t, err)

	got, err := store.GetPost(ctx, 1, post.ID)
	require.NoError(t, err)
	assert.Equal(t, postgate.ContentPhoto, got.ContentType)
	assert.Equal(t, []string{"#tag"}, got.Hashtags)
	assert.Equal(t, 1080.0, got.MediaMetadata["width"])

	_, err = store.GetPost(ctx, 2, post.ID)
	assert.ErrorIs(t, err, postgate.ErrNotFound)

	targets, err := store.ListTargets(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, mine.ID, targets[0].SocialAccountID)
	assert.Equal(t, postgate.StatusSelected, targets[0].Status)

	require.NoError(t, store.UpdateTargetStatus(ctx, targets[0].ID, postgate.StatusRejected, "nope"))
	target, err := store.GetTarget(ctx, targets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, postgate.StatusRejected, target.Status)
	assert.Equal(t, "nope", target.LastError)

	assert.ErrorIs(t, store.UpdateTargetStatus(ctx, 4040, postgate.StatusQueued, ""), postgate.ErrNotFound)
}

func TestEvaluatorOverStore(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	_, err := store.CreateAccount(ctx, postgate.SocialAccount{UserID: 3, Platform: postgate.PlatformYouTube, DisplayName: "YT"})
	require.NoError(t, err)

	report, err := availability.NewEvaluator(store).Evaluate(ctx, 3, postgate.ContentVideo, nil)
	require.NoError(t, err)
	youtube, ok := availability.Platform(report, postgate.PlatformYouTube)
	require.True(t, ok)
	assert.True(t, youtube.Available)
}

func TestListAccountsPropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectQuery("SELECT .* FROM social_accounts WHERE user_id = \\? ORDER BY id").
		WithArgs(int64(5)).
		WillReturnError(boom)

	_, err = availability.NewEvaluator(New(db)).Evaluate(context.Background(), 5, postgate.ContentText, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTargetStatusPropagatesExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("readonly database")
	mock.ExpectExec("UPDATE post_targets SET status").
		WithArgs("queued", "", int64(8)).
		WillReturnError(boom)

	err = New(db).UpdateTargetStatus(context.Background(), 8, postgate.StatusQueued, "")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
