package services

import (
	"context"
	"testing"

	"github.com/activity-point/api-go/models"
	"github.com/activity-point/api-go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeAvatarGrantsProfileCustomization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, "ada")

	first, err := f.users.ChangeAvatar(ctx, user.ID, avatarUpload("me.png"))
	require.NoError(t, err)
	firstKey, ok := f.store.KeyFromURL(first.Avatar)
	require.True(t, ok)
	assert.True(t, f.store.has(firstKey))

	second, err := f.users.ChangeAvatar(ctx, user.ID, avatarUpload("me-again.png"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Avatar, second.Avatar)
	assert.False(t, f.store.has(firstKey), "previous avatar should be removed")

	assert.Equal(t, second.Avatar, f.reload(t, user.ID).Avatar)
	assert.Equal(t, int64(1), f.achievementCount(t, user.ID, AchievementProfileCustomization))
}

func TestChangeAvatarKeepsSharedDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const defaultURL = "https://cdn.test/default.png"
	f.store.objects["default.png"] = []byte("default")

	ada := f.user(t, "ada")
	bob := f.user(t, "bob")
	require.NoError(t, f.db.Model(&models.User{}).Where("id IN ?", []uint{ada.ID, bob.ID}).Update("avatar", defaultURL).Error)

	_, err := f.users.ChangeAvatar(ctx, ada.ID, avatarUpload("me.png"))
	require.NoError(t, err)

	assert.True(t, f.store.has("default.png"))
	assert.Equal(t, defaultURL, f.reload(t, bob.ID).Avatar)
}

func TestChangeAvatarRejectsUnsupportedType(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "grace")

	upload := avatarUpload("notes.txt")
	upload.ContentType = "text/plain"
	_, err := f.users.ChangeAvatar(context.Background(), user.ID, upload)
	assert.Equal(t, KindValidation, KindOf(err))

	upload = avatarUpload("huge.png")
	upload.Size = storage.MaxAvatarSize + 1
	_, err = f.users.ChangeAvatar(context.Background(), user.ID, upload)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, f.achievementCount(t, user.ID, AchievementProfileCustomization))
}

func TestChangeAvatarStorageFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "linus")
	f.store.failPut = true

	_, err := f.users.ChangeAvatar(context.Background(), user.ID, avatarUpload("me.png"))
	require.Error(t, err)
	assert.Equal(t, KindStorage, KindOf(err))

	var typed *Error
	require.ErrorAs(t, err, &typed)
	assert.True(t, typed.Retryable())
	assert.Zero(t, f.achievementCount(t, user.ID, AchievementProfileCustomization))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")
	grace := f.user(t, "grace")

	name := "Ada Lovelace"
	updated, err := f.users.UpdateProfile(ctx, ada.ID, ada.ID, UpdateUserInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	_, err = f.users.UpdateProfile(ctx, grace.ID, ada.ID, UpdateUserInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	taken := "GRACE@example.com"
	_, err = f.users.UpdateProfile(ctx, ada.ID, ada.ID, UpdateUserInput{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	bad := "not-an-email"
	_, err = f.users.UpdateProfile(ctx, ada.ID, ada.ID, UpdateUserInput{Email: &bad})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")
	grace := f.user(t, "grace")

	assert.ErrorIs(t, f.users.DeleteUser(ctx, grace.ID, ada.ID), ErrForbidden)
	require.NoError(t, f.users.DeleteUser(ctx, ada.ID, ada.ID))

	_, err := f.users.GetProfile(ctx, ada.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDefinePreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, "ada")
	sports := f.typeID(t, "Sports")
	study := f.typeID(t, "Study")

	prefs, err := f.users.DefinePreferences(ctx, user.ID, []uint{sports, study})
	require.NoError(t, err)
	assert.Len(t, prefs, 2)

	prefs, err = f.users.DefinePreferences(ctx, user.ID, []uint{sports})
	require.NoError(t, err)
	assert.Len(t, prefs, 2)

	_, err = f.users.DefinePreferences(ctx, user.ID, []uint{9999})
	assert.ErrorIs(t, err, ErrUnknownActivityType)

	_, err = f.users.DefinePreferences(ctx, user.ID, nil)
	assert.Equal(t, KindValidation, KindOf(err))

	profile, err := f.users.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, profile.Preferences, 2)
}

func TestLeaderboardRanksByXP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "ada")
	grace := f.user(t, "grace")
	linus := f.user(t, "linus")

	_, err := f.ledger.ApplyXP(ctx, grace.ID, 300)
	require.NoError(t, err)
	_, err = f.ledger.ApplyXP(ctx, ada.ID, 120)
	require.NoError(t, err)
	_, err = f.ledger.ApplyXP(ctx, linus.ID, 120)
	require.NoError(t, err)

	board, err := f.users.Leaderboard(ctx, linus.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, board.Entries, 3)
	assert.Equal(t, int64(3), board.Total)
	assert.Equal(t, grace.ID, board.Entries[0].ID)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, 2, board.Entries[1].Rank)
	assert.Equal(t, 2, board.Entries[2].Rank)
	assert.Equal(t, 2, board.UserRank)
}
