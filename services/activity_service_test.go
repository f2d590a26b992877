package services

import (
	"context"
	"testing"

	"github.com/activity-point/api-go/models"
	"github.com/activity-point/api-go/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityLifecycleAwardsXP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	guest := f.user(t, "bob")

	created, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
	require.NoError(t, err)
	assert.Equal(t, int64(15), created.XP.XP)
	assert.Nil(t, created.Activity.CompletedAt)
	assert.Len(t, created.Activity.ConfirmationCode, 6)
	assert.Equal(t, int64(1), f.achievementCount(t, creator.ID, AchievementActivityCreator))

	activityID := created.Activity.ID
	_, err = f.activities.Subscribe(ctx, activityID, guest.ID)
	require.NoError(t, err)

	presence, err := f.activities.ConfirmPresence(ctx, activityID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), presence.XP.XP)
	require.NotNil(t, presence.CreatorXP)
	assert.Equal(t, int64(25), presence.CreatorXP.XP)
	assert.NotNil(t, presence.Participant.ConfirmedAt)
	assert.Equal(t, int64(1), f.achievementCount(t, guest.ID, AchievementFirstCheckIn))

	completed, err := f.activities.CompleteActivity(ctx, activityID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(55), completed.XP.XP)
	assert.NotNil(t, completed.Activity.CompletedAt)
	assert.Equal(t, int64(1), f.achievementCount(t, creator.ID, AchievementActivityCompletion))

	_, err = f.activities.ConfirmPresence(ctx, activityID, guest.ID)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)

	a := f.reload(t, creator.ID)
	b := f.reload(t, guest.ID)
	assert.Equal(t, int64(55), a.XP)
	assert.Equal(t, 1, a.Level)
	assert.Equal(t, int64(20), b.XP)
	assert.Equal(t, 1, b.Level)
	assert.Zero(t, f.pendingCount(t))
}

func TestCreateActivityRecordsEvent(t *testing.T) {
	f := newFixture(t)
	creator := f.user(t, "alice")

	created, err := f.activities.CreateActivity(context.Background(), creator.ID, f.activityInput(t))
	require.NoError(t, err)

	var event models.OutboxEvent
	require.NoError(t, f.db.Where("event_type = ?", outbox.EventActivityCreated).First(&event).Error)
	assert.Equal(t, activityKey(created.Activity.ID), event.AggregateID)
	assert.Contains(t, event.Payload, `"creatorId"`)
}

func TestCreateActivityRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")

	in := f.activityInput(t)
	in.Title = "  "
	_, err := f.activities.CreateActivity(ctx, creator.ID, in)
	assert.Equal(t, KindValidation, KindOf(err))

	in = f.activityInput(t)
	in.TypeID = 9999
	_, err = f.activities.CreateActivity(ctx, creator.ID, in)
	assert.ErrorIs(t, err, ErrUnknownActivityType)

	var count int64
	require.NoError(t, f.db.Model(&models.Activity{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.reload(t, creator.ID).XP)
}

func TestConfirmPresenceRequiresSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	stranger := f.user(t, "eve")

	created, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
	require.NoError(t, err)

	_, err = f.activities.ConfirmPresence(ctx, created.Activity.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrNotSubscribed)
	assert.Zero(t, f.reload(t, stranger.ID).XP)
	assert.Equal(t, int64(15), f.reload(t, creator.ID).XP)
}

func TestConfirmPresenceUnknownActivity(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "bob")

	_, err := f.activities.ConfirmPresence(context.Background(), 4242, user.ID)
	assert.ErrorIs(t, err, ErrActivityNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCreatorConfirmingOwnPresenceEarnsBothRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")

	created, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
	require.NoError(t, err)
	_, err = f.activities.Subscribe(ctx, created.Activity.ID, creator.ID)
	require.NoError(t, err)

	presence, err := f.activities.ConfirmPresence(ctx, created.Activity.ID, creator.ID)
	require.NoError(t, err)
	require.NotNil(t, presence.CreatorXP)
	assert.Equal(t, 10, presence.CreatorXP.Delta)
	assert.Equal(t, int64(45), f.reload(t, creator.ID).XP)
}

func TestCompleteActivityByNonCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	other := f.user(t, "mallory")

	created, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
	require.NoError(t, err)

	_, err = f.activities.CompleteActivity(ctx, created.Activity.ID, other.ID)
	assert.ErrorIs(t, err, ErrNotCreator)
	assert.Equal(t, KindPermissionDenied, KindOf(err))

	var activity models.Activity
	require.NoError(t, f.db.First(&activity, created.Activity.ID).Error)
	assert.Nil(t, activity.CompletedAt)
	assert.Zero(t, f.reload(t, other.ID).XP)
}

func TestCompleteActivityTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")

	created, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
	require.NoError(t, err)
	_, err = f.activities.CompleteActivity(ctx, created.Activity.ID, creator.ID)
	require.NoError(t, err)

	_, err = f.activities.CompleteActivity(ctx, created.Activity.ID, creator.ID)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, int64(45), f.reload(t, creator.ID).XP)
}

func TestCheckInWithConfirmationCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	guest := f.user(t, "bob")

	created, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
	require.NoError(t, err)
	code := created.Activity.ConfirmationCode

	_, err = f.activities.CheckIn(ctx, created.Activity.ID, guest.ID, "ZZZZZZ")
	assert.ErrorIs(t, err, ErrInvalidConfirmationCode)

	result, err := f.activities.CheckIn(ctx, created.Activity.ID, guest.ID, " "+code+" ")
	require.NoError(t, err)
	assert.True(t, result.Participant.Approved)
	assert.NotNil(t, result.Participant.ConfirmedAt)
	assert.Equal(t, int64(20), f.reload(t, guest.ID).XP)

	_, err = f.activities.CheckIn(ctx, created.Activity.ID, guest.ID, code)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
}

func TestSubscriptionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	guest := f.user(t, "bob")

	created, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
	require.NoError(t, err)
	activityID := created.Activity.ID

	participant, err := f.activities.Subscribe(ctx, activityID, guest.ID)
	require.NoError(t, err)
	assert.False(t, participant.Approved)

	_, err = f.activities.Subscribe(ctx, activityID, guest.ID)
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	_, err = f.activities.ApproveParticipant(ctx, activityID, guest.ID, guest.ID, true)
	assert.ErrorIs(t, err, ErrNotCreator)

	approved, err := f.activities.ApproveParticipant(ctx, activityID, creator.ID, guest.ID, true)
	require.NoError(t, err)
	assert.True(t, approved.Approved)

	denied, err := f.activities.ApproveParticipant(ctx, activityID, creator.ID, guest.ID, false)
	require.NoError(t, err)
	assert.False(t, denied.Approved)
	var stored models.ActivityParticipant
	require.NoError(t, f.db.Where("activity_id = ? AND user_id = ?", activityID, guest.ID).First(&stored).Error)
	assert.False(t, stored.Approved)

	participants, err := f.activities.ListParticipants(ctx, activityID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, guest.ID, participants[0].UserID)
	require.NotNil(t, participants[0].User)
	assert.Equal(t, "bob", participants[0].User.Name)
	assert.Empty(t, participants[0].User.Email)

	fetched, err := f.activities.GetActivity(ctx, activityID, guest.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Creator)
	assert.Equal(t, "alice", fetched.Creator.Name)
	assert.Empty(t, fetched.Creator.Email)

	require.NoError(t, f.activities.Unsubscribe(ctx, activityID, guest.ID))
	assert.ErrorIs(t, f.activities.Unsubscribe(ctx, activityID, guest.ID), ErrNotSubscribed)
}

func TestConfirmedParticipantCannotUnsubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	guest := f.user(t, "bob")

	created, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
	require.NoError(t, err)
	_, err = f.activities.Subscribe(ctx, created.Activity.ID, guest.ID)
	require.NoError(t, err)
	_, err = f.activities.ConfirmPresence(ctx, created.Activity.ID, guest.ID)
	require.NoError(t, err)

	err = f.activities.Unsubscribe(ctx, created.Activity.ID, guest.ID)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
}

func TestConfirmationCodeHiddenFromOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	guest := f.user(t, "bob")

	created, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
	require.NoError(t, err)

	own, err := f.activities.GetActivity(ctx, created.Activity.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Activity.ConfirmationCode, own.ConfirmationCode)

	seen, err := f.activities.GetActivity(ctx, created.Activity.ID, guest.ID)
	require.NoError(t, err)
	assert.Empty(t, seen.ConfirmationCode)
	require.NotNil(t, seen.Type)
	assert.Equal(t, "Sports", seen.Type.Name)
}

func TestUpdateAndDeleteRequireCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	other := f.user(t, "mallory")

	created, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
	require.NoError(t, err)

	in := f.activityInput(t)
	in.Title = "Saturday football"
	_, err = f.activities.UpdateActivity(ctx, created.Activity.ID, other.ID, in)
	assert.ErrorIs(t, err, ErrNotCreator)

	updated, err := f.activities.UpdateActivity(ctx, created.Activity.ID, creator.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Saturday football", updated.Title)

	assert.ErrorIs(t, f.activities.DeleteActivity(ctx, created.Activity.ID, other.ID), ErrNotCreator)
	require.NoError(t, f.activities.DeleteActivity(ctx, created.Activity.ID, creator.ID))

	_, err = f.activities.GetActivity(ctx, created.Activity.ID, creator.ID)
	assert.ErrorIs(t, err, ErrActivityNotFound)
}

func TestListActivities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	guest := f.user(t, "bob")

	for i := 0; i < 3; i++ {
		_, err := f.activities.CreateActivity(ctx, creator.ID, f.activityInput(t))
		require.NoError(t, err)
	}
	study := f.activityInput(t)
	study.TypeID = f.typeID(t, "Study")
	joined, err := f.activities.CreateActivity(ctx, creator.ID, study)
	require.NoError(t, err)
	_, err = f.activities.Subscribe(ctx, joined.Activity.ID, guest.ID)
	require.NoError(t, err)

	page, err := f.activities.ListActivities(ctx, guest.ID, ListQuery{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Len(t, page.Activities, 2)
	for _, a := range page.Activities {
		assert.Empty(t, a.ConfirmationCode)
	}

	filtered, err := f.activities.ListActivities(ctx, guest.ID, ListQuery{TypeID: study.TypeID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), filtered.Total)

	_, err = f.activities.ListActivities(ctx, guest.ID, ListQuery{OrderBy: "creator"})
	assert.Equal(t, KindValidation, KindOf(err))

	mine, err := f.activities.ListByCreator(ctx, creator.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), mine.Total)

	participating, err := f.activities.ListByParticipant(ctx, guest.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, participating.Activities, 1)
	assert.Equal(t, joined.Activity.ID, participating.Activities[0].ID)

	all, err := f.activities.ListAllActivities(ctx, guest.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
