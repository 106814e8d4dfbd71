package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/realtime"
	"github.com/justsurfingit/jobtrackr/internal/testutil"
)

func TestCalendarRejectsEndBeforeStart(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewCalendarService(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)

	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)
	_, err := svc.Create(ctx, user.ID, &dtos.CalendarEventRequest{Title: "Interview", StartTime: start, EndTime: &before})
	assert.True(t, apperrors.IsValidationError(err))

	missing := uint(9999)
	_, err = svc.Create(ctx, user.ID, &dtos.CalendarEventRequest{Title: "Interview", StartTime: start, JobID: &missing})
	assert.True(t, apperrors.IsValidationError(err))

	// Zero-length events are allowed.
	ev, err := svc.Create(ctx, user.ID, &dtos.CalendarEventRequest{Title: "Call", StartTime: start, EndTime: &start})
	require.NoError(t, err)
	assert.Equal(t, models.EventOther, ev.EventType)
}

func TestCalendarListRangeAndOwnership(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewCalendarService(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)
	other := testutil.CreateUser(t, db, "o@example.com", models.RoleUser)
	job := testutil.CreateJob(t, db, "backend", "Acme")

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var ids []uint
	for i := range 3 {
		ev, err := svc.Create(ctx, user.ID, &dtos.CalendarEventRequest{
			Title: "Round", EventType: models.EventInterview, StartTime: base.AddDate(0, 0, 7*i), JobID: &job.ID,
		})
		require.NoError(t, err)
		ids = append(ids, ev.ID)
	}

	list, err := svc.List(ctx, user.ID, base.AddDate(0, 0, 1), base.AddDate(0, 0, 14))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ids[1], list[0].ID)

	all, err := svc.List(ctx, user.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = svc.Get(ctx, other.ID, ids[0])
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.True(t, apperrors.IsNotFoundError(svc.Delete(ctx, other.ID, ids[0])))

	end := base.Add(time.Hour)
	updated, err := svc.Update(ctx, user.ID, ids[0], &dtos.CalendarEventRequest{Title: "Onsite", StartTime: base, EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, "Onsite", updated.Title)
	assert.Nil(t, updated.JobID)

	require.NoError(t, svc.Delete(ctx, user.ID, ids[0]))
	all, err = svc.List(ctx, user.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNotificationsPublishChanges(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewNotificationService(db, realtime.NewMemoryBroker(), logger.NewNop())
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "u@example.com", models.RoleUser)
	other := testutil.CreateUser(t, db, "o@example.com", models.RoleUser)

	events, release := svc.Subscribe(user.ID)
	defer release()

	n, err := svc.Create(ctx, user.ID, "", "Applied", "You applied to Acme", "/jobs/1")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationInfo, n.Type)

	select {
	case ev := <-events:
		assert.Equal(t, realtime.EventInsert, ev.Type)
		assert.Equal(t, "notifications", ev.Table)
		var got models.Notification
		require.NoError(t, json.Unmarshal(ev.Payload, &got))
		assert.Equal(t, n.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("no insert event")
	}

	_, err = svc.Create(ctx, user.ID, models.NotificationSuccess, "Offer", "", "")
	require.NoError(t, err)
	<-events

	count, err := svc.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, err = svc.MarkRead(ctx, other.ID, n.ID)
	assert.True(t, apperrors.IsNotFoundError(err))

	read, err := svc.MarkRead(ctx, user.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)
	assert.NotNil(t, read.ReadAt)
	ev := <-events
	assert.Equal(t, realtime.EventUpdate, ev.Type)

	unread, err := svc.List(ctx, user.ID, true, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "Offer", unread[0].Title)

	changed, err := svc.MarkAllRead(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)
	<-events

	changed, err = svc.MarkAllRead(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, changed)

	require.NoError(t, svc.Delete(ctx, user.ID, n.ID))
	ev = <-events
	assert.Equal(t, realtime.EventDelete, ev.Type)
	assert.JSONEq(t, `{"id":`+jsonUint(n.ID)+`}`, string(ev.Payload))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}
}

func jsonUint(v uint) string {
	b, _ := json.Marshal(v)
	return string(b)
}
