package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotificationFixture(t *testing.T) (*NotificationService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewNotificationService(newTestDatabase(t), pub, nopLogger()), pub
}

func notify(t *testing.T, s *NotificationService, userID uint, title string) *Notification {
	t.Helper()
	n := &Notification{UserID: userID, Type: NotificationTypeSystem, Title: title}
	require.NoError(t, s.Create(context.Background(), n))
	return n
}

func TestNotifications_CreateValidates(t *testing.T) {
	s, _ := newNotificationFixture(t)

	err := s.Create(context.Background(), &Notification{UserID: 1, Type: "sms", Title: ""})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "type")
	assert.Contains(t, verr.Fields, "title")
}

func TestNotifications_ReadStateStaysConsistent(t *testing.T) {
	s, pub := newNotificationFixture(t)
	ctx := context.Background()

	n := notify(t, s, 1, "Welcome")
	assert.False(t, n.IsRead)
	assert.Nil(t, n.ReadAt)

	read, err := s.MarkAsRead(ctx, 1, n.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)
	firstRead := *read.ReadAt

	again, err := s.MarkAsRead(ctx, 1, n.ID)
	require.NoError(t, err)
	assert.True(t, again.ReadAt.Equal(firstRead))

	stored, err := s.Get(ctx, 1, n.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRead)
	assert.NotNil(t, stored.ReadAt)

	events := pub.onTopic(UserNotificationsTopic(1))
	require.Len(t, events, 2)
	assert.JSONEq(t, `{"unread_count":1}`, events[0].Payload)
	assert.JSONEq(t, `{"unread_count":0}`, events[1].Payload)
}

func TestNotifications_ScopedToUser(t *testing.T) {
	s, _ := newNotificationFixture(t)
	ctx := context.Background()
	n := notify(t, s, 1, "Mine")

	_, err := s.Get(ctx, 2, n.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.MarkAsRead(ctx, 2, n.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, 2, n.ID), ErrNotFound)
}

func TestNotifications_ListAndCounts(t *testing.T) {
	s, _ := newNotificationFixture(t)
	ctx := context.Background()
	first := notify(t, s, 1, "one")
	notify(t, s, 1, "two")
	notify(t, s, 1, "three")
	notify(t, s, 2, "other user")

	_, err := s.MarkAsRead(ctx, 1, first.ID)
	require.NoError(t, err)

	all, err := s.List(ctx, 1, NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "three", all[0].Title)

	unread, err := s.List(ctx, 1, NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	page, err := s.List(ctx, 1, NotificationFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "two", page[0].Title)

	count, err := s.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	marked, err := s.MarkAllAsRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	count, err = s.UnreadCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotifications_DeleteAll(t *testing.T) {
	s, _ := newNotificationFixture(t)
	ctx := context.Background()
	read := notify(t, s, 1, "read")
	notify(t, s, 1, "unread")
	_, err := s.MarkAsRead(ctx, 1, read.ID)
	require.NoError(t, err)

	removed, err := s.DeleteAll(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = s.DeleteAll(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	left, err := s.List(ctx, 1, NotificationFilter{})
	require.NoError(t, err)
	assert.Empty(t, left)
}
