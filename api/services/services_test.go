package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tourist-overwatch/db"
	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestDB(t *testing.T) *db.Service {
	t.Helper()
	cfg := db.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "overwatch.db")
	svc, err := db.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func newTestUserService(t *testing.T) *UserService {
	t.Helper()
	return NewUserService(newTestDB(t).GetDB(), NewTokenService("test-secret", time.Hour), bcrypt.MinCost)
}

func TestRegisterAndLogin(t *testing.T) {
	users := newTestUserService(t)

	user, err := users.Register(&ontology.CredentialsRequest{Username: " alice ", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	resp, err := users.Login(&ontology.CredentialsRequest{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.Username)
	assert.NotEmpty(t, resp.Token)

	username, err := users.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestRegisterDuplicate(t *testing.T) {
	users := newTestUserService(t)

	_, err := users.Register(&ontology.CredentialsRequest{Username: "bob", Password: "password1"})
	require.NoError(t, err)

	_, err = users.Register(&ontology.CredentialsRequest{Username: "bob", Password: "password2"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterValidation(t *testing.T) {
	users := newTestUserService(t)

	_, err := users.Register(&ontology.CredentialsRequest{Username: "  ", Password: "x"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = users.Register(&ontology.CredentialsRequest{Username: "carol"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	tests := []struct {
		name     string
		username string
		password string
		ok       bool
	}{
		{"short password", "carol", "x", false},
		{"password at minimum", "carol", "123456", true},
		{"short username", "ab", "long-enough", false},
		{"long username", strings.Repeat("u", MaxUsernameLength+1), "long-enough", false},
		{"username at maximum", strings.Repeat("u", MaxUsernameLength), "long-enough", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Register(&ontology.CredentialsRequest{Username: tt.username, Password: tt.password})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, shared.ErrValidation)
			}
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	users := newTestUserService(t)
	_, err := users.Register(&ontology.CredentialsRequest{Username: "dave", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = users.Login(&ontology.CredentialsRequest{Username: "dave", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = users.Login(&ontology.CredentialsRequest{Username: "nobody", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenVerify(t *testing.T) {
	tokens := NewTokenService("secret-a", time.Hour)
	token, expiresAt, err := tokens.Issue(&ontology.User{UserID: "u1", Username: "erin"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenService("secret-b", time.Hour).Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenService("secret-a", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAlertArchive(t *testing.T) {
	archive := NewAlertArchiveService(newTestDB(t).GetDB())
	base := time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC)

	first := ontology.SafetyAlert{AlertID: "a1", Type: ontology.AlertSOS, TouristID: "T1", AssociatedUser: "alice", Message: "sos", Lat: 1, Lon: 2, Timestamp: base}
	second := ontology.SafetyAlert{AlertID: "a2", Type: ontology.AlertAnomaly, TouristID: "T2", AssociatedUser: ontology.UnknownUser, Message: "anomaly", Timestamp: base.Add(time.Minute)}

	require.NoError(t, archive.Archive(first))
	require.NoError(t, archive.Archive(second))
	require.NoError(t, archive.Archive(first), "redelivery is ignored")

	alerts, err := archive.Recent(0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a2", alerts[0].AlertID, "newest first")
	assert.Equal(t, ontology.AlertSOS, alerts[1].Type)
	assert.Equal(t, "alice", alerts[1].AssociatedUser)
	assert.Equal(t, 2.0, alerts[1].Lon)
	assert.True(t, alerts[1].Timestamp.Equal(base))

	alerts, err = archive.Recent(1)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

type fakeStream struct {
	mu    sync.Mutex
	msgs  map[string][]byte
	ids   []string
	fail  bool
	calls int
}

func (f *fakeStream) PublishWithDedup(subject string, data []byte, msgID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("stream unavailable")
	}
	if f.msgs == nil {
		f.msgs = make(map[string][]byte)
	}
	f.msgs[subject] = data
	f.ids = append(f.ids, msgID)
	return nil
}

func TestEventServicePublishesAlert(t *testing.T) {
	stream := &fakeStream{}
	events := &EventService{nats: stream}

	alert := ontology.SafetyAlert{AlertID: "alert-1", Type: ontology.AlertSOS, TouristID: "T.1", Timestamp: time.Now()}
	events.PublishAlert(alert)

	data, ok := stream.msgs["overwatch.alerts.sos.T_1"]
	require.True(t, ok, "subject tokens are sanitised")
	assert.Equal(t, []string{"alert-1"}, stream.ids, "alert id is the dedup id")

	var event shared.Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, shared.EventTypeAlert, event.Type)
	assert.Equal(t, shared.SourceTrackingEngine, event.Source)
}

func TestEventServicePublishesTelemetryAndSystem(t *testing.T) {
	stream := &fakeStream{}
	events := &EventService{nats: stream}

	events.PublishTelemetry(ontology.LogEntry{TouristID: "T1", Status: ontology.StatusNormal, Timestamp: time.Now()})
	events.PublishSystemEvent(shared.EventTypeReset, map[string]interface{}{"tourists": 3})

	assert.Contains(t, stream.msgs, "overwatch.telemetry.T1")
	assert.Contains(t, stream.msgs, "overwatch.system.simulation_reset")
}

func TestEventServiceToleratesFailures(t *testing.T) {
	stream := &fakeStream{fail: true}
	events := &EventService{nats: stream}

	assert.NotPanics(t, func() {
		events.PublishAlert(ontology.SafetyAlert{AlertID: "x", Type: ontology.AlertSOS, TouristID: "T1"})
	})
	assert.Equal(t, 1, stream.calls)

	nilEvents := &EventService{}
	assert.NotPanics(t, func() {
		nilEvents.PublishSystemEvent(shared.EventTypeAlertsClear, nil)
	})
}

func TestAlertArchiveRetention(t *testing.T) {
	archive := NewAlertArchiveService(newTestDB(t).GetDB())
	archive.retain = 2
	base := time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, archive.Archive(ontology.SafetyAlert{
			AlertID:   fmt.Sprintf("a%d", i),
			Type:      ontology.AlertSOS,
			TouristID: "T1",
			Message:   "sos",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	alerts, err := archive.Recent(MaxHistoryLimit)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a3", alerts[0].AlertID)
	assert.Equal(t, "a2", alerts[1].AlertID)
}

func TestAlertArchiveOrdersBySubSecondTime(t *testing.T) {
	archive := NewAlertArchiveService(newTestDB(t).GetDB())
	onSecond := time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC)

	older := ontology.SafetyAlert{AlertID: "older", Type: ontology.AlertSOS, TouristID: "T1", Message: "sos", Timestamp: onSecond}
	newer := ontology.SafetyAlert{AlertID: "newer", Type: ontology.AlertSOS, TouristID: "T1", Message: "sos", Timestamp: onSecond.Add(500 * time.Millisecond)}
	newest := ontology.SafetyAlert{AlertID: "newest", Type: ontology.AlertSOS, TouristID: "T1", Message: "sos", Timestamp: onSecond.Add(500*time.Millisecond + 10*time.Microsecond)}

	require.NoError(t, archive.Archive(older))
	require.NoError(t, archive.Archive(newest))
	require.NoError(t, archive.Archive(newer))

	alerts, err := archive.Recent(10)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, []string{"newest", "newer", "older"},
		[]string{alerts[0].AlertID, alerts[1].AlertID, alerts[2].AlertID})
	assert.True(t, alerts[2].Timestamp.Equal(onSecond))
	assert.True(t, alerts[0].Timestamp.Equal(newest.Timestamp))
}

func TestAlertArchiveRetentionKeepsNewestAcrossWholeSeconds(t *testing.T) {
	archive := NewAlertArchiveService(newTestDB(t).GetDB())
	archive.retain = 1
	onSecond := time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC)

	require.NoError(t, archive.Archive(ontology.SafetyAlert{AlertID: "newer", Type: ontology.AlertSOS, TouristID: "T1", Message: "sos", Timestamp: onSecond.Add(500 * time.Millisecond)}))
	require.NoError(t, archive.Archive(ontology.SafetyAlert{AlertID: "older", Type: ontology.AlertSOS, TouristID: "T1", Message: "sos", Timestamp: onSecond}))

	alerts, err := archive.Recent(10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "newer", alerts[0].AlertID)
}

type orderedStream struct {
	mu       sync.Mutex
	subjects []string
	entered  chan struct{}
	release  chan struct{}
}

func (o *orderedStream) PublishWithDedup(subject string, _ []byte, _ string) error {
	if o.entered != nil {
		o.entered <- struct{}{}
		<-o.release
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subjects = append(o.subjects, subject)
	return nil
}

func TestEventServicePublishesInOrderAndDrainsOnClose(t *testing.T) {
	stream := &orderedStream{}
	events := NewEventService(stream)

	for i := 0; i < 50; i++ {
		events.PublishTelemetry(ontology.LogEntry{TouristID: fmt.Sprintf("T%d", i), Timestamp: time.Now()})
	}
	events.Close()
	events.Close()

	require.Len(t, stream.subjects, 50)
	for i, subject := range stream.subjects {
		assert.Equal(t, fmt.Sprintf("overwatch.telemetry.T%d", i), subject)
	}

	assert.NotPanics(t, func() {
		events.PublishAlert(ontology.SafetyAlert{AlertID: "late", Type: ontology.AlertSOS, TouristID: "T1"})
	})
	assert.Len(t, stream.subjects, 50, "events after Close are dropped")
}

func TestEventServiceDropsWhenQueueFull(t *testing.T) {
	stream := &orderedStream{entered: make(chan struct{}), release: make(chan struct{})}
	events := newEventService(stream, 1)

	events.PublishSystemEvent("first", nil)
	<-stream.entered // the publisher goroutine now holds "first"

	events.PublishSystemEvent("second", nil) // fills the queue
	events.PublishSystemEvent("third", nil)  // dropped

	go func() {
		for range stream.entered {
		}
	}()
	close(stream.release)
	events.Close()
	close(stream.entered)

	assert.Equal(t, []string{"overwatch.system.first", "overwatch.system.second"}, stream.subjects)
}
