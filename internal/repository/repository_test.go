package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"convoydesk/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.New(gormsqlite.Config{DriverName: "sqlite", DSN: dsn}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func sampleBooking(guildID string, meetup time.Time, status domain.BookingStatus) *domain.Booking {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	return &domain.Booking{
		GuildID:        guildID,
		RequesterID:    "u1",
		Organization:   "Night Haulers",
		EventDate:      meetup.Format("2006-01-02"),
		MeetupTime:     meetup.Format("15:04"),
		DepartureTime:  meetup.Add(45 * time.Minute).Format("15:04"),
		Timezone:       "UTC",
		Server:         "Event Server",
		StartLocation:  "Berlin",
		Destination:    "Prague",
		RequiredAddons: "None",
		EventLink:      "https://example.com/e/1",
		MeetupAt:       meetup,
		DepartureAt:    meetup.Add(45 * time.Minute),
		Status:         status,
		History:        []domain.StatusChange{{Status: status, At: now, By: "u1"}},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

var meetup = time.Date(2026, 1, 20, 18, 0, 0, 0, time.UTC)

func TestBookingRepository_CreateAssignsPerGuildIDs(t *testing.T) {
	repo := NewBookingRepository(setupDB(t))
	ctx := context.Background()

	a := sampleBooking("g1", meetup, domain.StatusRequested)
	b := sampleBooking("g1", meetup.Add(time.Hour), domain.StatusRequested)
	c := sampleBooking("g2", meetup, domain.StatusRequested)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))
	require.NoError(t, repo.Create(ctx, c))

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, int64(1), c.ID)
}

func TestBookingRepository_RoundTrip(t *testing.T) {
	repo := NewBookingRepository(setupDB(t))
	ctx := context.Background()

	b := sampleBooking("g1", meetup, domain.StatusReview)
	b.Notes = "bring snacks"
	require.NoError(t, repo.Create(ctx, b))

	got, err := repo.GetByID(ctx, "g1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, "bring snacks", got.Notes)
	assert.Equal(t, meetup, got.MeetupAt)
	assert.Equal(t, b.History, got.History)
	assert.False(t, got.Materialized())

	_, err = repo.GetByID(ctx, "g2", b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingRepository_UpdateStatusAppendsHistory(t *testing.T) {
	repo := NewBookingRepository(setupDB(t))
	ctx := context.Background()

	b := sampleBooking("g1", meetup, domain.StatusReview)
	require.NoError(t, repo.Create(ctx, b))

	b.Status = domain.StatusDeclined
	b.DeclineReason = "Staff unavailable"
	b.DeclineReasonSource = domain.ReasonStaff
	b.History = append(b.History, domain.StatusChange{Status: domain.StatusDeclined, At: meetup, By: "staff"})
	require.NoError(t, repo.UpdateStatus(ctx, b))

	got, err := repo.GetByID(ctx, "g1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, got.Status)
	assert.Equal(t, "Staff unavailable", got.DeclineReason)
	assert.Equal(t, domain.ReasonStaff, got.DeclineReasonSource)
	require.Len(t, got.History, 2)
	assert.Equal(t, "staff", got.History[1].By)
}

func TestBookingRepository_MarkNotificationSent(t *testing.T) {
	repo := NewBookingRepository(setupDB(t))
	ctx := context.Background()

	b := sampleBooking("g1", meetup, domain.StatusAccepted)
	require.NoError(t, repo.Create(ctx, b))

	first, err := repo.MarkNotificationSent(ctx, "g1", b.ID, domain.NoticeAcceptance, "staff", meetup)
	require.NoError(t, err)
	second, err := repo.MarkNotificationSent(ctx, "g1", b.ID, domain.NoticeAcceptance, "other", meetup)
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	got, err := repo.GetByID(ctx, "g1", b.ID)
	require.NoError(t, err)
	assert.True(t, got.AcceptanceSent())
	assert.Equal(t, "staff", got.AcceptanceSentBy)
	assert.Nil(t, got.TranscriptSentAt)

	_, err = repo.MarkNotificationSent(ctx, "g1", 404, domain.NoticeAcceptance, "staff", meetup)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingRepository_Listings(t *testing.T) {
	repo := NewBookingRepository(setupDB(t))
	ctx := context.Background()

	accepted := sampleBooking("g1", meetup, domain.StatusAccepted)
	declined := sampleBooking("g1", meetup, domain.StatusDeclined)
	pending := sampleBooking("g1", meetup.Add(-time.Hour), domain.StatusRequested)
	for _, b := range []*domain.Booking{accepted, declined, pending} {
		require.NoError(t, repo.Create(ctx, b))
	}
	require.NoError(t, repo.SetChannelRefs(ctx, "g1", accepted.ID, "chan-1", "cat-1"))

	blocking, err := repo.ListBlocking(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, blocking, 2)
	assert.Equal(t, pending.ID, blocking[0].ID)

	due, err := repo.ListAcceptedMaterialized(ctx, meetup.Add(-time.Minute), meetup.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "chan-1", due[0].ChannelID)

	byChannel, err := repo.ListByChannelIDs(ctx, "g1", []string{"chan-1", "chan-9"})
	require.NoError(t, err)
	assert.Len(t, byChannel, 1)
}

func TestBookingRepository_DeleteDropsReminderLog(t *testing.T) {
	db := setupDB(t)
	repo := NewBookingRepository(db)
	reminders := NewReminderRepository(db)
	ctx := context.Background()

	b := sampleBooking("g1", meetup, domain.StatusAccepted)
	require.NoError(t, repo.Create(ctx, b))
	_, err := reminders.TryLog(ctx, domain.ReminderLog{GuildID: "g1", BookingID: b.ID, OffsetMinutes: 60, FiredAt: meetup})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "g1", b.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "g1", b.ID), ErrNotFound)

	logs, err := reminders.ListForBooking(ctx, "g1", b.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestReminderRepository_TryLogOncePerPair(t *testing.T) {
	repo := NewReminderRepository(setupDB(t))
	ctx := context.Background()
	entry := domain.ReminderLog{GuildID: "g1", BookingID: 1, OffsetMinutes: 60, FiredAt: meetup}

	ok, err := repo.TryLog(ctx, entry)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TryLog(ctx, entry)
	require.NoError(t, err)
	assert.False(t, ok)

	other := entry
	other.OffsetMinutes = 10
	ok, err = repo.TryLog(ctx, other)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.ReleaseLog(ctx, "g1", 1, 60))
	ok, err = repo.TryLog(ctx, entry)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReminderRepository_DeleteOlderThan(t *testing.T) {
	repo := NewReminderRepository(setupDB(t))
	ctx := context.Background()
	_, err := repo.TryLog(ctx, domain.ReminderLog{GuildID: "g1", BookingID: 1, OffsetMinutes: 60, FiredAt: meetup.Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = repo.TryLog(ctx, domain.ReminderLog{GuildID: "g1", BookingID: 2, OffsetMinutes: 60, FiredAt: meetup})
	require.NoError(t, err)

	n, err := repo.DeleteOlderThan(ctx, 24*time.Hour, meetup)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	logs, err := repo.ListForBooking(ctx, "g1", 2)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestClosureRepository_OrderAndDelete(t *testing.T) {
	repo := NewClosureRepository(setupDB(t))
	ctx := context.Background()

	late := &domain.Closure{GuildID: "g1", StartAt: meetup, EndAt: meetup.Add(time.Hour), Reason: "Late"}
	early := &domain.Closure{GuildID: "g1", StartAt: meetup.Add(-3 * time.Hour), EndAt: meetup.Add(-2 * time.Hour), Reason: "Early"}
	require.NoError(t, repo.Create(ctx, late))
	require.NoError(t, repo.Create(ctx, early))

	list, err := repo.ListByGuild(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Early", list[0].Reason)

	require.NoError(t, repo.Delete(ctx, "g1", late.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "g1", late.ID), ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "g2", early.ID), ErrNotFound)
}

func TestLazyLookupsDoNotLogMisses(t *testing.T) {
	var buf bytes.Buffer
	db := setupDB(t).Session(&gorm.Session{
		Logger: logger.New(log.New(&buf, "", 0), logger.Config{LogLevel: logger.Warn}),
	})
	ctx := context.Background()

	_, _, err := NewGuildConfigRepository(db).GetRaw(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = NewDraftRepository(db).Get(ctx, "g1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NotContains(t, buf.String(), "record not found")
}

func TestGuildConfigRepository_CreateIfAbsent(t *testing.T) {
	repo := NewGuildConfigRepository(setupDB(t))
	ctx := context.Background()

	_, _, err := repo.GetRaw(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := repo.CreateRawIfAbsent(ctx, "g1", 2, []byte(`{"buffer_minutes":15}`))
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.CreateRawIfAbsent(ctx, "g1", 2, []byte(`{"buffer_minutes":99}`))
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, repo.SaveRaw(ctx, "g1", 2, []byte(`{"buffer_minutes":30}`)))
	doc, version, err := repo.GetRaw(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.JSONEq(t, `{"buffer_minutes":30}`, string(doc))
}

func TestDraftRepository_SaveGetSweep(t *testing.T) {
	repo := NewDraftRepository(setupDB(t))
	ctx := context.Background()

	d := &domain.Draft{GuildID: "g1", UserID: "u1", Payload: []byte(`{"a":1}`), ExpiresAt: meetup, CreatedAt: meetup.Add(-15 * time.Minute)}
	require.NoError(t, repo.Save(ctx, d))
	d.Payload = []byte(`{"a":2}`)
	require.NoError(t, repo.Save(ctx, d))

	got, err := repo.Get(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got.Payload))

	n, err := repo.DeleteExpired(ctx, meetup.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = repo.DeleteExpired(ctx, meetup)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Get(ctx, "g1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingRepository_PostgresFailureIsNotNotFound(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "bookings"`).WillReturnError(errors.New("connection reset by peer"))

	_, err = NewBookingRepository(db).GetByID(context.Background(), "g1", 1)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
