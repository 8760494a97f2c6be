package closure

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"convoydesk/internal/domain"
	"convoydesk/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, c *domain.Closure) error {
	args := m.Called(ctx, c)
	if args.Error(0) == nil {
		c.ID = 11
	}
	return args.Error(0)
}

func (m *MockStore) ListByGuild(ctx context.Context, guildID string) ([]domain.Closure, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Closure), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, guildID string, id int64) error {
	return m.Called(ctx, guildID, id).Error(0)
}

func TestService_CreateFromLocalTimes(t *testing.T) {
	store := new(MockStore)
	store.On("Create", mock.Anything, mock.AnythingOfType("*domain.Closure")).Return(nil)

	c, err := NewService(store).Create(context.Background(), "g1", "staff-1", CreateInput{
		Date:      "2026-03-01",
		StartTime: "10:00",
		EndTime:   "14:00",
		Timezone:  "UTC+2",
		Reason:    "  Server maintenance  ",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(11), c.ID)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), c.StartAt)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), c.EndAt)
	assert.Equal(t, "Server maintenance", c.Reason)
	assert.Equal(t, "staff-1", c.CreatedBy)
}

func TestService_CreateFromInstants(t *testing.T) {
	store := new(MockStore)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(6 * time.Hour)

	c, err := NewService(store).Create(context.Background(), "g1", "staff-1", CreateInput{
		StartAt: &start,
		EndAt:   &end,
		Reason:  strings.Repeat("x", 300),
	})

	require.NoError(t, err)
	assert.Len(t, c.Reason, 250)
}

func TestService_CreateRejects(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	cases := map[string]CreateInput{
		"end before start": {StartAt: &start, EndAt: ptr(start.Add(-time.Hour)), Reason: "x"},
		"empty window":     {StartAt: &start, EndAt: &start, Reason: "x"},
		"missing reason":   {StartAt: &start, EndAt: ptr(start.Add(time.Hour)), Reason: "   "},
		"no window":        {Reason: "x"},
		"bad clock":        {Date: "2026-03-01", StartTime: "25:00", EndTime: "26:00", Reason: "x"},
		"bad timezone":     {Date: "2026-03-01", StartTime: "10:00", EndTime: "11:00", Timezone: "Mars/Base", Reason: "x"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			store := new(MockStore)
			_, err := NewService(store).Create(context.Background(), "g1", "staff-1", in)
			assert.ErrorIs(t, err, ErrValidation)
			store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestService_DeleteMissing(t *testing.T) {
	store := new(MockStore)
	store.On("Delete", mock.Anything, "g1", int64(5)).Return(repository.ErrNotFound)

	err := NewService(store).Delete(context.Background(), "g1", 5)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandler_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := new(MockStore)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	store.On("ListByGuild", mock.Anything, "g1").Return([]domain.Closure{{ID: 11, GuildID: "g1", Reason: "Maintenance"}}, nil)
	store.On("Delete", mock.Anything, "g1", int64(99)).Return(repository.ErrNotFound)

	r := gin.New()
	NewHandler(NewService(store)).RegisterRoutes(r.Group("/guilds/:guildID"))

	body, _ := json.Marshal(map[string]string{
		"date": "2026-03-01", "start_time": "10:00", "end_time": "12:00", "reason": "Maintenance",
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/guilds/g1/closures", bytes.NewReader(body)))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guilds/g1/closures", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Maintenance")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/guilds/g1/closures/99", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/guilds/g1/closures/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func ptr(t time.Time) *time.Time { return &t }
