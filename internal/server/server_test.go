package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"convoydesk/internal/database"
	"convoydesk/internal/domain"
	"convoydesk/internal/domain/booking"
	"convoydesk/internal/domain/closure"
	"convoydesk/internal/domain/conflict"
	"convoydesk/internal/domain/desk"
	"convoydesk/internal/domain/guildconfig"
	"convoydesk/internal/domain/intake"
	"convoydesk/internal/domain/realtime"
	"convoydesk/internal/domain/reconcile"
	"convoydesk/internal/middleware"
	"convoydesk/internal/pkg/discord"
	jwtsvc "convoydesk/internal/pkg/jwt"
	"convoydesk/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guildID = "g1"

type testSuite struct {
	router  *gin.Engine
	gateway *discord.Memory
	jwt     *jwtsvc.Service
	member  string
	staff   string
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func setupTestSuite(t *testing.T) *testSuite {
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(fmt.Sprintf("file:server_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	bookingRepo := repository.NewBookingRepository(db)
	closureRepo := repository.NewClosureRepository(db)
	configs := guildconfig.NewService(repository.NewGuildConfigRepository(db), guildconfig.Defaults{
		DurationMinutes: 90,
		BufferMinutes:   15,
		CategoryPrefix:  "Convoys",
		ReminderOffsets: []int{1440, 120, 30},
	})
	bookings := booking.NewService(bookingRepo, configs, conflict.NewDetector(repository.NewConflictCandidates(bookingRepo, closureRepo)))

	gw := discord.NewMemory()
	engine := reconcile.NewEngine(gw, bookingRepo, bookings, configs)
	hub := realtime.NewHub()
	d := desk.New(bookings, engine, hub, bookingRepo)

	j := jwtsvc.New("test_secret_key_32_characters_min", time.Hour)
	router := NewRouter(j, nil, Handlers{
		Desk:     desk.NewHandler(d),
		Closures: closure.NewHandler(closure.NewService(closureRepo)),
		Configs:  guildconfig.NewHandler(configs),
		Intake:   intake.NewHandler(intake.NewService(repository.NewDraftRepository(db), d, 15*time.Minute)),
		Realtime: realtime.NewHandler(hub),
	})

	member, err := j.GenerateToken(jwtsvc.Identity{UserID: "42", Username: "alice", Role: middleware.RoleMember, GuildIDs: []string{guildID}})
	require.NoError(t, err)
	staff, err := j.GenerateToken(jwtsvc.Identity{UserID: "900", Username: "dispatcher", Role: middleware.RoleStaff, GuildIDs: []string{guildID}})
	require.NoError(t, err)

	return &testSuite{router: router, gateway: gw, jwt: j, member: member, staff: staff}
}

func (s *testSuite) do(t *testing.T, method, path, token string, body interface{}) (int, testResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp testResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func decodeBooking(t *testing.T, resp testResponse) domain.Booking {
	t.Helper()
	var data struct {
		Booking domain.Booking `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data.Booking
}

func (s *testSuite) fileRequest(t *testing.T, date string) domain.Booking {
	t.Helper()
	code, _ := s.do(t, http.MethodPost, "/guilds/"+guildID+"/intake/step1", s.member, map[string]string{
		"organization":   "Nordic Haulage",
		"event_date":     date,
		"meetup_time":    "18:00",
		"departure_time": "19:00",
		"timezone":       "UTC",
		"server":         "Simulation 1",
	})
	require.Equal(t, http.StatusCreated, code)

	code, resp := s.do(t, http.MethodPost, "/guilds/"+guildID+"/intake/complete", s.member, map[string]interface{}{
		"start_location":  "Oslo",
		"destination":     "Bergen",
		"required_addons": "Scandinavia",
		"event_link":      "https://example.com/events/1",
	})
	require.Equal(t, http.StatusCreated, code, resp)
	return decodeBooking(t, resp)
}

func TestHealth(t *testing.T) {
	s := setupTestSuite(t)

	code, resp := s.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
}

func TestRequestToAcceptance(t *testing.T) {
	s := setupTestSuite(t)

	b := s.fileRequest(t, "2026-11-20")
	assert.Equal(t, domain.StatusRequested, b.Status)
	require.NotEmpty(t, b.ChannelID)
	ch, ok := s.gateway.Lookup(b.ChannelID)
	require.True(t, ok)
	assert.Contains(t, ch.Name, "2026-11-20")
	assert.Len(t, s.gateway.Messages(b.ChannelID), 1)

	path := fmt.Sprintf("/guilds/%s/bookings/%d/status", guildID, b.ID)
	code, resp := s.do(t, http.MethodPost, path, s.staff, map[string]string{"status": "ACCEPTED"})
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, domain.StatusAccepted, decodeBooking(t, resp).Status)

	msgs := s.gateway.Messages(b.ChannelID)
	assert.Len(t, msgs, 4)
	assert.Contains(t, msgs[1].Content, "<@42>")

	// a second accept does not resend the pack
	code, _ = s.do(t, http.MethodPost, path, s.staff, map[string]string{"status": "ACCEPTED"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, s.gateway.Messages(b.ChannelID), 4)
}

func TestClosureDeclinesRequest(t *testing.T) {
	s := setupTestSuite(t)

	code, resp := s.do(t, http.MethodPost, "/guilds/"+guildID+"/closures", s.staff, map[string]string{
		"date":       "2026-11-20",
		"start_time": "00:00",
		"end_time":   "23:59",
		"timezone":   "UTC",
		"reason":     "Server maintenance",
	})
	require.Equal(t, http.StatusCreated, code, resp)

	b := s.fileRequest(t, "2026-11-20")

	assert.Equal(t, domain.StatusDeclined, b.Status)
	assert.Equal(t, "Server maintenance", b.DeclineReason)
	assert.Equal(t, domain.ReasonClosure, b.DeclineReasonSource)

	require.NotEmpty(t, b.ChannelID)
	var notices int
	for _, m := range s.gateway.Messages(b.ChannelID) {
		for _, em := range m.Embeds {
			if em.Title == "❌ Booking Declined" {
				notices++
				assert.Contains(t, em.Description, "Server maintenance")
			}
		}
	}
	assert.Equal(t, 1, notices)
}

func TestLiveFeedIsStaffOnly(t *testing.T) {
	s := setupTestSuite(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?guild=" + guildID + "&token="

	conn, resp, err := websocket.DefaultDialer.Dial(base+s.member, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Nil(t, conn)

	code, body := s.do(t, http.MethodGet, "/ws", s.member, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)

	conn, resp, err = websocket.DefaultDialer.Dial(base+s.staff, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	conn.Close()
}

func TestDeclineRequiresReason(t *testing.T) {
	s := setupTestSuite(t)
	b := s.fileRequest(t, "2026-11-21")

	code, resp := s.do(t, http.MethodPost, fmt.Sprintf("/guilds/%s/bookings/%d/status", guildID, b.ID), s.staff, map[string]string{"status": "DECLINED"})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "MISSING_DECLINE_REASON", resp.Error.Code)
}

func TestAccessControl(t *testing.T) {
	s := setupTestSuite(t)

	code, resp := s.do(t, http.MethodGet, "/guilds/"+guildID+"/bookings", s.member, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)

	code, _ = s.do(t, http.MethodGet, "/guilds/other/bookings", s.staff, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/guilds/"+guildID+"/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/guilds/"+guildID+"/config", s.staff, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRemoveTearsDownChannel(t *testing.T) {
	s := setupTestSuite(t)
	b := s.fileRequest(t, "2026-11-22")
	path := fmt.Sprintf("/guilds/%s/bookings/%d", guildID, b.ID)

	code, _ := s.do(t, http.MethodDelete, path, s.staff, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := s.do(t, http.MethodDelete, path+"?confirm=DELETE", s.staff, nil)
	require.Equal(t, http.StatusOK, code, resp)

	_, ok := s.gateway.Lookup(b.ChannelID)
	assert.False(t, ok)
	code, _ = s.do(t, http.MethodGet, path, s.staff, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
