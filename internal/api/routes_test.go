package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mun_dashboard/internal/metrics"
	"mun_dashboard/internal/models"
	"mun_dashboard/internal/persist"
	"mun_dashboard/internal/service"
	"mun_dashboard/internal/storage"
	"mun_dashboard/internal/utils"
)

var (
	json       = jsoniter.ConfigCompatibleWithStandardLibrary
	testSecret = []byte("test-secret")
)

func setupRouter(t *testing.T) (*gin.Engine, *service.Services) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	local, err := storage.NewLocalStore("")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	services := service.NewServices(service.Options{
		Local:   local,
		Metrics: metrics.New(reg),
		Persist: persist.Options{LocalDebounce: time.Hour, RemoteDebounce: time.Hour},
	})
	t.Cleanup(func() {
		services.CloseAll(context.Background())
		local.Close()
	})

	r := gin.New()
	SetupRoutes(r, services, testSecret, reg)
	return r, services
}

func performRequest(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var device = map[string]string{"X-Device-ID": "tablet-1"}

func TestHealthAndNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	w := performRequest(r, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = performRequest(r, http.MethodGet, "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIdentityRequired(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		want    int
	}{
		{"no identity", "/api/chair", nil, http.StatusUnauthorized},
		{"wrong scheme", "/api/chair", map[string]string{"Authorization": "Token abc"}, http.StatusUnauthorized},
		{"bad token", "/api/chair", map[string]string{"Authorization": "Bearer not-a-jwt"}, http.StatusUnauthorized},
		{"bad token wins over device", "/api/chair", map[string]string{"Authorization": "Bearer x", "X-Device-ID": "d"}, http.StatusUnauthorized},
		{"device header", "/api/chair", device, http.StatusOK},
		{"device query", "/api/chair?device_id=phone", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(r, http.MethodGet, tt.path, nil, tt.headers)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSignedInAndDeviceStateAreSeparate(t *testing.T) {
	r, _ := setupRouter(t)
	token, err := utils.GenerateToken("user-7", testSecret, time.Hour)
	require.NoError(t, err)
	bearer := map[string]string{"Authorization": "Bearer " + token}

	w := performRequest(r, http.MethodPut, "/api/chair/committee", map[string]string{"committee": "UNSC"}, bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "UNSC", decode[models.ChairState](t, w).Committee)

	w = performRequest(r, http.MethodGet, "/api/chair", nil, device)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DefaultCommittee, decode[models.ChairState](t, w).Committee)

	w = performRequest(r, http.MethodGet, "/api/chair", nil, bearer)
	assert.Equal(t, "UNSC", decode[models.ChairState](t, w).Committee)
}

func TestVoteFlow(t *testing.T) {
	r, _ := setupRouter(t)

	addParticipant := func(country string) string {
		w := performRequest(r, http.MethodPost, "/api/chair/participants", map[string]string{
			"country":        country,
			"rollCallStatus": "present",
		}, device)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return decode[models.Participant](t, w).ID
	}
	france := addParticipant("France")
	chad := addParticipant("Chad")

	w := performRequest(r, http.MethodPost, "/api/chair/motions", map[string]string{"text": "Moderated caucus"}, device)
	require.Equal(t, http.StatusCreated, w.Code)
	motion := decode[models.Motion](t, w)
	assert.Equal(t, models.MotionStatusActive, motion.Status)

	w = performRequest(r, http.MethodPost, "/api/chair/motions", map[string]string{"text": "   "}, device)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodPost, "/api/chair/motions/missing/vote", nil, device)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performRequest(r, http.MethodPost, "/api/chair/motions/"+motion.ID+"/vote", nil, device)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, http.MethodPost, "/api/chair/vote/ballots", map[string]string{"participantId": france, "ballot": "yes"}, device)
	require.Equal(t, http.StatusOK, w.Code)
	w = performRequest(r, http.MethodPost, "/api/chair/vote/ballots", map[string]string{"participantId": chad, "ballot": "no"}, device)
	require.Equal(t, http.StatusOK, w.Code)
	progress := decode[models.VoteProgress](t, w)
	assert.Equal(t, 1, progress.Yes)
	assert.Equal(t, 1, progress.No)

	w = performRequest(r, http.MethodPost, "/api/chair/vote/ballots", map[string]string{"participantId": chad}, device)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodPost, "/api/chair/vote/end", nil, device)
	require.Equal(t, http.StatusOK, w.Code)
	ended := decode[models.Motion](t, w)
	assert.Equal(t, models.MotionStatusFailed, ended.Status)
	require.NotNil(t, ended.Votes)
	assert.Equal(t, models.Tally{Yes: 1, No: 1}, *ended.Votes)

	w = performRequest(r, http.MethodPost, "/api/chair/vote/end", nil, device)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = performRequest(r, http.MethodPost, "/api/chair/motions/"+motion.ID+"/status", map[string]string{"status": "active"}, device)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = performRequest(r, http.MethodGet, "/api/chair/score", nil, device)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[models.MotionScore](t, w).Failed)
}

func TestDisciplineEndpoints(t *testing.T) {
	r, _ := setupRouter(t)

	w := performRequest(r, http.MethodPost, "/api/chair/participants", map[string]string{"country": "Peru"}, device)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[models.Participant](t, w).ID

	for i := 0; i < models.StrikeThreshold; i++ {
		w = performRequest(r, http.MethodPost, "/api/chair/participants/"+id+"/strikes", map[string]string{"type": "late"}, device)
		require.Equal(t, http.StatusOK, w.Code)
	}
	body := decode[struct {
		Strikes      map[string]int `json:"strikes"`
		FlaggedTypes []string       `json:"flaggedTypes"`
	}](t, w)
	assert.Equal(t, models.StrikeThreshold, body.Strikes["late"])
	assert.Equal(t, []string{"late"}, body.FlaggedTypes)

	w = performRequest(r, http.MethodDelete, "/api/chair/participants/"+id+"/strikes", map[string]string{"type": "phone"}, device)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = performRequest(r, http.MethodPost, "/api/chair/participants/"+id+"/feedback", map[string]string{"type": "rude"}, device)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodDelete, "/api/chair/participants/"+id, nil, device)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.ChairState](t, w).DelegateStrikes)

	w = performRequest(r, http.MethodGet, "/api/chair/participants/"+id+"/discipline", nil, device)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelegateEndpoints(t *testing.T) {
	r, _ := setupRouter(t)
	token, err := utils.GenerateToken("delegate-9", testSecret, time.Hour)
	require.NoError(t, err)
	bearer := map[string]string{"Authorization": "Bearer " + token}

	w := performRequest(r, http.MethodGet, "/api/delegate", nil, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[models.DelegateState](t, w).Conferences, 1)

	w = performRequest(r, http.MethodPatch, "/api/delegate/active", map[string]any{"country": "Kenya", "committeeCount": 50}, bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	active := decode[models.Conference](t, w)
	assert.Equal(t, "Kenya", active.Country)
	assert.Equal(t, 20, active.CommitteeCount)

	w = performRequest(r, http.MethodPatch, "/api/delegate/active", map[string]any{"countdownDate": "next week"}, bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodPost, "/api/delegate/active/matrix", map[string]string{"committee": "UNSC", "firstName": "Ana"}, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[models.Conference](t, w).CommitteeMatrix, 1)

	w = performRequest(r, http.MethodDelete, "/api/delegate/active/matrix/5", nil, bearer)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = performRequest(r, http.MethodDelete, "/api/delegate/active/matrix/abc", nil, bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodPost, "/api/delegate/active/sources/trusted", map[string]string{"source": "UN Digital Library"}, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"UN Digital Library"}, decode[models.Conference](t, w).TrustedSources)

	w = performRequest(r, http.MethodPost, "/api/delegate/active/checklist/unknown/toggle", nil, bearer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodPost, "/api/delegate/conferences", nil, bearer)
	require.Equal(t, http.StatusCreated, w.Code)
	added := decode[models.Conference](t, w)

	w = performRequest(r, http.MethodGet, "/api/delegate", nil, bearer)
	assert.Equal(t, added.ID, decode[models.DelegateState](t, w).ActiveConferenceID)

	w = performRequest(r, http.MethodPost, "/api/delegate/conferences/missing/activate", nil, bearer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performRequest(r, http.MethodPost, "/api/delegate/save", nil, bearer)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setupRouter(t)

	performRequest(r, http.MethodGet, "/api/chair", nil, device)
	w := performRequest(r, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mun_dashboard_open_sessions{kind="chair"} 1`)
}

func TestCloseSession(t *testing.T) {
	r, _ := setupRouter(t)

	w := performRequest(r, http.MethodPut, "/api/chair/committee", map[string]string{"committee": "WHO"}, device)
	require.Equal(t, http.StatusOK, w.Code)
	performRequest(r, http.MethodGet, "/api/delegate", nil, device)

	w = performRequest(r, http.MethodDelete, "/api/chair/session", nil, device)
	require.Equal(t, http.StatusOK, w.Code)
	w = performRequest(r, http.MethodDelete, "/api/delegate/session", nil, device)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, http.MethodGet, "/metrics", nil, nil)
	assert.Contains(t, w.Body.String(), `mun_dashboard_open_sessions{kind="chair"} 0`)
	assert.Contains(t, w.Body.String(), `mun_dashboard_open_sessions{kind="delegate"} 0`)

	// 關閉前已寫入本機，重新開啟時還原
	w = performRequest(r, http.MethodGet, "/api/chair", nil, device)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "WHO", decode[models.ChairState](t, w).Committee)
}

func TestWebSocketReceivesStateUpdates(t *testing.T) {
	r, services := setupRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chair/ws?device_id=projector"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg service.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, service.MessageState, msg.Type)
	require.NotNil(t, msg.State)
	assert.Empty(t, msg.State.Delegates)
	assert.Equal(t, 1, services.WebSocket.RoomClients("device:projector"))

	w := performRequest(r, http.MethodPost, "/api/chair/participants", map[string]string{"country": "Japan"}, map[string]string{"X-Device-ID": "projector"})
	require.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, conn.ReadJSON(&msg))
	require.NotNil(t, msg.State)
	require.Len(t, msg.State.Delegates, 1)
	assert.Equal(t, "Japan", msg.State.Delegates[0].Country)
}

func TestWebSocketStateNeverGoesBackwards(t *testing.T) {
	r, _ := setupRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chair/ws?device_id=hall"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg service.Message
	require.NoError(t, conn.ReadJSON(&msg))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			performRequest(r, http.MethodPost, "/api/chair/participants", map[string]string{
				"country": fmt.Sprintf("Country %d", i),
			}, map[string]string{"X-Device-ID": "hall"})
		}(i)
	}
	wg.Wait()

	// 每次變更送出一次快照，代表人數只增不減，最後一份是完整狀態
	last := 0
	for i := 0; i < n; i++ {
		require.NoError(t, conn.ReadJSON(&msg))
		require.NotNil(t, msg.State)
		assert.GreaterOrEqual(t, len(msg.State.Delegates), last)
		last = len(msg.State.Delegates)
	}
	assert.Equal(t, n, last)
}
