package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arnavshah/homestay-api/pkg/config"
	"github.com/arnavshah/homestay-api/pkg/database"
	"github.com/arnavshah/homestay-api/pkg/handlers"
	"github.com/arnavshah/homestay-api/pkg/metrics"
	"github.com/arnavshah/homestay-api/pkg/models"
	"github.com/arnavshah/homestay-api/pkg/server"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	t      *testing.T
	h      *handlers.Handler
	router *gin.Engine
	apiKey string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&database.MasterUser{Username: "coordinator", PasswordHash: string(hash)}).Error)

	cfg := &config.Config{
		Env: config.EnvDevelopment,
		Auth: config.AuthConfig{
			JWTSecret:        "jwt-secret",
			JWTExpiration:    time.Hour,
			APIMasterSecret:  "master-secret",
			DefaultRateLimit: 10000,
		},
		Sessions: config.SessionConfig{CommitTimeout: 5 * time.Second},
	}
	h := handlers.New(cfg, db, nil, metrics.New())

	return &testServer{
		t:      t,
		h:      h,
		router: server.NewRouter(h),
		apiKey: h.Auth.GenerateHMACKey("church-office"),
	}
}

func (s *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) api(method, path string, body any) *httptest.ResponseRecorder {
	return s.do(method, path, body, s.apiKey)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func testRoster() models.RosterInput {
	return models.RosterInput{
		Participants: []models.Participant{
			{ID: "p1", Name: "John Smith", Age: 17, Gender: models.GenderMale, PaymentStatus: models.PaymentPaid},
			{ID: "p2", Name: "Sarah Johnson", Age: 16, Gender: models.GenderFemale, PaymentStatus: models.PaymentPending},
			{ID: "p3", Name: "Michael Brown", Age: 18, Gender: models.GenderMale, SpecialNeeds: "Dietary restrictions", PaymentStatus: models.PaymentUnpaid},
		},
		HostFamilies: []models.HostFamily{
			{ID: "h1", Name: "Anderson Family", Capacity: 2},
			{ID: "h2", Name: "Baker Family", Capacity: 1, Preferences: &models.Preferences{Gender: models.PreferFemale}},
		},
	}
}

func (s *testServer) openSession() models.SessionState {
	s.t.Helper()
	w := s.api(http.MethodPost, "/api/roster", testRoster())
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.api(http.MethodPost, "/api/sessions", nil)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var state models.SessionState
	decode(s.t, w, &state)
	require.NotEmpty(s.t, state.SessionID)
	return state
}

func TestInfo(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Homestay Assignment API")
}

func TestLoginAndKeyManagement(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/admin/login", gin.H{"username": "coordinator", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/admin/login", gin.H{"username": "coordinator", "password": "secret-pass"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, w, &login)
	require.NotEmpty(t, login.AccessToken)
	token := login.AccessToken

	w = s.do(http.MethodGet, "/admin/keys", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/admin/keys", gin.H{"name": "youth-ministry"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID  uint   `json:"id"`
		Key string `json:"key"`
	}
	decode(t, w, &created)
	assert.True(t, strings.HasPrefix(created.Key, "youth-ministry."))

	w = s.do(http.MethodGet, "/admin/keys", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Keys []database.APIKey `json:"keys"`
	}
	decode(t, w, &list)
	require.Len(t, list.Keys, 1)
	assert.Equal(t, 10000, list.Keys[0].RateLimit)
	assert.NotContains(t, w.Body.String(), created.Key)

	w = s.do(http.MethodPut, "/admin/keys/1", gin.H{"rate_limit": 50}, token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/admin/usage/1", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rate_limit":50`)

	w = s.do(http.MethodDelete, "/admin/keys/1", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodDelete, "/admin/keys/1", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, "/admin/usage/1", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/usage", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/usage", nil, "church-office.deadbeef")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w = s.api(http.MethodGet, "/api/usage", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"key_name":"church-office"`)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.h.Config.Auth.DefaultRateLimit = 2

	assert.Equal(t, http.StatusOK, s.api(http.MethodGet, "/api/usage", nil).Code)
	assert.Equal(t, http.StatusOK, s.api(http.MethodGet, "/api/usage", nil).Code)

	w := s.api(http.MethodGet, "/api/usage", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
}

func (s *testServer) adminToken() string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/admin/login", gin.H{"username": "coordinator", "password": "secret-pass"}, "")
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		AccessToken string `json:"access_token"`
	}
	decode(s.t, w, &login)
	return login.AccessToken
}

func TestRevokedKeyIsRejected(t *testing.T) {
	s := newTestServer(t)
	token := s.adminToken()

	w := s.do(http.MethodPost, "/admin/keys", gin.H{"name": "youth-ministry", "rate_limit": 1}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID  uint   `json:"id"`
		Key string `json:"key"`
	}
	decode(t, w, &created)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/usage", nil, created.Key).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/api/usage", nil, created.Key).Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/admin/keys/%d", created.ID), nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for i := 0; i < 2; i++ {
		w = s.do(http.MethodGet, "/api/usage", nil, created.Key)
		assert.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
		env := decode(t, w, nil)
		require.NotNil(t, env.Error)
		assert.Equal(t, "API key revoked", env.Error.Message)
	}

	// The revoked row is neither listed nor re-registered.
	w = s.do(http.MethodGet, "/admin/keys", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Keys []database.APIKey `json:"keys"`
	}
	decode(t, w, &list)
	assert.Empty(t, list.Keys)

	w = s.do(http.MethodPost, "/admin/keys", gin.H{"name": "youth-ministry"}, token)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestRateLimitUnderConcurrency(t *testing.T) {
	s := newTestServer(t)
	s.h.Config.Auth.DefaultRateLimit = 3
	require.Equal(t, http.StatusOK, s.api(http.MethodGet, "/api/usage", nil).Code)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.api(http.MethodGet, "/api/usage", nil).Code == http.StatusOK {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, admitted)
}

func TestValidateRoster(t *testing.T) {
	s := newTestServer(t)

	w := s.api(http.MethodPost, "/api/validate", testRoster())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)
	assert.Contains(t, w.Body.String(), `"available_capacity":3`)

	bad := testRoster()
	bad.Participants = append(bad.Participants, bad.Participants[0])
	w = s.api(http.MethodPost, "/api/validate", bad)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":false`)
	assert.Contains(t, w.Body.String(), "duplicate participant ID: p1")
}

func TestImportRosterRejectsInvalidData(t *testing.T) {
	s := newTestServer(t)
	bad := testRoster()
	bad.HostFamilies[0].Capacity = 0

	w := s.api(http.MethodPost, "/api/roster", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestImportRosterCSV(t *testing.T) {
	s := newTestServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("participants_file", "participants.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("id,name,age,gender,payment_status\np1,John Smith,17,male,paid\np2,Sarah Johnson,16,female,\n"))
	part, err = mw.CreateFormFile("families_file", "families.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("id,name,capacity,preferred_gender\nh1,Anderson Family,2,female\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/roster/csv", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	participants, families, err := s.h.Store.LoadRoster(context.Background())
	require.NoError(t, err)
	assert.Len(t, participants, 2)
	require.Len(t, families, 1)
	assert.Equal(t, models.PreferFemale, families[0].Preferences.Gender)

	w = s.api(http.MethodGet, "/api/usage", nil)
	assert.Contains(t, w.Body.String(), `"participants":2`)
}

func TestSessionWorkflow(t *testing.T) {
	s := newTestServer(t)
	state := s.openSession()
	base := "/api/sessions/" + state.SessionID
	assert.Len(t, state.Unassigned, 3)
	assert.Equal(t, 3, state.Summary.TotalCapacity)

	w := s.api(http.MethodPost, base+"/assignments", models.Assignment{ParticipantID: "p1", HostFamilyID: "h1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.api(http.MethodPost, base+"/assignments", models.Assignment{ParticipantID: "p2", HostFamilyID: "h2"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.api(http.MethodPost, base+"/assignments", models.Assignment{ParticipantID: "p3", HostFamilyID: "h2"})
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CAPACITY_EXCEEDED", env.Error.Code)

	w = s.api(http.MethodPost, base+"/assignments", models.Assignment{ParticipantID: "p9", HostFamilyID: "h1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.api(http.MethodPost, base+"/auto-assign", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var auto models.AutoAssignResponse
	decode(t, w, &auto)
	assert.Equal(t, []models.Assignment{{ParticipantID: "p3", HostFamilyID: "h1"}}, auto.Assigned)
	assert.Empty(t, auto.State.Unassigned)
	assert.Len(t, auto.State.Pending, 3)

	w = s.api(http.MethodPost, base+"/commit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var commit struct {
		Committed int                 `json:"committed"`
		State     models.SessionState `json:"state"`
	}
	decode(t, w, &commit)
	assert.Equal(t, 3, commit.Committed)
	assert.Empty(t, commit.State.Pending)
	assert.Equal(t, 3, commit.State.Summary.Committed)

	store := s.h.Store.(*database.Store)
	stored, err := store.ListAssignments(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	// A new session starts from the stored state.
	w = s.api(http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var next models.SessionState
	decode(t, w, &next)
	assert.Empty(t, next.Unassigned)
	assert.Equal(t, 3, next.Summary.Occupied)
	assert.Equal(t, 0, next.Summary.Available)
}

func TestDiscardAndWithdraw(t *testing.T) {
	s := newTestServer(t)
	state := s.openSession()
	base := "/api/sessions/" + state.SessionID

	require.Equal(t, http.StatusOK, s.api(http.MethodPost, base+"/auto-assign", nil).Code)

	w := s.api(http.MethodDelete, base+"/assignments/p2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var withdrawn models.SessionState
	decode(t, w, &withdrawn)
	assert.Equal(t, []string{"p2", "p3"}, participantIDs(withdrawn.Unassigned))
	assert.Len(t, withdrawn.Pending, 1)

	w = s.api(http.MethodDelete, base+"/assignments/p2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.api(http.MethodPost, base+"/discard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var discard struct {
		Discarded int                 `json:"discarded"`
		State     models.SessionState `json:"state"`
	}
	decode(t, w, &discard)
	assert.Equal(t, 1, discard.Discarded)
	assert.Empty(t, discard.State.Pending)
	assert.Equal(t, []string{"p1", "p2", "p3"}, participantIDs(discard.State.Unassigned))
	for _, f := range discard.State.HostFamilies {
		assert.Zero(t, f.CurrentAssignments, f.ID)
	}

	// Nothing pending: commit is a no-op.
	w = s.api(http.MethodPost, base+"/commit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"committed":0`)
}

type failingStore struct {
	*database.Store
}

func (failingStore) SaveAssignments(context.Context, []models.Assignment) error {
	return errors.New("database is read-only")
}

func TestCommitFailureKeepsPending(t *testing.T) {
	s := newTestServer(t)
	s.h.Store = failingStore{Store: s.h.Store.(*database.Store)}
	state := s.openSession()
	base := "/api/sessions/" + state.SessionID

	require.Equal(t, http.StatusCreated,
		s.api(http.MethodPost, base+"/assignments", models.Assignment{ParticipantID: "p1", HostFamilyID: "h1"}).Code)

	w := s.api(http.MethodPost, base+"/commit", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "COMMIT_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Message, "database is read-only")

	w = s.api(http.MethodGet, base, nil)
	var after models.SessionState
	decode(t, w, &after)
	assert.Len(t, after.Pending, 1)
}

func TestRemoveCommittedAssignment(t *testing.T) {
	s := newTestServer(t)
	state := s.openSession()
	base := "/api/sessions/" + state.SessionID

	w := s.api(http.MethodPost, base+"/assignments", models.Assignment{ParticipantID: "p1", HostFamilyID: "h1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.api(http.MethodPost, base+"/commit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.api(http.MethodGet, "/api/assignments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Assignments []models.Assignment `json:"assignments"`
	}
	decode(t, w, &list)
	assert.Equal(t, []models.Assignment{{ParticipantID: "p1", HostFamilyID: "h1"}}, list.Assignments)

	w = s.api(http.MethodDelete, "/api/assignments/p1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var removed models.Assignment
	decode(t, w, &removed)
	assert.Equal(t, "h1", removed.HostFamilyID)

	w = s.api(http.MethodDelete, "/api/assignments/p1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The next session sees the participant unassigned and the slot free.
	w = s.api(http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var next models.SessionState
	decode(t, w, &next)
	assert.Equal(t, []string{"p1", "p2", "p3"}, participantIDs(next.Unassigned))
	assert.Equal(t, 0, next.Summary.Occupied)
}

func TestParticipantAndFamilyManagement(t *testing.T) {
	s := newTestServer(t)
	state := s.openSession()
	base := "/api/sessions/" + state.SessionID

	w := s.api(http.MethodPut, "/api/participants/p3/payment", gin.H{"payment_status": "paid"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	participants, _, err := s.h.Store.LoadRoster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, participants[2].PaymentStatus)

	w = s.api(http.MethodPut, "/api/participants/p3/payment", gin.H{"payment_status": "refunded"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.api(http.MethodPut, "/api/participants/p9/payment", gin.H{"payment_status": "paid"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.api(http.MethodPost, base+"/assignments", models.Assignment{ParticipantID: "p2", HostFamilyID: "h2"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.api(http.MethodPost, base+"/commit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.api(http.MethodDelete, "/api/participants/p2", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	w = s.api(http.MethodDelete, "/api/host-families/h2", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.api(http.MethodDelete, "/api/participants/p3", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.api(http.MethodDelete, "/api/host-families/h1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.api(http.MethodDelete, "/api/host-families/h1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	participants, families, err := s.h.Store.LoadRoster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, participantIDs(participants))
	require.Len(t, families, 1)
	assert.Equal(t, "h2", families[0].ID)
}

func TestSessionNotFound(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/sessions/missing"},
		{http.MethodPost, "/api/sessions/missing/auto-assign"},
		{http.MethodPost, "/api/sessions/missing/commit"},
		{http.MethodDelete, "/api/sessions/missing"},
	} {
		w := s.api(tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
		env := decode(t, w, nil)
		require.NotNil(t, env.Error, tc.path)
		assert.Equal(t, "SESSION_NOT_FOUND", env.Error.Code, tc.path)
	}
}

func TestGetSessionFiltersByName(t *testing.T) {
	s := newTestServer(t)
	state := s.openSession()

	w := s.api(http.MethodGet, "/api/sessions/"+state.SessionID+"?q=john", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var filtered models.SessionState
	decode(t, w, &filtered)
	assert.Equal(t, []string{"p1", "p2"}, participantIDs(filtered.Unassigned))
	assert.Empty(t, filtered.HostFamilies)
	assert.Equal(t, 3, filtered.Summary.TotalParticipants)
}

func TestCloseSession(t *testing.T) {
	s := newTestServer(t)
	state := s.openSession()

	w := s.api(http.MethodDelete, "/api/sessions/"+state.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, s.h.Sessions.Len())
}

func TestExport(t *testing.T) {
	s := newTestServer(t)
	state := s.openSession()
	base := "/api/sessions/" + state.SessionID

	require.Equal(t, http.StatusCreated,
		s.api(http.MethodPost, base+"/assignments", models.Assignment{ParticipantID: "p1", HostFamilyID: "h1"}).Code)

	w := s.api(http.MethodGet, base+"/export?dataset=assignments&format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "assignments.csv")
	assert.Equal(t, "Participant ID,Participant Name,Host Family ID,Host Family Name\np1,John Smith,h1,Anderson Family\n", w.Body.String())

	w = s.api(http.MethodGet, base+"/export?dataset=families&format=pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = s.api(http.MethodGet, base+"/export?dataset=payments", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.api(http.MethodGet, base+"/export?format=xlsx", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	state := s.openSession()
	require.Equal(t, http.StatusOK, s.api(http.MethodPost, "/api/sessions/"+state.SessionID+"/auto-assign", nil).Code)

	w := s.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `homestay_assignments_proposed_total{source="auto"} 2`)
	assert.Contains(t, w.Body.String(), "homestay_sessions_open 1")
}

func participantIDs(participants []models.Participant) []string {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	return ids
}
