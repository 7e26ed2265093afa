package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"prakriti-service/internal/ledger"
	"prakriti-service/internal/messaging"
	"prakriti-service/internal/metrics"
	"prakriti-service/internal/repository"
	"prakriti-service/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := nopLogger()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	l := ledger.New()

	complaintRepo := repository.NewComplaintRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	h := Handlers{
		Complaint:    NewComplaintHandler(service.NewComplaintService(complaintRepo, userRepo, outboxRepo, l, m, log), log),
		Task:         NewTaskHandler(service.NewTaskService(taskRepo, userRepo, outboxRepo, l, m, log), log),
		User:         NewUserHandler(service.NewUserService(userRepo, nil, log), log),
		Notification: NewNotificationHandler(service.NewNotificationService(notificationRepo, messaging.NewSSEHub()), log),
		Admin:        NewAdminHandler(service.NewAdminService(outboxRepo), db, log),
	}

	r := NewRouter(h, RouterConfig{
		Auth:     NewAuthenticator(testSecret),
		Metrics:  m,
		Gatherer: reg,
		Log:      log,
	})
	return r, mock
}

type caller struct {
	id   uuid.UUID
	role string
}

func perform(r *gin.Engine, method, path, body string, who *caller) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if who != nil {
		req.Header.Set(HeaderUserID, who.id.String())
		req.Header.Set(HeaderUserName, "tester")
		req.Header.Set(HeaderUserRole, who.role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterRejections(t *testing.T) {
	citizen := &caller{id: uuid.New(), role: "user"}
	complaintID := uuid.New()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		who        *caller
		wantStatus int
		wantError  string
	}{
		{
			name:       "create complaint without identity",
			method:     http.MethodPost,
			path:       "/complaints",
			body:       `{"title":"Dumping"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "create complaint with malformed body",
			method:     http.MethodPost,
			path:       "/complaints",
			body:       `{"title":`,
			who:        citizen,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "create complaint missing fields",
			method:     http.MethodPost,
			path:       "/complaints",
			body:       `{}`,
			who:        citizen,
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed",
		},
		{
			name:       "get complaint with bad id",
			method:     http.MethodGet,
			path:       "/complaints/not-a-uuid",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid id",
		},
		{
			name:       "citizen cannot transition",
			method:     http.MethodPatch,
			path:       "/complaints/" + complaintID.String() + "/status",
			body:       `{"status":"in_progress"}`,
			who:        citizen,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "citizen cannot assign through the PUT alias",
			method:     http.MethodPut,
			path:       "/complaints/" + complaintID.String() + "/assign",
			body:       `{"department":"Sanitation"}`,
			who:        citizen,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "citizen cannot publish tasks",
			method:     http.MethodPost,
			path:       "/tasks",
			body:       `{"title":"Plant trees"}`,
			who:        citizen,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "half a point",
			method:     http.MethodGet,
			path:       "/tasks?lat=12.97",
			wantStatus: http.StatusBadRequest,
			wantError:  "lat and lng must be given together",
		},
		{
			name:       "bad radius",
			method:     http.MethodGet,
			path:       "/tasks?lat=12.97&lng=77.59&radius=far",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid radius",
		},
		{
			name:       "citizen cannot read outbox stats",
			method:     http.MethodGet,
			path:       "/admin/outbox/stats",
			who:        citizen,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "profile requires identity",
			method:     http.MethodGet,
			path:       "/users/me",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newTestRouter(t)

			w := perform(r, tt.method, tt.path, tt.body, tt.who)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantError != "" {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.wantError, body["error"])
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHealth(t *testing.T) {
	t.Run("database up", func(t *testing.T) {
		r, mock := newTestRouter(t)
		mock.ExpectPing()

		w := perform(r, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"up"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database down", func(t *testing.T) {
		r, mock := newTestRouter(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		w := perform(r, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxStats(t *testing.T) {
	r, mock := newTestRouter(t)
	mock.ExpectQuery(`FROM outbox_messages GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 3).
			AddRow("failed", 1))

	w := perform(r, http.MethodGet, "/admin/outbox/stats", "", &caller{id: uuid.New(), role: "admin"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Outbox map[string]int `json:"outbox"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]int{"pending": 3, "published": 0, "failed": 1}, body.Outbox)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboardEndpoint(t *testing.T) {
	r, mock := newTestRouter(t)
	id := uuid.New()
	mock.ExpectQuery(`ORDER BY points_earned DESC`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "points_earned", "level"}).
			AddRow(id.String(), "nila", 420, 4))

	w := perform(r, http.MethodGet, "/leaderboard?limit=5", "", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"source":"database"`)
	assert.Contains(t, w.Body.String(), `"nila"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationEndpoints(t *testing.T) {
	who := &caller{id: uuid.New(), role: "user"}
	notificationID := uuid.New()

	t.Run("list with unread count", func(t *testing.T) {
		r, mock := newTestRouter(t)
		mock.ExpectQuery(`FROM notifications WHERE user_id`).
			WithArgs(who.id).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "complaint_id", "task_id", "title", "message", "is_read", "created_at"}).
				AddRow(notificationID.String(), who.id.String(), nil, nil, "Complaint resolved", "Your complaint was resolved", false, time.Now()))
		mock.ExpectQuery(`SELECT COUNT`).
			WithArgs(who.id).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		w := perform(r, http.MethodGet, "/notifications", "", who)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"unread_count":1`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mark someone else's notification", func(t *testing.T) {
		r, mock := newTestRouter(t)
		mock.ExpectExec(`UPDATE notifications SET is_read = TRUE WHERE id`).
			WithArgs(notificationID, who.id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		w := perform(r, http.MethodPatch, "/notifications/"+notificationID.String()+"/read", "", who)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mark all read", func(t *testing.T) {
		r, mock := newTestRouter(t)
		mock.ExpectExec(`UPDATE notifications SET is_read = TRUE WHERE user_id`).
			WithArgs(who.id).
			WillReturnResult(sqlmock.NewResult(0, 4))

		w := perform(r, http.MethodPatch, "/notifications/read-all", "", who)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	perform(r, http.MethodGet, "/complaints/not-a-uuid", "", nil)
	w := perform(r, http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `prakriti_http_requests_total{method="GET",route="/complaints/:id",status="400"} 1`)
}
