package verification

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(repo *mockRepo, reviewer *uuid.UUID) *gin.Engine {
	r := gin.New()
	admin := r.Group("/api/v1/admin")
	if reviewer != nil {
		id := *reviewer
		admin.Use(func(c *gin.Context) {
			c.Set(middleware.UserIDKey, id)
			c.Next()
		})
	}
	NewHandler(newTestService(repo, nil)).RegisterRoutes(admin)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) common.Response {
	t.Helper()
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandler_ListQueue(t *testing.T) {
	repo := new(mockRepo)
	b := economyBooking()
	b.Car.InstantBook = false
	b.VerificationStatus = StatusApproved

	repo.On("ListQueue", mock.Anything, mock.MatchedBy(func(q QueueQuery) bool {
		return len(q.Statuses) == 1 && q.Statuses[0] == StatusApproved && q.Limit == 10 && q.Offset == 10
	})).Return([]*QueueRow{{Booking: b}}, int64(11), nil)
	repo.On("GetQueueCounts", mock.Anything, mock.Anything).Return(&QueueCounts{Approved: 11}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/verification/queue?status=approved&limit=10&offset=10", nil)
	setupRouter(repo, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(11), resp.Meta.Total)

	data := resp.Data.(map[string]interface{})
	counts := data["counts"].(map[string]interface{})
	assert.Equal(t, float64(11), counts["approved"])
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "host_approval_required", items[0].(map[string]interface{})["reason"])
}

func TestHandler_ListQueue_BadFilter(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/verification/queue?status=weird", nil)
	setupRouter(new(mockRepo), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetGate(t *testing.T) {
	repo := new(mockRepo)
	b := economyBooking()
	repo.On("GetBooking", mock.Anything, b.ID).Return(b, nil)
	repo.On("GetLatestCharge", mock.Anything, b.ID).Return(nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/verification/bookings/"+b.ID.String()+"/gate", nil)
	setupRouter(repo, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	gate := decode(t, w).Data.(map[string]interface{})["gate"].(map[string]interface{})
	assert.Equal(t, false, gate["required"])
}

func TestHandler_RecordDocuments_EmptyBody(t *testing.T) {
	repo := new(mockRepo)
	b := economyBooking()
	b.Car.HostVerified = false
	repo.On("GetBooking", mock.Anything, b.ID).Return(b, nil)
	repo.On("SetDocumentsSubmitted", mock.Anything, b.ID, StatusNotRequired, StatusSubmitted, mock.Anything).Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/verification/bookings/"+b.ID.String()+"/documents", nil)
	setupRouter(repo, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "documents recorded", decode(t, w).Message)
}

func TestHandler_RecordTripEnd_ValidatesFuelLevel(t *testing.T) {
	body, _ := json.Marshal(map[string]interface{}{
		"start_odometer":   100,
		"end_odometer":     200,
		"start_fuel_level": "FULL",
		"end_fuel_level":   "half",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/verification/bookings/"+uuid.NewString()+"/trip-end", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	repo := new(mockRepo)
	setupRouter(repo, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything)
}

func TestHandler_Resolve(t *testing.T) {
	repo := new(mockRepo)
	reviewer := uuid.New()
	b := economyBooking()
	b.VerificationStatus = StatusPendingCharges
	b.PendingCharges = decimal.NewFromInt(75)

	repo.On("GetBooking", mock.Anything, b.ID).Return(b, nil)
	repo.On("Resolve", mock.Anything, mock.MatchedBy(func(u ResolveUpdate) bool {
		return u.ReviewerID == reviewer && u.To == StatusRejected
	})).Return(nil)

	body, _ := json.Marshal(map[string]string{"decision": "reject", "notes": "photos do not match"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/verification/bookings/"+b.ID.String()+"/resolve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(repo, &reviewer).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "REJECTED", data["verification_status"])
}

func TestHandler_Resolve_ConflictStatus(t *testing.T) {
	repo := new(mockRepo)
	reviewer := uuid.New()
	b := economyBooking()
	b.VerificationStatus = StatusCompleted
	repo.On("GetBooking", mock.Anything, b.ID).Return(b, nil)

	body, _ := json.Marshal(map[string]string{"decision": "approve"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/verification/bookings/"+b.ID.String()+"/resolve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(repo, &reviewer).ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, common.ErrorTypeConflict, decode(t, w).Error.Type)
}
