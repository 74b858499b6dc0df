package risk

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(repo *mockRepo, samples *mockSamples, adminID *uuid.UUID) *gin.Engine {
	r := gin.New()
	admin := r.Group("/api/v1/admin")
	if adminID != nil {
		id := *adminID
		admin.Use(func(c *gin.Context) {
			c.Set(middleware.UserIDKey, id)
			c.Next()
		})
	}
	NewHandler(newTestService(repo, samples, nil)).RegisterRoutes(admin)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) common.Response {
	t.Helper()
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandler_GetAnalysis(t *testing.T) {
	repo := new(mockRepo)
	samples := new(mockSamples)
	b := testBooking()

	repo.On("GetBooking", mock.Anything, b.ID).Return(b, nil)
	samples.On("RecentScores", mock.Anything).Return(nil, nil)
	repo.On("FindRelated", mock.Anything, mock.Anything, mock.Anything, b.ID, mock.Anything, RelatedLimit).Return([]RelatedBooking{}, nil)
	repo.On("CountSharingIdentifiers", mock.Anything, mock.Anything, mock.Anything).Return(1, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/risk/bookings/"+b.ID.String()+"/analysis", nil)
	setupRouter(repo, samples, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "BK-1001", data["booking_code"])
	assert.Equal(t, "approve", data["suggested_action"])
	assert.Contains(t, data, "categories")
	assert.Contains(t, data, "related_bookings")
}

func TestHandler_GetAnalysis_InvalidID(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/risk/bookings/not-a-uuid/analysis", nil)
	setupRouter(new(mockRepo), new(mockSamples), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, common.ErrorTypeInvalidRequest, decode(t, w).Error.Type)
}

func TestHandler_GetAnalysis_NotFound(t *testing.T) {
	repo := new(mockRepo)
	id := uuid.New()
	repo.On("GetBooking", mock.Anything, id).Return(nil, pgx.ErrNoRows)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/risk/bookings/"+id.String()+"/analysis", nil)
	setupRouter(repo, new(mockSamples), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, common.ErrorTypeNotFound, decode(t, w).Error.Type)
}

func TestHandler_ApplyAction(t *testing.T) {
	repo := new(mockRepo)
	adminID, bookingID := uuid.New(), uuid.New()
	entry := &AuditEntry{ID: uuid.New(), BookingID: bookingID, Action: ActionWhitelist, AdminID: adminID}

	repo.On("ApplyAdminAction", mock.Anything, mock.MatchedBy(func(cmd AdminCommand) bool {
		return cmd.AdminID == adminID && cmd.Action == ActionWhitelist && cmd.Notes == "repeat customer"
	})).Return(&ActionResult{Audit: entry}, nil)

	body, _ := json.Marshal(map[string]string{"action": "whitelist", "notes": "repeat customer"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/risk/bookings/"+bookingID.String()+"/actions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(repo, new(mockSamples), &adminID).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "admin action applied", resp.Message)
}

func TestHandler_ApplyAction_UnknownAction(t *testing.T) {
	repo := new(mockRepo)
	adminID := uuid.New()

	body, _ := json.Marshal(map[string]string{"action": "refund"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/risk/bookings/"+uuid.NewString()+"/actions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(repo, new(mockSamples), &adminID).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, common.ErrorTypeInvalidRequest, decode(t, w).Error.Type)
	repo.AssertNotCalled(t, "ApplyAdminAction", mock.Anything, mock.Anything)
}

func TestHandler_ApplyAction_Unauthenticated(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"action": "whitelist"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/risk/bookings/"+uuid.NewString()+"/actions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(new(mockRepo), new(mockSamples), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_ListAudit(t *testing.T) {
	repo := new(mockRepo)
	b := testBooking()
	entries := []*AuditEntry{{ID: uuid.New(), BookingID: b.ID, Action: ActionOverrideRisk}}

	repo.On("GetBooking", mock.Anything, b.ID).Return(b, nil)
	repo.On("ListAuditEntries", mock.Anything, b.ID, 5, 0).Return(entries, int64(11), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/risk/bookings/"+b.ID.String()+"/audit?limit=5", nil)
	setupRouter(repo, new(mockSamples), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(11), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}
