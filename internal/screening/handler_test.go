package screening

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(repo *mockRepo) *gin.Engine {
	r := gin.New()
	NewHandler(newTestService(repo, LocalChecker{}, nil)).RegisterRoutes(r.Group("/api/v1/admin"))
	return r
}

func TestHandler_GetPipeline(t *testing.T) {
	repo := new(mockRepo)
	hostID := uuid.New()
	repo.On("ListStages", mock.Anything, hostID).
		Return(pipeline(hostID, StatusPassed, StatusInProgress, StatusPending, StatusPending, StatusPending), nil)

	w := httptest.NewRecorder()
	setupRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/screening/hosts/"+hostID.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "in_progress", data["status"])
	assert.Len(t, data["stages"], 5)
}

func TestHandler_GetPipeline_InvalidID(t *testing.T) {
	w := httptest.NewRecorder()
	setupRouter(new(mockRepo)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/screening/hosts/nope", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_StartPipeline(t *testing.T) {
	repo := new(mockRepo)
	hostID := uuid.New()
	repo.On("HostExists", mock.Anything, hostID).Return(true, nil)
	repo.On("ListStages", mock.Anything, hostID).Return([]*StageRecord{}, nil)
	repo.On("ReplaceStages", mock.Anything, hostID, mock.Anything).Return(nil)

	w := httptest.NewRecorder()
	setupRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/screening/hosts/"+hostID.String(), nil))

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandler_StartPipeline_Conflict(t *testing.T) {
	repo := new(mockRepo)
	hostID := uuid.New()
	repo.On("HostExists", mock.Anything, hostID).Return(true, nil)
	repo.On("ListStages", mock.Anything, hostID).
		Return(pipeline(hostID, StatusPassed, StatusPassed, StatusPassed, StatusPassed, StatusPassed), nil)

	w := httptest.NewRecorder()
	setupRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/screening/hosts/"+hostID.String(), nil))

	assert.Equal(t, http.StatusConflict, w.Code)
}
