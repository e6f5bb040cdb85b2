package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anoixa/image-predict/api/middleware"
	"github.com/anoixa/image-predict/database/dbtest"
	"github.com/anoixa/image-predict/database/models"
	dashboardRepo "github.com/anoixa/image-predict/database/repo/dashboard"
	"github.com/anoixa/image-predict/internal/auth"
	"github.com/anoixa/image-predict/internal/dashboard"
)

const testSecret = "dashboard-handler-test-secret-0123456789"

func setupRouter(t *testing.T) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t)
	alice := dbtest.CreateUser(t, db, "alice", time.Now())
	dbtest.CreatePrediction(t, db, alice.ID, "cat", time.Now())
	dbtest.CreatePrediction(t, db, alice.ID, "cat", time.Now())

	jwtService, err := auth.NewJWTService(testSecret, time.Minute, time.Hour)
	require.NoError(t, err)

	h := NewHandler(dashboard.NewService(dashboardRepo.NewRepository(db)))
	r := gin.New()
	h.SetupRoutes(r.Group("/api/v1"), middleware.JWTAuth(jwtService), middleware.RequireRole(models.RoleAdmin))
	return r, jwtService
}

func request(t *testing.T, r *gin.Engine, jwtService *auth.JWTService, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
	if role != "" {
		token, _, err := jwtService.GenerateAccessToken("someone", 1, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetStats_Access(t *testing.T) {
	r, jwtService := setupRouter(t)

	assert.Equal(t, http.StatusUnauthorized, request(t, r, jwtService, "").Code)
	assert.Equal(t, http.StatusForbidden, request(t, r, jwtService, models.RoleUser).Code)
}

func TestGetStats_Admin(t *testing.T) {
	r, jwtService := setupRouter(t)

	w := request(t, r, jwtService, models.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string                  `json:"status"`
		Data   dashboard.StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, int64(1), body.Data.TotalUsers)
	assert.Equal(t, int64(2), body.Data.TotalPredictions)
	assert.Equal(t, "cat", body.Data.MostPredictedClass)
	assert.True(t, body.Data.HasPredictions)

	var raw struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	for _, key := range []string{
		"total_users", "total_predictions", "active_users", "avg_predictions_per_user",
		"most_predicted_class", "recent_predictions", "chart", "recent_users", "top_users", "has_predictions",
	} {
		assert.Contains(t, raw.Data, key)
	}

	var top []dashboardRepo.UserPredictionCount
	require.NoError(t, json.Unmarshal(raw.Data["top_users"], &top))
	require.Len(t, top, 1)
	assert.Equal(t, "alice", top[0].Username)
	assert.EqualValues(t, 2, top[0].PredictionCount)
}
