package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/internal/auth"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doRequest(router *gin.Engine, method, target string, header http.Header, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWindowRateLimiter_SixthAttemptRejected(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewWindowRateLimiter(5, time.Hour, 2*time.Hour)
	defer limiter.Stop()

	router := setupRouter()
	router.POST("/login", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 1; i <= 5; i++ {
		w := doRequest(router, http.MethodPost, "/login", nil, "198.51.100.7:4000")
		assert.Equal(t, http.StatusOK, w.Code, "attempt %d", i)
	}

	w := doRequest(router, http.MethodPost, "/login", nil, "198.51.100.7:4000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)

	// 其他 IP 不受影响
	w = doRequest(router, http.MethodPost, "/login", nil, "198.51.100.8:4000")
	assert.Equal(t, http.StatusOK, w.Code)
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestWindowRateLimiter_WindowDoesNotRefill(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewWindowRateLimiter(5, time.Hour, 2*time.Hour)
	limiter.now = clock.Now
	defer limiter.Stop()

	router := setupRouter()
	router.POST("/login", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	attempt := func() int {
		return doRequest(router, http.MethodPost, "/login", nil, "198.51.100.7:4000").Code
	}

	for i := 1; i <= 5; i++ {
		assert.Equal(t, http.StatusOK, attempt(), "attempt %d", i)
	}

	clock.Advance(30 * time.Minute)
	assert.Equal(t, http.StatusTooManyRequests, attempt())

	allowed := 0
	for m := 1; m < 30; m++ {
		clock.Advance(time.Minute)
		if attempt() == http.StatusOK {
			allowed++
		}
	}
	assert.Zero(t, allowed, "no attempt may pass before the hour is up")

	clock.Advance(time.Minute)
	assert.Equal(t, http.StatusOK, attempt())
	for i := 2; i <= 5; i++ {
		assert.Equal(t, http.StatusOK, attempt(), "attempt %d of new window", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, attempt())
}

func TestIPRateLimiter_BucketRefills(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewIPRateLimiter(1, 2, time.Hour)
	limiter.now = clock.Now
	defer limiter.Stop()

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	clock.Advance(time.Second)
	assert.True(t, limiter.Allow("a"))
}

func TestIPRateLimiter_SpoofedHeaderIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewWindowRateLimiter(1, time.Hour, time.Hour)
	defer limiter.Stop()

	router := setupRouter()
	require.NoError(t, router.SetTrustedProxies(nil))
	router.POST("/login", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := doRequest(router, http.MethodPost, "/login", http.Header{"X-Forwarded-For": {"10.0.0.1"}}, "203.0.113.5:1")
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(router, http.MethodPost, "/login", http.Header{"X-Forwarded-For": {"10.0.0.2"}}, "203.0.113.5:1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestIPRateLimiter_Sweep(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewIPRateLimiter(10, 10, time.Minute)
	defer limiter.Stop()

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))

	limiter.sweep(time.Now().Add(2 * time.Minute))

	count := 0
	limiter.limiterMap.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	assert.Zero(t, count)
}

func TestIPRateLimiter_StopIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewIPRateLimiter(1, 1, time.Minute)
	limiter.Stop()
	limiter.Stop()
}

func TestIPRateLimiter_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewWindowRateLimiter(50, time.Hour, time.Hour)
	defer limiter.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("same") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func newJWT(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(testSecret, time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

func TestJWTAuth(t *testing.T) {
	jwtService := newJWT(t)

	router := setupRouter()
	router.GET("/me", JWTAuth(jwtService), func(c *gin.Context) {
		id, ok := CurrentUserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": c.GetString(ContextRoleKey)})
	})

	pair, err := jwtService.GenerateTokens("alice", 7, models.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Bearer", http.StatusBadRequest},
		{"wrong scheme", "ApiKey " + pair.AccessToken, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"refresh token is not a jwt", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"valid", "Bearer " + pair.AccessToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}
			w := doRequest(router, http.MethodGet, "/me", header, "")
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.JSONEq(t, `{"id":7,"role":"admin"}`, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	jwtService := newJWT(t)

	router := setupRouter()
	router.GET("/admin", JWTAuth(jwtService), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	userPair, err := jwtService.GenerateTokens("bob", 2, models.RoleUser)
	require.NoError(t, err)
	adminPair, err := jwtService.GenerateTokens("root", 1, models.RoleAdmin)
	require.NoError(t, err)

	w := doRequest(router, http.MethodGet, "/admin", http.Header{"Authorization": {"Bearer " + userPair.AccessToken}}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(router, http.MethodGet, "/admin", http.Header{"Authorization": {"Bearer " + adminPair.AccessToken}}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAllowedHosts(t *testing.T) {
	router := setupRouter()
	router.Use(AllowedHosts([]string{"localhost", ".example.com"}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		host string
		want int
	}{
		{"localhost:8000", http.StatusOK},
		{"example.com", http.StatusOK},
		{"api.example.com", http.StatusOK},
		{"evil.com", http.StatusBadRequest},
		{"notexample.com", http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = tt.host
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Code, tt.host)
	}
}

func TestAllowedHosts_Wildcard(t *testing.T) {
	router := setupRouter()
	router.Use(AllowedHosts([]string{"*"}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "anything.test"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConcurrencyLimiter(t *testing.T) {
	limiter := NewConcurrencyLimiter(1)
	release := make(chan struct{})
	entered := make(chan struct{})

	router := setupRouter()
	router.POST("/predict", limiter.Queue(50*time.Millisecond), func(c *gin.Context) {
		if c.Query("hold") == "1" {
			close(entered)
			<-release
		}
		c.Status(http.StatusOK)
	})

	done := make(chan int)
	go func() {
		done <- doRequest(router, http.MethodPost, "/predict?hold=1", nil, "").Code
	}()
	<-entered

	w := doRequest(router, http.MethodPost, "/predict", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.EqualValues(t, 0, limiter.Waiting())

	close(release)
	assert.Equal(t, http.StatusOK, <-done)

	w = doRequest(router, http.MethodPost, "/predict", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConcurrencyLimiter_QueuedRequestRuns(t *testing.T) {
	limiter := NewConcurrencyLimiter(1)
	release := make(chan struct{})
	entered := make(chan struct{})

	router := setupRouter()
	router.POST("/predict", limiter.Queue(5*time.Second), func(c *gin.Context) {
		if c.Query("hold") == "1" {
			close(entered)
			<-release
		}
		c.Status(http.StatusOK)
	})

	first := make(chan int)
	go func() {
		first <- doRequest(router, http.MethodPost, "/predict?hold=1", nil, "").Code
	}()
	<-entered

	second := make(chan int)
	go func() {
		second <- doRequest(router, http.MethodPost, "/predict", nil, "").Code
	}()
	assert.Eventually(t, func() bool { return limiter.Waiting() == 1 }, time.Second, 5*time.Millisecond)

	close(release)
	assert.Equal(t, http.StatusOK, <-first)
	assert.Equal(t, http.StatusOK, <-second)
}
