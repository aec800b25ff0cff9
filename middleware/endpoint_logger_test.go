package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ariebrainware/hospital-appointment/util"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// captureSecurityLog redirects the security logger into a buffer for the test.
func captureSecurityLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	original := util.GetSecurityLoggerForTest()
	util.SetSecurityLoggerForTest(log.New(&buf, "[SECURITY] ", log.LstdFlags|log.Lmsgprefix))
	t.Cleanup(func() { util.SetSecurityLoggerForTest(original) })
	return &buf
}

func newLoggedRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	r := gin.New()
	r.Use(RequestID(), DatabaseMiddleware(db), EndpointCallLogger())
	return r
}

func TestEndpointCallLogger_BasicRequest(t *testing.T) {
	buf := captureSecurityLog(t)
	r := newLoggedRouter(t)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test?foo=bar", nil)
	req.RemoteAddr = "192.168.1.100:1234"
	req.Header.Set("User-Agent", "TestAgent/1.0")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	logOutput := buf.String()
	for _, want := range []string{"Event=ENDPOINT_CALL", "GET /test -> 200", "192.168.1.100", "TestAgent/1.0", "UserID= ", "RequestID="} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("Expected log to contain %q, got %s", want, logOutput)
		}
	}
}

func TestEndpointCallLogger_WithUserContext(t *testing.T) {
	buf := captureSecurityLog(t)
	r := newLoggedRouter(t)
	r.GET("/test", func(c *gin.Context) {
		setIdentity(c, 42, 2)
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	logOutput := buf.String()
	if !strings.Contains(logOutput, "UserID=42") {
		t.Errorf("Expected log to contain UserID=42, got %s", logOutput)
	}
	if !strings.Contains(logOutput, "GET /test -> 404") {
		t.Errorf("Expected log to contain status 404, got %s", logOutput)
	}
}

func TestRequestID_PropagatesClientHeader(t *testing.T) {
	captureSecurityLog(t)
	r := newLoggedRouter(t)
	var seen string
	r.POST("/test", func(c *gin.Context) {
		seen = util.RequestIDFrom(c.Request.Context())
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/test", strings.NewReader(`{}`))
	req.Header.Set("X-Request-ID", "client-req-1")
	r.ServeHTTP(w, req)

	if seen != "client-req-1" {
		t.Errorf("expected request id from header, got %q", seen)
	}
	if got := w.Header().Get("X-Request-ID"); got != "client-req-1" {
		t.Errorf("expected request id echoed, got %q", got)
	}
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	captureSecurityLog(t)
	r := newLoggedRouter(t)
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("expected generated UUID request id, got %q", got)
	}
}
