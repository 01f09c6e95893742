package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// logLines decodes every JSON line in buf.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if ln == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("bad log line %q: %v", ln, err)
		}
		out = append(out, m)
	}
	return out
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rid", nil))
	gen := w.Header().Get(requestIDHeader)
	if gen == "" || w.Body.String() != gen {
		t.Fatalf("generated id mismatch: header=%q body=%q", gen, w.Body.String())
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set("x-request-id", "abc-123")
	r.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}

func TestLogger_LevelsAndRedaction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/ws", func(c *gin.Context) {
		c.Set(userIDKey, "7")
		c.Status(http.StatusOK)
	})
	r.GET("/rooms/:id", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(http.ErrAbortHandler)
		c.Status(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodGet, "/ws?token=eyJhbGciOiJIUzI1NiJ9.e30.sig&room=42", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Api-Key", "k")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rooms/5?q=ada@example.com", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	if strings.Contains(buf.String(), "eyJhbGci") || strings.Contains(buf.String(), "secret") {
		t.Fatalf("credentials leaked into the access log: %s", buf.String())
	}

	lines := logLines(t, buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 access lines, got %d: %s", len(lines), buf.String())
	}

	ws := lines[0]
	if ws["level"] != "info" || ws["user_id"] != "7" || ws["query"] != "room=42&token=[REDACTED]" {
		t.Fatalf("ws line unexpected: %v", ws)
	}
	hdrs, _ := ws["headers"].(map[string]any)
	if hdrs["Authorization"] != redacted || hdrs["X-Api-Key"] != redacted {
		t.Fatalf("headers not masked: %v", hdrs)
	}

	rooms := lines[1]
	if rooms["level"] != "warn" || rooms["path"] != "/rooms/:id" || rooms["query"] != "q=[REDACTED:email]" {
		t.Fatalf("rooms line unexpected: %v", rooms)
	}
	if lines[2]["level"] != "error" || lines[2]["errors"] == nil {
		t.Fatalf("gin errors should log at error: %v", lines[2])
	}
}

func TestRecovery_JSON500WithRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(RedactOptions{}), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(requestIDHeader, "rid-1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["request_id"] != "rid-1" || body["code"] != "internal_error" {
		t.Fatalf("body = %v", body)
	}
	if !strings.Contains(buf.String(), "panic recovered") || !strings.Contains(buf.String(), `"request_id":"rid-1"`) {
		t.Fatalf("panic not logged with request id: %s", buf.String())
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(requestIDKey, "rid-2")
	LoggerFrom(c).Info().Msg("hello")
	if !strings.Contains(buf.String(), `"request_id":"rid-2"`) {
		t.Fatalf("fallback logger lost the request id: %s", buf.String())
	}
}

func TestRedactor(t *testing.T) {
	red := newRedactor(RedactOptions{MaskQuery: []string{"Sig"}})

	cases := []struct{ in, want string }{
		{"", ""},
		{"token=abc", "token=[REDACTED]"},
		{"before=10&limit=5", "before=10&limit=5"},
		{"sig=x&q=call+212-555-1212", "q=call [REDACTED:phone]&sig=[REDACTED]"},
		{"id=123e4567-e89b-12d3-a456-426614174000", "id=[REDACTED:id]"},
		{"%zz", "%zz"},
	}
	for _, tc := range cases {
		if got := red.Query(tc.in); got != tc.want {
			t.Fatalf("Query(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}

	h := http.Header{}
	h.Set("Cookie", "session=1")
	h.Set("Sec-WebSocket-Protocol", "bearer, abc")
	h.Set("X-Note", "mail me at a@b.io")
	got := red.Headers(h)
	if got["Cookie"] != redacted || got["Sec-Websocket-Protocol"] != redacted || got["X-Note"] != "mail me at [REDACTED:email]" {
		t.Fatalf("Headers = %v", got)
	}
}

func TestTruncate(t *testing.T) {
	if truncate("abc", 0) != "abc" || truncate("abc", 3) != "abc" {
		t.Fatalf("truncate should be a no-op within bounds")
	}
	if got := truncate("abcdef", 3); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
}
