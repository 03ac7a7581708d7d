package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"codegate"
)

type recordingMailer struct {
	mu   sync.Mutex
	body string
}

func (m *recordingMailer) Send(_ context.Context, _ codegate.SMTPConfig, _, _, textBody, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = textBody
	return nil
}

var codeRe = regexp.MustCompile(`\d{6}`)

func newGuardedEngine(t *testing.T) (*codegate.Engine, string, string) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	mailer := &recordingMailer{}
	engine, err := codegate.New().
		WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})).
		WithMailer(mailer).
		WithAuditSink(codegate.NoOpSink{}).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	if err := engine.Principals().Provision(ctx, "alice@example.com", time.Now()); err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if err := engine.IssueCode(ctx, "alice@example.com"); err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}
	token, err := engine.VerifyCode(ctx, "alice@example.com", codeRe.FindString(mailer.body))
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	return engine, "alice@example.com", token
}

func TestSessionGuardPassesValidSession(t *testing.T) {
	engine, identity, token := newGuardedEngine(t)

	var liveness codegate.Liveness
	var seen bool
	handler := SessionGuard(engine, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		liveness, seen = LivenessFromContext(r.Context())
	}))

	r := httptest.NewRequest("GET", "/session", nil)
	r.Header.Set(HeaderIdentity, identity)
	r.Header.Set(HeaderSession, token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !seen {
		t.Fatal("expected liveness result in context")
	}
	if liveness.ExpiresAt.IsZero() {
		t.Fatal("expected an expiry on the refreshed session")
	}
}

func TestSessionGuardRejectsMissingHeaders(t *testing.T) {
	engine, _, _ := newGuardedEngine(t)

	handler := SessionGuard(engine, false)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/session", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSessionGuardRejectsDeadSession(t *testing.T) {
	engine, identity, _ := newGuardedEngine(t)

	handler := SessionGuard(engine, false)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest("GET", "/session", nil)
	r.Header.Set(HeaderIdentity, identity)
	r.Header.Set(HeaderSession, "deadbeef")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Sessão expirada") {
		t.Fatalf("expected the configured expiry message, got %q", w.Body.String())
	}
}
