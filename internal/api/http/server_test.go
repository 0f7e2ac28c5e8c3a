package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/taskboard/internal/api/http/handlers"
	"github.com/spec-kit/taskboard/internal/config"
	"github.com/spec-kit/taskboard/internal/events"
	"github.com/spec-kit/taskboard/internal/lock"
	"github.com/spec-kit/taskboard/internal/observability"
	"github.com/spec-kit/taskboard/internal/repository"
	"github.com/spec-kit/taskboard/internal/service"
)

type apiResponse struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type ticketBody struct {
	ID                  string   `json:"id"`
	ClaimCount          int      `json:"claim_count"`
	Claimants           []string `json:"claimants"`
	State               string   `json:"state"`
	PendingVerification bool     `json:"pending_verification"`
	Verified            bool     `json:"verified"`
}

type account struct {
	ID    string
	Token string
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "api.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("bolt.Open() error: %v", err)
	}
	store, err := repository.NewBoltStore(db)
	if err != nil {
		t.Fatalf("NewBoltStore() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := zap.NewNop()
	locker := lock.NewMemoryLocker()
	dispatcher := events.NewInMemoryDispatcher()
	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		BcryptCost:            bcrypt.MinCost,
	}, store.Users(), logger)

	return NewServer(ServerDependencies{
		App:     config.AppConfig{Name: "taskboard", Version: "test", RequestTimeoutSeconds: 5},
		Logger:  logger,
		Metrics: observability.NewMetrics(),
		Users:   store.Users(),
		Auth:    authService,
		Tickets: service.NewTicketService(service.TicketDependencies{
			Store: store, Locker: locker, Dispatcher: dispatcher, Logger: logger,
		}),
		Friendship: service.NewFriendshipService(service.FriendshipDependencies{
			Store: store, Locker: locker, Dispatcher: dispatcher, Logger: logger,
		}),
		Readiness: map[string]handlers.Pinger{"store": store},
	})
}

func do(t *testing.T, app *fiber.App, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out apiResponse
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func signup(t *testing.T, app *fiber.App, email string) account {
	t.Helper()
	status, resp := do(t, app, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    email,
		"password": "s3cret!",
		"name":     email,
	})
	if status != http.StatusCreated {
		t.Fatalf("signup %s: status %d, %+v", email, status, resp.Error)
	}
	var data struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode signup: %v", err)
	}
	return account{ID: data.User.ID, Token: data.Auth.Token}
}

func decodeTicket(t *testing.T, resp apiResponse) ticketBody {
	t.Helper()
	var ticket ticketBody
	if err := json.Unmarshal(resp.Data, &ticket); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	return ticket
}

func expectError(t *testing.T, status int, resp apiResponse, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus || resp.Error == nil || resp.Error.Code != wantCode {
		t.Fatalf("status = %d, error = %+v, want %d %s", status, resp.Error, wantStatus, wantCode)
	}
	if resp.Message == "" || resp.Message != resp.Error.Message {
		t.Fatalf("top-level message = %q, want the error message %q", resp.Message, resp.Error.Message)
	}
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	a := signup(t, app, "a@example.com")
	b := signup(t, app, "b@example.com")
	c := signup(t, app, "c@example.com")
	d := signup(t, app, "d@example.com")

	status, resp := do(t, app, http.MethodPost, "/tasks", a.Token, map[string]string{"task": "build a shed"})
	if status != http.StatusCreated {
		t.Fatalf("create: status %d, %+v", status, resp.Error)
	}
	ticket := decodeTicket(t, resp)
	if ticket.State != "OPEN" || ticket.ClaimCount != 0 {
		t.Fatalf("created ticket = %+v", ticket)
	}

	claimPath := "/tasks/" + ticket.ID + "/claim"
	if status, resp = do(t, app, http.MethodPost, claimPath, b.Token, nil); status != http.StatusOK {
		t.Fatalf("claim b: status %d, %+v", status, resp.Error)
	}
	if status, resp = do(t, app, http.MethodPost, claimPath, c.Token, nil); status != http.StatusOK {
		t.Fatalf("claim c: status %d, %+v", status, resp.Error)
	}
	if got := decodeTicket(t, resp); got.ClaimCount != 2 || got.State != "FULLY_CLAIMED" {
		t.Fatalf("after two claims = %+v", got)
	}

	status, resp = do(t, app, http.MethodPost, claimPath, d.Token, nil)
	expectError(t, status, resp, http.StatusConflict, "ALREADY_FULL")
	status, resp = do(t, app, http.MethodPost, claimPath, b.Token, nil)
	expectError(t, status, resp, http.StatusConflict, "ALREADY_FULL")

	status, resp = do(t, app, http.MethodPost, "/tasks/"+ticket.ID+"/complete", d.Token, nil)
	expectError(t, status, resp, http.StatusForbidden, "FORBIDDEN")
	if status, resp = do(t, app, http.MethodPost, "/tasks/"+ticket.ID+"/complete", b.Token, nil); status != http.StatusOK {
		t.Fatalf("complete: status %d, %+v", status, resp.Error)
	}

	verifyPath := "/tasks/" + ticket.ID + "/verify"
	status, resp = do(t, app, http.MethodPost, verifyPath, a.Token, map[string]any{})
	expectError(t, status, resp, http.StatusBadRequest, "VALIDATION_FAILED")
	status, resp = do(t, app, http.MethodPost, verifyPath, b.Token, map[string]any{"approve": false})
	expectError(t, status, resp, http.StatusForbidden, "FORBIDDEN")

	status, resp = do(t, app, http.MethodPost, verifyPath, a.Token, map[string]any{"approve": false})
	if status != http.StatusOK {
		t.Fatalf("reject: status %d, %+v", status, resp.Error)
	}
	rejected := decodeTicket(t, resp)
	if rejected.ClaimCount != 1 || rejected.PendingVerification || rejected.State != "PARTIALLY_CLAIMED" {
		t.Fatalf("after reject = %+v", rejected)
	}

	status, resp = do(t, app, http.MethodPost, verifyPath, a.Token, map[string]any{"approve": true})
	expectError(t, status, resp, http.StatusConflict, "NO_PENDING_REQUEST")

	_, _ = do(t, app, http.MethodPost, "/tasks/"+ticket.ID+"/complete", c.Token, nil)
	status, resp = do(t, app, http.MethodPost, verifyPath, a.Token, map[string]any{"approve": true})
	if status != http.StatusOK {
		t.Fatalf("approve: status %d, %+v", status, resp.Error)
	}
	if got := decodeTicket(t, resp); !got.Verified || got.ClaimCount != 2 || got.State != "VERIFIED" {
		t.Fatalf("after approve = %+v", got)
	}

	status, resp = do(t, app, http.MethodGet, "/tasks/"+ticket.ID+"/history", a.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("history: status %d", status)
	}
	var history []map[string]any
	_ = json.Unmarshal(resp.Data, &history)
	if len(history) != 7 {
		t.Errorf("history has %d entries, want 7", len(history))
	}
}

func TestClaimOnBehalfAndListings(t *testing.T) {
	app := newTestApp(t)
	a := signup(t, app, "a@example.com")
	b := signup(t, app, "b@example.com")

	_, resp := do(t, app, http.MethodPost, "/tasks", a.Token, map[string]string{"task": "rake leaves"})
	ticket := decodeTicket(t, resp)

	status, resp := do(t, app, http.MethodPost, "/tasks/"+ticket.ID+"/claim?assignee_id="+b.ID, a.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("claim on behalf: status %d, %+v", status, resp.Error)
	}
	if got := decodeTicket(t, resp); len(got.Claimants) != 1 || got.Claimants[0] != b.ID {
		t.Fatalf("claimants = %v, want [%s]", got.Claimants, b.ID)
	}

	status, resp = do(t, app, http.MethodPost, "/tasks/"+ticket.ID+"/claim", a.Token, map[string]string{"assignee_id": "ghost"})
	expectError(t, status, resp, http.StatusNotFound, "NOT_FOUND")

	for path, want := range map[string]int{
		"/tasks":         1,
		"/tasks/mine":    1,
		"/tasks/created": 0,
		"/tasks/taken":   1,
	} {
		status, resp := do(t, app, http.MethodGet, path, b.Token, nil)
		if status != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, status)
		}
		var list []ticketBody
		_ = json.Unmarshal(resp.Data, &list)
		if len(list) != want {
			t.Errorf("GET %s returned %d tickets, want %d", path, len(list), want)
		}
	}

	status, resp = do(t, app, http.MethodGet, "/tasks/missing", b.Token, nil)
	expectError(t, status, resp, http.StatusNotFound, "NOT_FOUND")
	status, resp = do(t, app, http.MethodPost, "/tasks", a.Token, map[string]string{"task": " "})
	expectError(t, status, resp, http.StatusBadRequest, "VALIDATION_FAILED")
}

func TestFriendshipOverHTTP(t *testing.T) {
	app := newTestApp(t)
	a := signup(t, app, "a@example.com")
	b := signup(t, app, "b@example.com")

	status, resp := do(t, app, http.MethodPost, "/friends/"+a.ID+"/request", a.Token, nil)
	expectError(t, status, resp, http.StatusBadRequest, "SELF_REQUEST")

	if status, resp = do(t, app, http.MethodPost, "/friends/"+b.ID+"/request", a.Token, nil); status != http.StatusOK {
		t.Fatalf("request: status %d, %+v", status, resp.Error)
	}
	if resp.Message != "friend request sent" {
		t.Errorf("message = %q", resp.Message)
	}
	status, resp = do(t, app, http.MethodPost, "/friends/"+a.ID+"/request", b.Token, nil)
	expectError(t, status, resp, http.StatusConflict, "ALREADY_PENDING")

	_, resp = do(t, app, http.MethodGet, "/friends/requests", b.Token, nil)
	var received []struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(resp.Data, &received)
	if len(received) != 1 || received[0].ID != a.ID {
		t.Fatalf("received requests = %+v", received)
	}

	status, resp = do(t, app, http.MethodPost, "/friends/"+b.ID+"/approve", a.Token, nil)
	expectError(t, status, resp, http.StatusConflict, "NO_SUCH_REQUEST")
	if status, resp = do(t, app, http.MethodPost, "/friends/"+a.ID+"/approve", b.Token, nil); status != http.StatusOK {
		t.Fatalf("approve: status %d, %+v", status, resp.Error)
	}

	for _, acct := range []account{a, b} {
		_, resp = do(t, app, http.MethodGet, "/friends", acct.Token, nil)
		var friends []struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(resp.Data, &friends)
		if len(friends) != 1 {
			t.Errorf("friends of %s = %+v, want one", acct.ID, friends)
		}
	}

	status, resp = do(t, app, http.MethodGet, "/users/me", a.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("me: status %d", status)
	}
	var me struct {
		Friends []string `json:"friends"`
	}
	_ = json.Unmarshal(resp.Data, &me)
	if len(me.Friends) != 1 || me.Friends[0] != b.ID {
		t.Errorf("me.friends = %v", me.Friends)
	}
}

func TestAuthBoundary(t *testing.T) {
	app := newTestApp(t)
	signup(t, app, "a@example.com")

	status, resp := do(t, app, http.MethodGet, "/tasks", "", nil)
	expectError(t, status, resp, http.StatusUnauthorized, "UNAUTHORIZED")
	status, resp = do(t, app, http.MethodGet, "/tasks", "garbage", nil)
	expectError(t, status, resp, http.StatusUnauthorized, "UNAUTHORIZED")

	status, resp = do(t, app, http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@example.com", "password": "s3cret!"})
	expectError(t, status, resp, http.StatusConflict, "EMAIL_TAKEN")

	status, resp = do(t, app, http.MethodPost, "/auth/signin", "", map[string]string{"email": "a@example.com", "password": "nope"})
	expectError(t, status, resp, http.StatusUnauthorized, "UNAUTHORIZED")

	status, resp = do(t, app, http.MethodPost, "/auth/signin", "", map[string]string{"email": "A@example.com", "password": "s3cret!"})
	if status != http.StatusOK {
		t.Fatalf("signin: status %d, %+v", status, resp.Error)
	}

	status, _ = do(t, app, http.MethodGet, "/health/ready", "", nil)
	if status != http.StatusOK {
		t.Errorf("ready: status %d", status)
	}
	status, resp = do(t, app, http.MethodGet, "/nowhere", "", nil)
	expectError(t, status, resp, http.StatusNotFound, "NOT_FOUND")

	status, resp = do(t, app, http.MethodGet, "/metrics", "", nil)
	if status != http.StatusOK || len(resp.Data) == 0 {
		t.Errorf("metrics: status %d", status)
	}
}
