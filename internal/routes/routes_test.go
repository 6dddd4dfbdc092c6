package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/securebank/securebank/internal/config"
	"github.com/securebank/securebank/internal/httperr"
	"github.com/securebank/securebank/internal/logging"
	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/totp"
)

type client struct {
	t   *testing.T
	app *fiber.App
}

func newTestApp(t *testing.T) *client {
	t.Helper()
	logger := logging.Discard()
	cfg := config.Config{
		AppName:         "SecureBank",
		AppEnv:          "test",
		SessionSecret:   "routes-test-session-secret-0123456789",
		SessionTTL:      time.Hour,
		IdempotencyTTL:  time.Minute,
		StartingBalance: decimal.RequireFromString("500.00"),
		TOTPIssuer:      "SecureBank",
		LoginRateLimit:  10,
	}
	app := fiber.New(fiber.Config{ErrorHandler: httperr.Handler(logger)})
	if err := Setup(app, Deps{Cfg: cfg, Logger: logger, Metrics: metrics.New(), HashCost: bcrypt.MinCost}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return &client{t: t, app: app}
}

func (c *client) doRaw(method, path, token string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("encode: %v", err)
		}
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := c.app.Test(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read %s %s: %v", method, path, err)
	}
	return resp, raw
}

func (c *client) do(method, path, token string, body any) (*http.Response, map[string]any) {
	c.t.Helper()
	resp, raw := c.doRaw(method, path, token, body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			c.t.Fatalf("decode %s: %v", raw, err)
		}
	} else if len(raw) > 0 && raw[0] == '[' {
		var list []any
		if err := json.Unmarshal(raw, &list); err != nil {
			c.t.Fatalf("decode %s: %v", raw, err)
		}
		out["items"] = list
	}
	return resp, out
}

func (c *client) register(name, email string) {
	c.t.Helper()
	resp, body := c.do(fiber.MethodPost, "/register", "", map[string]string{"name": name, "email": email, "password": "password1"})
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: %d %v", email, resp.StatusCode, body)
	}
}

func (c *client) login(email string) string {
	c.t.Helper()
	resp, body := c.do(fiber.MethodPost, "/login", "", map[string]string{"email": email, "password": "password1"})
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: %d %v", email, resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	return token
}

func TestTransferFlow(t *testing.T) {
	c := newTestApp(t)
	c.register("Alice", "alice@example.com")
	c.register("Bob", "bob@example.com")
	alice := c.login("alice@example.com")
	bob := c.login("bob@example.com")

	resp, body := c.do(fiber.MethodPost, "/transfer", alice, map[string]any{"recipientEmail": "Bob@Example.com", "amount": 150})
	if resp.StatusCode != http.StatusOK || body["balance"] != "350.00" || body["transactionId"] == "" {
		t.Fatalf("unexpected transfer response: %d %v", resp.StatusCode, body)
	}

	_, body = c.do(fiber.MethodGet, "/balance", bob, nil)
	if body["balance"] != "650.00" {
		t.Fatalf("expected bob at 650.00, got %v", body)
	}

	resp, body = c.do(fiber.MethodPost, "/transfer", alice, map[string]any{"recipientEmail": "bob@example.com", "amount": "400"})
	if resp.StatusCode != http.StatusBadRequest || body["code"] != httperr.CodeInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %d %v", resp.StatusCode, body)
	}

	resp, body = c.do(fiber.MethodPost, "/transfer", alice, map[string]any{"recipientEmail": "nobody@example.com", "amount": 1})
	if resp.StatusCode != http.StatusNotFound || body["code"] != httperr.CodeNotFound {
		t.Fatalf("expected not found, got %d %v", resp.StatusCode, body)
	}

	resp, body = c.do(fiber.MethodPost, "/transfer", alice, map[string]any{"recipientEmail": "bob@example.com", "amount": -3})
	if resp.StatusCode != http.StatusBadRequest || body["code"] != httperr.CodeInvalidInput {
		t.Fatalf("expected invalid input, got %d %v", resp.StatusCode, body)
	}

	_, body = c.do(fiber.MethodGet, "/transactions", alice, nil)
	items, _ := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one transaction, got %v", body)
	}
	tx := items[0].(map[string]any)
	recipient := tx["recipient"].(map[string]any)
	if tx["type"] != "SEND" || tx["amount"] != "-150.00" || recipient["email"] != "bob@example.com" {
		t.Fatalf("unexpected transaction view: %v", tx)
	}

	_, body = c.do(fiber.MethodGet, "/user", alice, nil)
	if body["email"] != "alice@example.com" || body["balance"] != "350.00" {
		t.Fatalf("unexpected profile: %v", body)
	}
}

func TestRegisterAndLoginErrors(t *testing.T) {
	c := newTestApp(t)
	c.register("Alice", "alice@example.com")

	resp, body := c.do(fiber.MethodPost, "/register", "", map[string]string{"name": "Again", "email": "ALICE@example.com", "password": "password1"})
	if resp.StatusCode != http.StatusConflict || body["code"] != httperr.CodeEmailTaken {
		t.Fatalf("expected email taken, got %d %v", resp.StatusCode, body)
	}

	resp, body = c.do(fiber.MethodPost, "/register", "", map[string]string{"name": "", "email": "nope", "password": "x"})
	if resp.StatusCode != http.StatusBadRequest || body["code"] != httperr.CodeInvalidInput {
		t.Fatalf("expected invalid input, got %d %v", resp.StatusCode, body)
	}

	unknown, unknownBody := c.doRaw(fiber.MethodPost, "/login", "", map[string]string{"email": "ghost@example.com", "password": "password1"})
	wrong, wrongBody := c.doRaw(fiber.MethodPost, "/login", "", map[string]string{"email": "alice@example.com", "password": "wrong-password"})
	if unknown.StatusCode != http.StatusUnauthorized || wrong.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401s, got %d and %d", unknown.StatusCode, wrong.StatusCode)
	}
	if !bytes.Equal(unknownBody, wrongBody) {
		t.Fatalf("login failures must be indistinguishable: %s vs %s", unknownBody, wrongBody)
	}
	if unknown.Header.Get(fiber.HeaderContentType) != wrong.Header.Get(fiber.HeaderContentType) {
		t.Fatalf("content types differ: %q vs %q", unknown.Header.Get(fiber.HeaderContentType), wrong.Header.Get(fiber.HeaderContentType))
	}

	resp, _ = c.do(fiber.MethodGet, "/balance", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", resp.StatusCode)
	}
}

func TestTwoFactorStepUpAndLogout(t *testing.T) {
	c := newTestApp(t)
	c.register("Alice", "alice@example.com")
	token := c.login("alice@example.com")

	statusTwice := func(want string) {
		t.Helper()
		first, firstBody := c.doRaw(fiber.MethodGet, "/2fa/status", token, nil)
		second, secondBody := c.doRaw(fiber.MethodGet, "/2fa/status", token, nil)
		if first.StatusCode != http.StatusOK || second.StatusCode != http.StatusOK {
			t.Fatalf("status: %d then %d", first.StatusCode, second.StatusCode)
		}
		if !bytes.Equal(firstBody, secondBody) || string(firstBody) != want {
			t.Fatalf("expected repeated status reads to return %s, got %s then %s", want, firstBody, secondBody)
		}
	}
	statusTwice(`{"isEnabled":false,"isVerified":false}`)

	_, body := c.do(fiber.MethodGet, "/2fa/setup", token, nil)
	secret, _ := body["secret"].(string)
	if secret == "" {
		t.Fatalf("expected secret, got %v", body)
	}
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	resp, body := c.do(fiber.MethodPost, "/2fa/verify", token, map[string]string{"code": code})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: %d %v", resp.StatusCode, body)
	}
	statusTwice(`{"isEnabled":true,"isVerified":true}`)

	resp, body = c.do(fiber.MethodPost, "/login", "", map[string]string{"email": "alice@example.com", "password": "password1"})
	if resp.StatusCode != http.StatusUnauthorized || body["code"] != httperr.CodeSecondFactorNeeded {
		t.Fatalf("expected second factor required, got %d %v", resp.StatusCode, body)
	}
	resp, body = c.do(fiber.MethodPost, "/login", "", map[string]string{"email": "alice@example.com", "password": "password1", "code": "abcdef"})
	if resp.StatusCode != http.StatusUnauthorized || body["code"] != httperr.CodeInvalidCode {
		t.Fatalf("expected invalid code, got %d %v", resp.StatusCode, body)
	}
	resp, body = c.do(fiber.MethodPost, "/login", "", map[string]string{"email": "alice@example.com", "password": "password1", "code": code})
	if resp.StatusCode != http.StatusOK || body["sessionIssued"] != true {
		t.Fatalf("expected session, got %d %v", resp.StatusCode, body)
	}
	fresh, _ := body["token"].(string)

	resp, _ = c.do(fiber.MethodPost, "/logout", fresh, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: %d", resp.StatusCode)
	}
	for _, tok := range []string{token, fresh} {
		if resp, _ := c.do(fiber.MethodGet, "/2fa/status", tok, nil); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected revoked session, got %d", resp.StatusCode)
		}
	}
}

func TestOperationalEndpoints(t *testing.T) {
	c := newTestApp(t)
	c.register("Alice", "alice@example.com")

	resp, _ := c.do(fiber.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	if resp.Header.Get(fiber.HeaderXFrameOptions) != "DENY" || resp.Header.Get(fiber.HeaderContentSecurityPolicy) != "frame-ancestors 'none'" {
		t.Fatalf("missing security headers: %v", resp.Header)
	}
	if resp.Header.Get(fiber.HeaderXRequestID) == "" {
		t.Fatalf("missing request id")
	}

	_, body := c.do(fiber.MethodGet, "/debug/users", "", nil)
	items, _ := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one debug user, got %v", body)
	}
	if _, leaked := items[0].(map[string]any)["secret"]; leaked {
		t.Fatalf("debug listing leaked a secret")
	}

	resp, _ = c.do(fiber.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
}
