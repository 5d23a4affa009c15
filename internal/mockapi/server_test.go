package mockapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Options{JWTSecret: "test-secret", Seed: true}, logger.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// call sends one JSON request to the handler and decodes the response into out
func call(t *testing.T, s *Server, method, path, token string, body, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if out != nil {
		if err := json.Unmarshal(repository.Unwrap(rec.Body.Bytes()), out); err != nil {
			t.Fatalf("%s %s: decode %s: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func loginAs(t *testing.T, s *Server, email string) *repository.Session {
	t.Helper()
	var session repository.Session
	code := call(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": SeedPassword}, &session)
	if code != http.StatusOK {
		t.Fatalf("login %s status = %d", email, code)
	}
	return &session
}

func seededListing(t *testing.T, s *Server, titlePrefix string) repository.Listing {
	t.Helper()
	var page repository.ListingPage
	if code := call(t, s, http.MethodGet, "/api/listings", "", nil, &page); code != http.StatusOK {
		t.Fatalf("list listings status = %d", code)
	}
	for _, l := range page.Listings {
		if strings.HasPrefix(l.Title, titlePrefix) {
			return l
		}
	}
	t.Fatalf("listing %q not seeded", titlePrefix)
	return repository.Listing{}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	if code := call(t, s, http.MethodGet, "/health", "", nil, &body); code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("health = %d %v", code, body)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		email    string
		password string
		want     int
		wantCode string
	}{
		{"valid", BuyerEmail, SeedPassword, http.StatusOK, ""},
		{"wrong password", BuyerEmail, "nope123", http.StatusUnauthorized, ""},
		{"unknown user", "ghost@campus.edu", SeedPassword, http.StatusUnauthorized, ""},
		{"unverified", UnverifiedEmail, SeedPassword, http.StatusForbidden, repository.CodeEmailNotVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Code  string `json:"code"`
				Token string `json:"token"`
			}
			code := call(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{"email": tt.email, "password": tt.password}, &body)
			if code != tt.want {
				t.Fatalf("status = %d, want %d", code, tt.want)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if (tt.want == http.StatusOK) != (body.Token != "") {
				t.Errorf("token = %q", body.Token)
			}
		})
	}
}

func TestReserveRules(t *testing.T) {
	s := newTestServer(t)
	buyer := loginAs(t, s, BuyerEmail)
	seller := loginAs(t, s, SellerEmail)
	l := seededListing(t, s, "Calculus")
	path := "/api/listings/" + l.ID + "/reserve"

	if code := call(t, s, http.MethodPost, path, "", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous reserve status = %d, want %d", code, http.StatusUnauthorized)
	}
	if code := call(t, s, http.MethodPost, path, seller.Token, nil, nil); code != http.StatusForbidden {
		t.Errorf("own reserve status = %d, want %d", code, http.StatusForbidden)
	}

	var res struct {
		Transaction repository.Transaction `json:"transaction"`
	}
	if code := call(t, s, http.MethodPost, path, buyer.Token, nil, &res); code != http.StatusCreated {
		t.Fatalf("reserve status = %d, want %d", code, http.StatusCreated)
	}
	if res.Transaction.Status != repository.TransactionReserved || res.Transaction.Amount != l.Price {
		t.Errorf("transaction = %+v", res.Transaction)
	}

	if code := call(t, s, http.MethodPost, path, buyer.Token, nil, nil); code != http.StatusConflict {
		t.Errorf("second reserve status = %d, want %d", code, http.StatusConflict)
	}
	if n := s.TransactionCount(l.ID); n != 1 {
		t.Errorf("TransactionCount() = %d, want 1", n)
	}
	if n := s.RequestCount(http.MethodPost, path); n != 4 {
		t.Errorf("RequestCount() = %d, want 4", n)
	}

	var got repository.Listing
	call(t, s, http.MethodGet, "/api/listings/"+l.ID, "", nil, &got)
	if got.Status != repository.ListingReserved {
		t.Errorf("listing status = %s, want %s", got.Status, repository.ListingReserved)
	}
}

func TestRevokeRejectsToken(t *testing.T) {
	s := newTestServer(t)
	buyer := loginAs(t, s, BuyerEmail)

	if code := call(t, s, http.MethodGet, "/api/auth/profile", buyer.Token, nil, nil); code != http.StatusOK {
		t.Fatalf("profile status = %d", code)
	}
	s.Revoke(buyer.ID)
	if code := call(t, s, http.MethodGet, "/api/auth/profile", buyer.Token, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("revoked profile status = %d, want %d", code, http.StatusUnauthorized)
	}
}

func TestAdminRequired(t *testing.T) {
	s := newTestServer(t)
	buyer := loginAs(t, s, BuyerEmail)
	admin := loginAs(t, s, AdminEmail)

	if code := call(t, s, http.MethodGet, "/api/admin/stats", buyer.Token, nil, nil); code != http.StatusForbidden {
		t.Errorf("buyer stats status = %d, want %d", code, http.StatusForbidden)
	}

	var stats repository.AdminStats
	if code := call(t, s, http.MethodGet, "/api/admin/stats", admin.Token, nil, &stats); code != http.StatusOK {
		t.Fatalf("admin stats status = %d", code)
	}
	if stats.TotalUsers != 4 || stats.TotalListings != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWebSocketAuth(t *testing.T) {
	s := newTestServer(t)
	buyer := loginAs(t, s, BuyerEmail)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	tests := []struct {
		name       string
		token      string
		wantStatus string
		wantError  string
	}{
		{"valid token", buyer.Token, "authenticated", ""},
		{"bad token", "garbage", "", "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				t.Fatalf("Dial() error = %v", err)
			}
			defer conn.Close()

			if err := conn.WriteJSON(map[string]string{"token": tt.token}); err != nil {
				t.Fatalf("WriteJSON() error = %v", err)
			}
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))

			var ack map[string]string
			if err := conn.ReadJSON(&ack); err != nil {
				t.Fatalf("ReadJSON() error = %v", err)
			}
			if ack["status"] != tt.wantStatus || ack["error"] != tt.wantError {
				t.Errorf("ack = %v", ack)
			}
		})
	}
}
