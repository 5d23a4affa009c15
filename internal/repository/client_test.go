package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/logger"
)

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"envelope", `{"success":true,"message":"ok","data":{"_id":"1"}}`, `{"_id":"1"}`},
		{"envelope without data", `{"success":true,"message":"ok"}`, `{"success":true,"message":"ok"}`},
		{"null data", `{"success":true,"data":null}`, `{"success":true,"data":null}`},
		{"bare object", `{"_id":"1","title":"Lamp"}`, `{"_id":"1","title":"Lamp"}`},
		{"bare array", `[1,2,3]`, `[1,2,3]`},
		{"not json", `hello`, `hello`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(Unwrap([]byte(tt.body))); got != tt.want {
				t.Errorf("Unwrap() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    apperrors.Kind
		wantMsg string
	}{
		{"unauthorized", 401, `{"message":"Token expired"}`, apperrors.KindUnauthenticated, "Token expired"},
		{"unverified", 403, `{"message":"Verify first","code":"EMAIL_NOT_VERIFIED"}`, apperrors.KindUnverified, "Verify first"},
		{"forbidden", 403, `{"message":"Not yours"}`, apperrors.KindForbidden, "Not yours"},
		{"not found", 404, `{"error":"No such listing"}`, apperrors.KindNotFound, "No such listing"},
		{"conflict", 409, `{"message":"Listing is not available"}`, apperrors.KindInvalidState, "Listing is not available"},
		{"server", 503, ``, apperrors.KindServer, "Server error, please try again later"},
		{"bad request", 400, `{"message":"Price is required"}`, apperrors.KindUnknown, "Price is required"},
		{"bad request without body", 422, `not json`, apperrors.KindUnknown, "Request failed (status 422)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.status, []byte(tt.body))
			if err.Kind != tt.want {
				t.Errorf("Classify() kind = %s, want %s", err.Kind, tt.want)
			}
			if err.Message != tt.wantMsg {
				t.Errorf("Classify() message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Status != tt.status {
				t.Errorf("Classify() status = %d, want %d", err.Status, tt.status)
			}
		})
	}
}

func TestRefDecoding(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Ref
	}{
		{"bare id", `"abc123"`, Ref{ID: "abc123"}},
		{"populated", `{"_id":"u1","name":"Selam","email":"s@campus.edu"}`, Ref{ID: "u1", Name: "Selam", Email: "s@campus.edu"}},
		{"alternate id", `{"id":"u2","name":"Dawit"}`, Ref{ID: "u2", Name: "Dawit"}},
		{"null", `null`, Ref{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Ref
			if err := json.Unmarshal([]byte(tt.json), &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got.ID != tt.want.ID || got.Name != tt.want.Name || got.Email != tt.want.Email {
				t.Errorf("Unmarshal() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if got := (Ref{}).DisplayName(); got != "User" {
		t.Errorf("DisplayName() = %q, want %q", got, "User")
	}
}

func TestSessionDecodingAcceptsBothIDs(t *testing.T) {
	var s Session
	if err := json.Unmarshal([]byte(`{"id":"u9","name":"Hana","token":"t"}`), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if s.ID != "u9" || !s.IsAuthenticated() {
		t.Errorf("Unmarshal() = %+v", s)
	}

	var nilSession *Session
	if nilSession.IsAuthenticated() {
		t.Error("nil session IsAuthenticated() = true")
	}
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"bare array", `[{"_id":"1"},{"_id":"2"}]`, 2, false},
		{"wrapped", `{"listings":[{"_id":"1"}],"total":1}`, 1, false},
		{"missing key", `{"total":0}`, 0, false},
		{"null", `null`, 0, false},
		{"empty", ``, 0, false},
		{"garbage", `{"listings":"nope"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out []Listing
			err := decodeList(json.RawMessage(tt.raw), "listings", &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeList() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(out) != tt.want {
				t.Errorf("decodeList() len = %d, want %d", len(out), tt.want)
			}
		})
	}
}

func TestClientDo(t *testing.T) {
	var (
		mu      sync.Mutex
		gotAuth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()

		switch r.URL.Path {
		case "/envelope":
			w.Write([]byte(`{"success":true,"message":"ok","data":{"_id":"l1","title":"Desk lamp","price":300}}`))
		case "/bare":
			w.Write([]byte(`{"_id":"l2","title":"Kettle","price":150}`))
		case "/broken":
			w.Write([]byte(`{"_id":`))
		case "/expired":
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Token expired"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 5*time.Second, logger.Nop())
	c.SetTokenSource(func() string { return "tok-1" })

	var rejected []string
	c.OnUnauthorized(func(token string) { rejected = append(rejected, token) })

	ctx := context.Background()

	var l Listing
	if err := c.Do(ctx, http.MethodGet, "/envelope", nil, nil, &l); err != nil {
		t.Fatalf("Do(envelope) error = %v", err)
	}
	if l.ID != "l1" || l.Price != 300 {
		t.Errorf("Do(envelope) = %+v", l)
	}
	mu.Lock()
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-1")
	}
	mu.Unlock()

	if err := c.Do(ctx, http.MethodGet, "/bare", nil, nil, &l); err != nil || l.ID != "l2" {
		t.Errorf("Do(bare) = %+v, %v", l, err)
	}

	err := c.Do(ctx, http.MethodGet, "/broken", nil, nil, &l)
	if apperrors.KindOf(err) != apperrors.KindServer {
		t.Errorf("Do(broken) error = %v, want %s", err, apperrors.KindServer)
	}

	err = c.DoPublic(ctx, http.MethodGet, "/expired", nil, nil, nil)
	if apperrors.KindOf(err) != apperrors.KindUnauthenticated {
		t.Errorf("DoPublic(expired) error = %v, want %s", err, apperrors.KindUnauthenticated)
	}
	if len(rejected) != 0 {
		t.Errorf("DoPublic() triggered the unauthorized hook with %v", rejected)
	}
	mu.Lock()
	if gotAuth != "" {
		t.Errorf("DoPublic() sent Authorization %q", gotAuth)
	}
	mu.Unlock()

	err = c.Do(ctx, http.MethodGet, "/expired", nil, nil, nil)
	if apperrors.KindOf(err) != apperrors.KindUnauthenticated {
		t.Errorf("Do(expired) error = %v, want %s", err, apperrors.KindUnauthenticated)
	}
	if len(rejected) != 1 || rejected[0] != "tok-1" {
		t.Errorf("unauthorized hook calls = %v, want [tok-1]", rejected)
	}
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, logger.Nop())
	err := c.DoPublic(context.Background(), http.MethodGet, "/anything", nil, nil, nil)
	if apperrors.KindOf(err) != apperrors.KindNetwork {
		t.Errorf("DoPublic() error = %v, want %s", err, apperrors.KindNetwork)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.DoPublic(ctx, http.MethodGet, "/anything", nil, nil, nil)
	if !IsCanceled(err) {
		t.Errorf("DoPublic(cancelled) error = %v, want context cancellation", err)
	}
}
