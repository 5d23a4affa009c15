package service

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pesio-ai/campustrade-client/internal/apperrors"
	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/internal/mockapi"
	"github.com/pesio-ai/campustrade-client/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestAPI starts a seeded mock API for one test
func newTestAPI(t *testing.T) (*mockapi.Server, string) {
	t.Helper()

	api, err := mockapi.New(mockapi.Options{JWTSecret: "test-secret", Seed: true}, logger.Nop())
	if err != nil {
		t.Fatalf("mockapi.New() error = %v", err)
	}
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		api.Close()
		srv.Close()
	})
	return api, srv.URL
}

// harness is one client installation (one actor) talking to the mock API
type harness struct {
	api          *mockapi.Server
	baseURL      string
	store        *repository.MemoryStore
	client       *repository.Client
	sessionRepo  *repository.SessionRepository
	session      *SessionService
	listings     *repository.ListingRepository
	transactions *repository.TransactionRepository
	messages     *repository.MessageRepository
	workflow     *WorkflowService
	market       *MarketplaceService
	admin        *AdminService
	phases       *phaseLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api, baseURL := newTestAPI(t)
	return newHarnessFor(t, api, baseURL)
}

// newHarnessFor creates another client installation against the same API
func newHarnessFor(t *testing.T, api *mockapi.Server, baseURL string) *harness {
	t.Helper()

	log := logger.Nop()
	h := &harness{
		api:     api,
		baseURL: baseURL,
		store:   repository.NewMemoryStore(),
		client:  repository.NewClient(baseURL, 5*time.Second, log),
	}
	h.sessionRepo = repository.NewSessionRepository(h.store, "", log)
	h.listings = repository.NewListingRepository(h.client, log)
	h.transactions = repository.NewTransactionRepository(h.client, log)
	h.messages = repository.NewMessageRepository(h.client, log)
	reviews := repository.NewReviewRepository(h.client, log)
	reports := repository.NewReportRepository(h.client, log)

	h.session = NewSessionService(h.client, repository.NewAuthRepository(h.client, log), h.sessionRepo, log)
	tracker := NewTracker()
	h.phases = recordPhases(t, tracker)
	h.workflow = NewWorkflowService(h.session, h.listings, h.transactions, h.messages, reviews, reports, tracker, log)
	h.market = NewMarketplaceService(h.session, h.listings, h.transactions, reviews, reports, log)
	h.admin = NewAdminService(h.session, repository.NewAdminRepository(h.client, log), reports, log)

	if err := h.session.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(h.session.Teardown)
	return h
}

func (h *harness) login(t *testing.T, email string) *repository.Session {
	t.Helper()
	s, err := h.session.Login(context.Background(), email, mockapi.SeedPassword)
	if err != nil {
		t.Fatalf("Login(%s) error = %v", email, err)
	}
	return s
}

// restore installs a session record directly, as if persisted by an earlier run
func (h *harness) restore(t *testing.T, s *repository.Session) {
	t.Helper()
	if err := h.sessionRepo.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := h.session.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
}

// listing finds an Available seeded listing by title prefix
func (h *harness) listing(t *testing.T, titlePrefix string) *repository.Listing {
	t.Helper()
	page, err := h.market.Listings(context.Background(), repository.ListingFilters{})
	if err != nil {
		t.Fatalf("Listings() error = %v", err)
	}
	for i := range page.Listings {
		if strings.HasPrefix(page.Listings[i].Title, titlePrefix) {
			return &page.Listings[i]
		}
	}
	t.Fatalf("listing %q not found", titlePrefix)
	return nil
}

// reserved returns a transaction reserved by the buyer on the calculus book
func reserved(t *testing.T) (buyer, seller *harness, tx *repository.Transaction) {
	t.Helper()

	buyer = newHarness(t)
	seller = newHarnessFor(t, buyer.api, buyer.baseURL)
	buyer.login(t, mockapi.BuyerEmail)
	seller.login(t, mockapi.SellerEmail)

	res, err := buyer.workflow.Reserve(context.Background(), buyer.listing(t, "Calculus"))
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if res.Transaction == nil {
		t.Fatal("Reserve() returned no transaction")
	}
	return buyer, seller, res.Transaction
}

func wantKind(t *testing.T, err error, want apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %s", want)
	}
	if got := apperrors.KindOf(err); got != want {
		t.Fatalf("error kind = %s (%v), want %s", got, err, want)
	}
}
