package mockapi

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pesio-ai/campustrade-client/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
)

type user struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Status       string
	IsVerified   bool
	Department   string
	PhoneNumber  string
	StudentID    string
	CreatedAt    time.Time
}

func (u *user) ref() repository.Ref {
	return repository.Ref{ID: u.ID, Name: u.Name, Email: u.Email, PhoneNumber: u.PhoneNumber}
}

func (u *user) profile() repository.Profile {
	verified := u.IsVerified
	return repository.Profile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		IsVerified:  &verified,
		Department:  u.Department,
		PhoneNumber: u.PhoneNumber,
		StudentID:   u.StudentID,
	}
}

func (u *user) summary() repository.UserSummary {
	return repository.UserSummary{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Status:     u.Status,
		IsVerified: u.IsVerified,
		Department: u.Department,
		CreatedAt:  u.CreatedAt,
	}
}

type expiringToken struct {
	userID    string
	expiresAt time.Time
}

// state is the in-memory data set behind the mock API
type state struct {
	mu sync.Mutex

	entropy *ulid.MonotonicEntropy

	users         map[string]*user
	listings      map[string]*repository.Listing
	transactions  map[string]*repository.Transaction
	messages      map[string]*repository.Message
	reviews       map[string]*repository.Review
	reports       map[string]*repository.Report
	verifications map[string]expiringToken
	resets        map[string]expiringToken
	revoked       map[string]time.Time // user id -> tokens issued before are rejected
}

func newState() *state {
	return &state{
		entropy:       ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		users:         make(map[string]*user),
		listings:      make(map[string]*repository.Listing),
		transactions:  make(map[string]*repository.Transaction),
		messages:      make(map[string]*repository.Message),
		reviews:       make(map[string]*repository.Review),
		reports:       make(map[string]*repository.Report),
		verifications: make(map[string]expiringToken),
		resets:        make(map[string]expiringToken),
		revoked:       make(map[string]time.Time),
	}
}

// newID must be called with mu held
func (s *state) newID() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), s.entropy).String())
}

func (s *state) userByEmail(email string) *user {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (s *state) addUser(name, email, password, role string, verified bool) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	u := &user{
		ID:           s.newID(),
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		Role:         role,
		Status:       repository.AccountActive,
		IsVerified:   verified,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *state) issueVerification(userID string) string {
	code := s.newID()
	s.verifications[code] = expiringToken{userID: userID, expiresAt: time.Now().Add(verificationTTL)}
	return code
}

func (s *state) activeTransactionFor(listingID string) *repository.Transaction {
	for _, tx := range s.transactions {
		if tx.Listing.ID == listingID && !tx.Status.IsTerminal() {
			return tx
		}
	}
	return nil
}

func (s *state) setListingStatus(listingID string, status repository.ListingStatus) {
	if l, ok := s.listings[listingID]; ok {
		l.Status = status
		l.UpdatedAt = time.Now().UTC()
	}
}

func sortedListings(in []repository.Listing, order string) {
	switch order {
	case "price_asc":
		sort.SliceStable(in, func(i, j int) bool { return in[i].Price < in[j].Price })
	case "price_desc":
		sort.SliceStable(in, func(i, j int) bool { return in[i].Price > in[j].Price })
	case "oldest":
		sort.SliceStable(in, func(i, j int) bool { return in[i].ID < in[j].ID })
	default:
		sort.SliceStable(in, func(i, j int) bool { return in[i].ID > in[j].ID })
	}
}
