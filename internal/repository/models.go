package repository

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ListingStatus is the lifecycle status of a listing
type ListingStatus string

const (
	ListingAvailable ListingStatus = "Available"
	ListingReserved  ListingStatus = "Reserved"
	ListingSold      ListingStatus = "Sold"
	ListingHidden    ListingStatus = "Hidden"
	ListingRemoved   ListingStatus = "Removed"
)

// Listing categories
const (
	CategoryGoods    = "Goods"
	CategoryServices = "Services"
	CategoryRentals  = "Rentals"
)

// TransactionStatus is the lifecycle status of a transaction
type TransactionStatus string

const (
	TransactionInitiated TransactionStatus = "Initiated"
	TransactionPending   TransactionStatus = "Pending" // legacy alias of Initiated
	TransactionReserved  TransactionStatus = "Reserved"
	TransactionCompleted TransactionStatus = "Completed"
	TransactionCancelled TransactionStatus = "Cancelled"
)

// IsTerminal reports whether no further transition is possible
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionCompleted || s == TransactionCancelled
}

// Session is the locally known identity of the current actor.
// It is persisted as the "user" record in local storage.
type Session struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	IsVerified  bool   `json:"isVerified"`
	Token       string `json:"token"`
	Department  string `json:"department,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	StudentID   string `json:"studentID,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id" as the identifier
func (s *Session) UnmarshalJSON(b []byte) error {
	type alias Session
	var aux struct {
		alias
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*s = Session(aux.alias)
	if s.ID == "" {
		s.ID = aux.AltID
	}
	return nil
}

// IsAuthenticated reports whether the session carries a token
func (s *Session) IsAuthenticated() bool {
	return s != nil && strings.TrimSpace(s.Token) != ""
}

// Ref is a reference to another entity. The API sends either a bare id
// string or a populated object; both decode into Ref.
type Ref struct {
	ID           string   `json:"_id,omitempty"`
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	PhoneNumber  string   `json:"phoneNumber,omitempty"`
	Title        string   `json:"title,omitempty"`
	Price        float64  `json:"price,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	TotalReviews int      `json:"totalReviews,omitempty"`
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	switch {
	case trimmed == "null":
		*r = Ref{}
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}

	type alias Ref
	var aux struct {
		alias
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Ref(aux.alias)
	if r.ID == "" {
		r.ID = aux.AltID
	}
	return nil
}

// DisplayName falls back to a generic label when the ref was not populated
func (r Ref) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return "User"
}

// RentalPeriod holds dates as sent by the API (RFC 3339 or YYYY-MM-DD)
type RentalPeriod struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Listing is an item, service or rental offer
type Listing struct {
	ID               string        `json:"_id"`
	Seller           Ref           `json:"sellerId"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Price            float64       `json:"price"`
	Category         string        `json:"category"`
	Subcategory      string        `json:"subcategory"`
	Status           ListingStatus `json:"status"`
	Images           []string      `json:"images"`
	Location         string        `json:"location,omitempty"`
	SpecificLocation string        `json:"specificLocation,omitempty"`
	Condition        string        `json:"condition,omitempty"`
	ServiceType      string        `json:"serviceType,omitempty"`
	RentalPeriod     *RentalPeriod `json:"rentalPeriod,omitempty"`
	Views            int           `json:"views,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// ListingInput is the payload for creating or editing a listing
type ListingInput struct {
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Price            float64       `json:"price"`
	Category         string        `json:"category"`
	Subcategory      string        `json:"subcategory"`
	Location         string        `json:"location,omitempty"`
	SpecificLocation string        `json:"specificLocation"`
	Condition        string        `json:"condition,omitempty"`
	ServiceType      string        `json:"serviceType,omitempty"`
	RentalPeriod     *RentalPeriod `json:"rentalPeriod,omitempty"`
	Images           []string      `json:"images"`
}

// ListingFilters are the marketplace query parameters
type ListingFilters struct {
	Query       string
	Category    string
	Subcategory string
	Condition   string
	Location    string
	Status      ListingStatus // defaults to Available when empty
	MinPrice    *float64
	MaxPrice    *float64
	Sort        string
	Page        int
	Limit       int
}

// Values encodes the filters as query parameters
func (f ListingFilters) Values() url.Values {
	v := url.Values{}
	status := f.Status
	if status == "" {
		status = ListingAvailable
	}
	v.Set("status", string(status))

	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("q", f.Query)
	set("category", f.Category)
	set("subcategory", f.Subcategory)
	set("condition", f.Condition)
	set("location", f.Location)
	set("sort", f.Sort)
	if f.MinPrice != nil {
		v.Set("minPrice", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		v.Set("maxPrice", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// ListingPage is one page of marketplace results
type ListingPage struct {
	Listings []Listing `json:"listings"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
}

// Transaction is a reservation/sale agreement for one listing
type Transaction struct {
	ID                 string            `json:"_id"`
	Listing            Ref               `json:"listingId"`
	Buyer              Ref               `json:"buyerId"`
	Seller             Ref               `json:"sellerId"`
	Amount             float64           `json:"amount"`
	Status             TransactionStatus `json:"status"`
	CancellationReason string            `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
	CompletedAt        *time.Time        `json:"completedAt,omitempty"`
	CancelledAt        *time.Time        `json:"cancelledAt,omitempty"`
}

// TransactionStats is computed client-side from the actor's transactions
type TransactionStats struct {
	Total       int
	Completed   int
	Reserved    int
	Cancelled   int
	TotalAmount float64
}

// Message is a direct message between two users
type Message struct {
	ID        string    `json:"_id"`
	Sender    Ref       `json:"senderId"`
	Receiver  Ref       `json:"receiverId"`
	Listing   *Ref      `json:"listingId,omitempty"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// SendMessageRequest is the payload for sending a message
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	ListingID  string `json:"listingId,omitempty"`
}

// Conversation summarises the thread with one counterpart
type Conversation struct {
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	UserEmail       string    `json:"userEmail"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
}

// Notification is a server-pushed event for the current user
type Notification struct {
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Review is feedback left after a completed transaction
type Review struct {
	ID          string    `json:"_id"`
	Reviewer    Ref       `json:"reviewerId"`
	Reviewee    Ref       `json:"revieweeId"`
	Transaction Ref       `json:"transactionId"`
	Listing     Ref       `json:"listingId"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ReviewInput is the payload for leaving a review
type ReviewInput struct {
	TransactionID string `json:"transactionId"`
	RevieweeID    string `json:"revieweeId"`
	ListingID     string `json:"listingId,omitempty"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment,omitempty"`
}

// Report statuses
const (
	ReportPending   = "pending"
	ReportReviewed  = "reviewed"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

// Report is a user complaint about a listing or another user
type Report struct {
	ID           string    `json:"_id"`
	Reporter     Ref       `json:"reporterId"`
	ReportedUser Ref       `json:"reportedUserId"`
	Listing      *Ref      `json:"listingId,omitempty"`
	Reason       string    `json:"reason"`
	Description  string    `json:"description,omitempty"`
	Status       string    `json:"status"`
	AdminNotes   string    `json:"adminNotes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ReportInput is the payload for filing a report
type ReportInput struct {
	ListingID      string `json:"listingId,omitempty"`
	ReportedUserID string `json:"reportedUserId,omitempty"`
	Reason         string `json:"reason"`
	Description    string `json:"description,omitempty"`
}

// Account statuses (admin view)
const (
	AccountActive    = "active"
	AccountSuspended = "suspended"
	AccountBanned    = "banned"
)

// UserSummary is the admin view of an account
type UserSummary struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	IsVerified bool      `json:"isVerified"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AdminStats are the dashboard counters
type AdminStats struct {
	TotalUsers            int `json:"totalUsers"`
	VerifiedUsers         int `json:"verifiedUsers"`
	TotalListings         int `json:"totalListings"`
	AvailableListings     int `json:"availableListings"`
	TotalTransactions     int `json:"totalTransactions"`
	CompletedTransactions int `json:"completedTransactions"`
	PendingReports        int `json:"pendingReports"`
}

// StatusUpdate is the payload of every admin/report status change
type StatusUpdate struct {
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	AdminNotes string `json:"adminNotes,omitempty"`
}

// RegisterRequest is the new-account payload
type RegisterRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
	Department  string `json:"department"`
	StudentID   string `json:"studentID"`
}

// RegisterResponse is returned by registration
type RegisterResponse struct {
	Message          string `json:"message"`
	VerificationLink string `json:"verificationLink,omitempty"`
}

// ProfileUpdate carries the only editable profile fields.
// Email is deliberately absent: it cannot be changed through this path.
type ProfileUpdate struct {
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Department  *string `json:"department,omitempty"`
}

// Profile is the identity returned by profile endpoints (no token)
type Profile struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	IsVerified  *bool  `json:"isVerified,omitempty"`
	Department  string `json:"department,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	StudentID   string `json:"studentID,omitempty"`
}
