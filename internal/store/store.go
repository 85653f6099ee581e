package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ChatMessage is a persisted room chat message.
type ChatMessage struct {
	ID        int64
	Username  string
	Room      string
	Content   string
	CreatedAt time.Time
}

// DirectMessage is a persisted 1:1 chat message.
type DirectMessage struct {
	ID        int64
	Sender    string
	Receiver  string
	Room      string
	Content   string
	CreatedAt time.Time
}

// UserRole tells whether a user advertises or looks for housing.
type UserRole string

const (
	UserRoleRenter UserRole = "renter"
	UserRoleRentee UserRole = "rentee"
)

// User is a marketplace account.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         UserRole
	IsVerified   bool
	DateJoined   time.Time
}

// ListingStatus defines whether a listing is visible.
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusInactive ListingStatus = "inactive"
)

// PropertyType describes the building.
type PropertyType string

const (
	PropertyTypeIndependentHouse PropertyType = "independent_house"
	PropertyTypeApartment        PropertyType = "apartment"
)

// RoomType describes the offered room.
type RoomType string

const (
	RoomTypePrivate RoomType = "private"
	RoomTypeShared  RoomType = "shared"
)

// Listing is a housing advertisement.
type Listing struct {
	ID            int64
	UserID        int64
	Title         string
	Description   string
	MonthlyRent   int
	Status        ListingStatus
	PropertyType  PropertyType
	RoomType      RoomType
	AvailableFrom time.Time
	AvailableTo   time.Time
	CreatedAt     time.Time
}

// SavedListing marks a listing as a user's favorite.
type SavedListing struct {
	UserID    int64
	ListingID int64
	SavedAt   time.Time
}

// MessageStore handles chat message persistence. Messages are append-only.
type MessageStore interface {
	// CreateMessage appends a room chat message.
	CreateMessage(ctx context.Context, username, room, content string) error

	// CreateDirectMessage appends a direct chat message.
	CreateDirectMessage(ctx context.Context, sender, receiver, room, content string) error

	// ListMessages returns up to limit room messages in chronological order.
	// If beforeID is provided, only messages older than that ID are returned.
	ListMessages(ctx context.Context, room string, limit int, beforeID *int64) ([]*ChatMessage, error)

	// ListDirectMessages is ListMessages for direct rooms.
	ListDirectMessages(ctx context.Context, room string, limit int, beforeID *int64) ([]*DirectMessage, error)
}

// UserStore handles user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// ListingStore handles listings and favorites.
type ListingStore interface {
	CreateListing(ctx context.Context, listing *Listing) error
	GetListing(ctx context.Context, id int64) (*Listing, error)
	// ListActiveListings returns newest active listings first.
	ListActiveListings(ctx context.Context, limit int) ([]*Listing, error)
	// SaveListing is idempotent per (user, listing).
	SaveListing(ctx context.Context, userID, listingID int64) error
	ListSavedListings(ctx context.Context, userID int64) ([]*Listing, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore
	UserStore
	ListingStore

	// Close closes the underlying database connection.
	Close() error
}
