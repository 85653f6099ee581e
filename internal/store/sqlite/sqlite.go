package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rrapp/rentchat/internal/store"
)

// Schema creates every table the store needs. Statements are idempotent.
//
//go:embed schema.sql
var Schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies Schema to db.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MessageStore implementation ====

// CreateMessage appends a room chat message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, username, room, content string) error {
	query := `
		INSERT INTO chat_messages (username, room, content, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, username, room, content, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// CreateDirectMessage appends a direct chat message.
func (s *SQLiteStore) CreateDirectMessage(ctx context.Context, sender, receiver, room, content string) error {
	query := `
		INSERT INTO direct_messages (sender, receiver, room, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, sender, receiver, room, content, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert direct message: %w", err)
	}
	return nil
}

// ListMessages retrieves room messages with pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, room string, limit int, beforeID *int64) ([]*store.ChatMessage, error) {
	query, args := pageQuery(`
		SELECT id, username, room, content, created_at
		FROM chat_messages
		WHERE room = ?`, room, limit, beforeID)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.ChatMessage
	for rows.Next() {
		var msg store.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Username, &msg.Room, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	reverse(messages)
	return messages, nil
}

// ListDirectMessages retrieves direct messages with pagination.
func (s *SQLiteStore) ListDirectMessages(ctx context.Context, room string, limit int, beforeID *int64) ([]*store.DirectMessage, error) {
	query, args := pageQuery(`
		SELECT id, sender, receiver, room, content, created_at
		FROM direct_messages
		WHERE room = ?`, room, limit, beforeID)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query direct messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.DirectMessage
	for rows.Next() {
		var msg store.DirectMessage
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Receiver, &msg.Room, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan direct message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate direct messages: %w", err)
	}

	reverse(messages)
	return messages, nil
}

// pageQuery appends the keyset pagination clause; rows come back newest first.
func pageQuery(base, room string, limit int, beforeID *int64) (string, []any) {
	if beforeID != nil {
		return base + ` AND id < ? ORDER BY id DESC LIMIT ?`, []any{room, *beforeID, limit}
	}
	return base + ` ORDER BY id DESC LIMIT ?`, []any{room, limit}
}

func reverse[T any](items []T) {
	for i := range len(items) / 2 {
		items[i], items[len(items)-1-i] = items[len(items)-1-i], items[i]
	}
}

// ==== UserStore implementation ====

// CreateUser inserts a user and fills in its ID and join date.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	if user.Role == "" {
		user.Role = store.UserRoleRentee
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}

	query := `
		INSERT INTO users (email, username, password_hash, first_name, last_name, role, is_verified, date_joined)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		user.Email, user.Username, user.PasswordHash, user.FirstName, user.LastName,
		user.Role, user.IsVerified, user.DateJoined,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, email, username, password_hash, first_name, last_name, role, is_verified, date_joined
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.IsVerified,
		&user.DateJoined,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== ListingStore implementation ====

const listingColumns = `id, user_id, title, description, monthly_rent, status, property_type, room_type, available_from, available_to, created_at`

// CreateListing inserts a listing and fills in its ID.
func (s *SQLiteStore) CreateListing(ctx context.Context, listing *store.Listing) error {
	if listing.Status == "" {
		listing.Status = store.ListingStatusActive
	}
	if listing.PropertyType == "" {
		listing.PropertyType = store.PropertyTypeApartment
	}
	if listing.RoomType == "" {
		listing.RoomType = store.RoomTypePrivate
	}
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO listings (user_id, title, description, monthly_rent, status, property_type, room_type, available_from, available_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		listing.UserID, listing.Title, listing.Description, listing.MonthlyRent,
		listing.Status, listing.PropertyType, listing.RoomType,
		listing.AvailableFrom, listing.AvailableTo, listing.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	listing.ID = id
	return nil
}

// GetListing retrieves a listing by ID.
func (s *SQLiteStore) GetListing(ctx context.Context, id int64) (*store.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
	listing, err := scanListing(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("listing %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query listing: %w", err)
	}
	return listing, nil
}

// ListActiveListings returns newest active listings first.
func (s *SQLiteStore) ListActiveListings(ctx context.Context, limit int) ([]*store.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings
		WHERE status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, store.ListingStatusActive, limit)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	return collectListings(rows)
}

// SaveListing marks a listing as a favorite; saving twice is a no-op.
func (s *SQLiteStore) SaveListing(ctx context.Context, userID, listingID int64) error {
	query := `
		INSERT OR IGNORE INTO saved_listings (user_id, listing_id, saved_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, userID, listingID, time.Now().UTC()); err != nil {
		return fmt.Errorf("save listing: %w", err)
	}
	return nil
}

// ListSavedListings returns a user's favorites, most recently saved first.
func (s *SQLiteStore) ListSavedListings(ctx context.Context, userID int64) ([]*store.Listing, error) {
	query := `
		SELECT l.id, l.user_id, l.title, l.description, l.monthly_rent, l.status, l.property_type,
		       l.room_type, l.available_from, l.available_to, l.created_at
		FROM saved_listings sl
		JOIN listings l ON l.id = sl.listing_id
		WHERE sl.user_id = ?
		ORDER BY sl.saved_at DESC, l.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query saved listings: %w", err)
	}
	return collectListings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*store.Listing, error) {
	var l store.Listing
	err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.Title,
		&l.Description,
		&l.MonthlyRent,
		&l.Status,
		&l.PropertyType,
		&l.RoomType,
		&l.AvailableFrom,
		&l.AvailableTo,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func collectListings(rows *sql.Rows) ([]*store.Listing, error) {
	defer rows.Close()

	var listings []*store.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
