package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/palchat/backend/internal/db"
	"github.com/palchat/backend/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// friendPairClause matches a friendship row for the unordered pair ($1, $2).
const friendPairClause = `((user1 = $1 AND user2 = $2) OR (user1 = $2 AND user2 = $1))`

// messagePairClause matches messages exchanged in either direction between $1 and $2.
const messagePairClause = `((from_user = $1 AND to_user = $2) OR (from_user = $2 AND to_user = $1))`

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record and returns it with its assigned id.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO users (username, email, password_hash, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `, user.Username, user.Email, user.Password, user.CreatedAt)
	if err := row.Scan(&user.ID); err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// FindByUsername fetches a user by username.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, username, email, password_hash, created_at
        FROM users
        WHERE username = $1
    `, username)

	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by username: %w", err)
	}

	return user, nil
}

// ExistsByUsernameOrEmail reports whether either identifier is already taken.
func (r *PostgresUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)
    `, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing user: %w", err)
	}

	return exists, nil
}

// List returns every registered user ordered by username. Password hashes are not loaded.
func (r *PostgresUserRepository) List(ctx context.Context) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, username, email, created_at
        FROM users
        ORDER BY username
    `)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// PostgresFriendRepository provides PostgreSQL-backed persistence for friendships.
type PostgresFriendRepository struct {
	pool db.Pool
}

// NewPostgresFriendRepository constructs a friend repository backed by PostgreSQL.
func NewPostgresFriendRepository(pool db.Pool) *PostgresFriendRepository {
	return &PostgresFriendRepository{pool: pool}
}

// CreateRequest records a pending request from fromUser to toUser. It returns
// ErrConflict when any record already exists for the pair, in either order, and
// ErrNotFound when the recipient does not exist.
func (r *PostgresFriendRepository) CreateRequest(ctx context.Context, fromUser, toUser string) (models.Friendship, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Friendship{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return models.Friendship{}, fmt.Errorf("begin friend request: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM friends WHERE `+friendPairClause+`)`, fromUser, toUser).Scan(&exists); err != nil {
		return models.Friendship{}, fmt.Errorf("check existing friend request: %w", err)
	}
	if exists {
		return models.Friendship{}, ErrConflict
	}

	friendship := models.Friendship{
		User1:     fromUser,
		User2:     toUser,
		Status:    models.FriendStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	err = tx.QueryRow(ctx, `
        INSERT INTO friends (user1, user2, status, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `, friendship.User1, friendship.User2, friendship.Status, friendship.CreatedAt).Scan(&friendship.ID)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return models.Friendship{}, ErrConflict
		case pgForeignKeyViolation:
			return models.Friendship{}, ErrNotFound
		case pgCheckViolation:
			return models.Friendship{}, ErrSelfFriendship
		}
		return models.Friendship{}, fmt.Errorf("insert friend request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return models.Friendship{}, ErrConflict
		}
		return models.Friendship{}, fmt.Errorf("commit friend request: %w", err)
	}

	return friendship, nil
}

// ListForUser returns friendships in any state where the user is either party.
func (r *PostgresFriendRepository) ListForUser(ctx context.Context, username string) ([]models.Friendship, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user1, user2, status, created_at
        FROM friends
        WHERE user1 = $1 OR user2 = $1
        ORDER BY created_at DESC
    `, username)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	var friendships []models.Friendship
	for rows.Next() {
		var f models.Friendship
		if err := rows.Scan(&f.ID, &f.User1, &f.User2, &f.Status, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		friendships = append(friendships, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}

	return friendships, nil
}

// Accept moves a pending request to accepted. Only the recipient may accept;
// any other caller gets ErrNotFound.
func (r *PostgresFriendRepository) Accept(ctx context.Context, requestID int64, recipient string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE friends
        SET status = $3
        WHERE id = $1 AND user2 = $2 AND status = $4
    `, requestID, recipient, models.FriendStatusAccepted, models.FriendStatusPending)
	if err != nil {
		return fmt.Errorf("accept friend request: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Reject deletes a pending request under the same precondition as Accept.
func (r *PostgresFriendRepository) Reject(ctx context.Context, requestID int64, recipient string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM friends
        WHERE id = $1 AND user2 = $2 AND status = $3
    `, requestID, recipient, models.FriendStatusPending)
	if err != nil {
		return fmt.Errorf("reject friend request: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// IsAccepted reports whether an accepted friendship exists between the two
// users, regardless of who sent the request.
func (r *PostgresFriendRepository) IsAccepted(ctx context.Context, userA, userB string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var accepted bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM friends WHERE `+friendPairClause+` AND status = $3)
    `, userA, userB, models.FriendStatusAccepted).Scan(&accepted); err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}

	return accepted, nil
}

// PostgresMessageRepository provides PostgreSQL-backed persistence for messages.
type PostgresMessageRepository struct {
	pool db.Pool
}

// NewPostgresMessageRepository constructs a message repository backed by PostgreSQL.
func NewPostgresMessageRepository(pool db.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// Create appends a message and returns it with its assigned id.
func (r *PostgresMessageRepository) Create(ctx context.Context, message models.Message) (models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Message{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	err = conn.QueryRow(ctx, `
        INSERT INTO messages (from_user, to_user, content, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `, message.FromUser, message.ToUser, message.Content, message.Timestamp).Scan(&message.ID)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}

	return message, nil
}

// ListBetween returns the conversation between two users ordered by timestamp.
func (r *PostgresMessageRepository) ListBetween(ctx context.Context, userA, userB string) ([]models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, from_user, to_user, content, created_at
        FROM messages
        WHERE `+messagePairClause+`
        ORDER BY created_at, id
    `, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.FromUser, &m.ToUser, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// PostgresExportRepository provides PostgreSQL-backed persistence for transcript exports.
type PostgresExportRepository struct {
	pool db.Pool
}

// NewPostgresExportRepository constructs an export repository backed by PostgreSQL.
func NewPostgresExportRepository(pool db.Pool) *PostgresExportRepository {
	return &PostgresExportRepository{pool: pool}
}

// Create stores a new export record.
func (r *PostgresExportRepository) Create(ctx context.Context, export models.Export) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	status := export.Status
	if status == "" {
		status = models.ExportStatusPending
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO exports (id, owner, peer, status, location, size, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, export.ID, export.Owner, export.Peer, status, export.Location, export.Size, export.CreatedAt)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation:
			return ErrNotFound
		}
		return fmt.Errorf("insert export: %w", err)
	}

	return nil
}

// Find loads an export by id.
func (r *PostgresExportRepository) Find(ctx context.Context, id string) (models.Export, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Export{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var export models.Export
	err = conn.QueryRow(ctx, `
        SELECT id::TEXT, owner, peer, status, location, size, created_at
        FROM exports
        WHERE id = $1
    `, id).Scan(&export.ID, &export.Owner, &export.Peer, &export.Status, &export.Location, &export.Size, &export.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Export{}, ErrNotFound
		}
		return models.Export{}, fmt.Errorf("select export: %w", err)
	}

	return export, nil
}

// MarkReady records a successful upload.
func (r *PostgresExportRepository) MarkReady(ctx context.Context, id, location string, size int64) error {
	return r.updateStatus(ctx, id, models.ExportStatusReady, location, size)
}

// MarkFailed records a failed export attempt.
func (r *PostgresExportRepository) MarkFailed(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, models.ExportStatusFailed, "", 0)
}

func (r *PostgresExportRepository) updateStatus(ctx context.Context, id, status, location string, size int64) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE exports
        SET status = $2, location = $3, size = $4
        WHERE id = $1
    `, id, status, location, size)
	if err != nil {
		return fmt.Errorf("update export status %s: %w", status, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ FriendRepository = (*PostgresFriendRepository)(nil)
var _ MessageRepository = (*PostgresMessageRepository)(nil)
var _ ExportRepository = (*PostgresExportRepository)(nil)
