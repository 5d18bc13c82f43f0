package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx runs the queries inside tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type PosterRole string

const (
	PosterRoleOwner  PosterRole = "owner"
	PosterRoleEditor PosterRole = "editor"
)

type User struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
	CreatedAt   pgtype.Timestamptz
}

type Poster struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type PosterMember struct {
	PosterID  string
	UserID    string
	Role      PosterRole
	CreatedAt pgtype.Timestamptz
}

type Snapshot struct {
	ID        string
	PosterID  string
	Version   int32
	Document  json.RawMessage
	CreatedAt pgtype.Timestamptz
}

// --- users ---

const createUser = `INSERT INTO users (id, email, password, display_name)
VALUES ($1, $2, $3, $4)
RETURNING id, email, password, display_name, created_at`

type CreateUserParams struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.ID, arg.Email, arg.Password, arg.DisplayName)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.CreatedAt)
	return u, err
}

const getUserByEmail = `SELECT id, email, password, display_name, created_at FROM users WHERE email = $1`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByEmail, email).Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.CreatedAt)
	return u, err
}

const getUserByID = `SELECT id, email, password, display_name, created_at FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByID, id).Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.CreatedAt)
	return u, err
}

// --- posters ---

const createPoster = `INSERT INTO posters (id, name, owner_id)
VALUES ($1, $2, $3)
RETURNING id, name, owner_id, created_at, updated_at`

type CreatePosterParams struct {
	ID      string
	Name    string
	OwnerID string
}

func (q *Queries) CreatePoster(ctx context.Context, arg CreatePosterParams) (Poster, error) {
	var p Poster
	err := q.db.QueryRow(ctx, createPoster, arg.ID, arg.Name, arg.OwnerID).
		Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const getPoster = `SELECT id, name, owner_id, created_at, updated_at FROM posters WHERE id = $1`

func (q *Queries) GetPoster(ctx context.Context, id string) (Poster, error) {
	var p Poster
	err := q.db.QueryRow(ctx, getPoster, id).Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const listPostersForUser = `SELECT p.id, p.name, p.owner_id, p.created_at, p.updated_at
FROM posters p
JOIN poster_members m ON m.poster_id = p.id
WHERE m.user_id = $1
ORDER BY p.updated_at DESC`

func (q *Queries) ListPostersForUser(ctx context.Context, userID string) ([]Poster, error) {
	rows, err := q.db.Query(ctx, listPostersForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Poster
	for rows.Next() {
		var p Poster
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const deletePoster = `DELETE FROM posters WHERE id = $1`

func (q *Queries) DeletePoster(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, deletePoster, id)
	return err
}

const touchPoster = `UPDATE posters SET updated_at = now() WHERE id = $1`

func (q *Queries) TouchPoster(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, touchPoster, id)
	return err
}

// --- members ---

const addPosterMember = `INSERT INTO poster_members (poster_id, user_id, role)
VALUES ($1, $2, $3)
ON CONFLICT (poster_id, user_id) DO NOTHING`

type AddPosterMemberParams struct {
	PosterID string
	UserID   string
	Role     PosterRole
}

func (q *Queries) AddPosterMember(ctx context.Context, arg AddPosterMemberParams) error {
	_, err := q.db.Exec(ctx, addPosterMember, arg.PosterID, arg.UserID, arg.Role)
	return err
}

const getPosterMember = `SELECT poster_id, user_id, role, created_at FROM poster_members
WHERE poster_id = $1 AND user_id = $2`

type GetPosterMemberParams struct {
	PosterID string
	UserID   string
}

func (q *Queries) GetPosterMember(ctx context.Context, arg GetPosterMemberParams) (PosterMember, error) {
	var m PosterMember
	err := q.db.QueryRow(ctx, getPosterMember, arg.PosterID, arg.UserID).
		Scan(&m.PosterID, &m.UserID, &m.Role, &m.CreatedAt)
	return m, err
}

const listPosterMembers = `SELECT m.user_id, m.role, u.display_name, u.email
FROM poster_members m
JOIN users u ON u.id = m.user_id
WHERE m.poster_id = $1
ORDER BY m.created_at`

type ListPosterMembersRow struct {
	UserID      string
	Role        PosterRole
	DisplayName string
	Email       string
}

func (q *Queries) ListPosterMembers(ctx context.Context, posterID string) ([]ListPosterMembersRow, error) {
	rows, err := q.db.Query(ctx, listPosterMembers, posterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPosterMembersRow
	for rows.Next() {
		var r ListPosterMembersRow
		if err := rows.Scan(&r.UserID, &r.Role, &r.DisplayName, &r.Email); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const removePosterMember = `DELETE FROM poster_members WHERE poster_id = $1 AND user_id = $2`

type RemovePosterMemberParams struct {
	PosterID string
	UserID   string
}

func (q *Queries) RemovePosterMember(ctx context.Context, arg RemovePosterMemberParams) error {
	_, err := q.db.Exec(ctx, removePosterMember, arg.PosterID, arg.UserID)
	return err
}

// --- snapshots ---

// Versions start at 1 and grow by one per poster.
const createSnapshot = `INSERT INTO snapshots (id, poster_id, version, document)
SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3
FROM snapshots WHERE poster_id = $2
RETURNING id, poster_id, version, document, created_at`

type CreateSnapshotParams struct {
	ID       string
	PosterID string
	Document json.RawMessage
}

func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) (Snapshot, error) {
	var s Snapshot
	err := q.db.QueryRow(ctx, createSnapshot, arg.ID, arg.PosterID, arg.Document).
		Scan(&s.ID, &s.PosterID, &s.Version, &s.Document, &s.CreatedAt)
	return s, err
}

const getLatestSnapshot = `SELECT id, poster_id, version, document, created_at FROM snapshots
WHERE poster_id = $1
ORDER BY version DESC
LIMIT 1`

func (q *Queries) GetLatestSnapshot(ctx context.Context, posterID string) (Snapshot, error) {
	var s Snapshot
	err := q.db.QueryRow(ctx, getLatestSnapshot, posterID).
		Scan(&s.ID, &s.PosterID, &s.Version, &s.Document, &s.CreatedAt)
	return s, err
}
