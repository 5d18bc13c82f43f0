// Package poster stores posters, their members and the versioned poster
// documents.
package poster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/SbTchR/TimelineGenerator/internal/db"
	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/typeid"
)

var (
	ErrNotFound     = errors.New("poster not found")
	ErrForbidden    = errors.New("forbidden")
	ErrNotMember    = errors.New("not a poster member")
	ErrUserNotFound = errors.New("user not found")
	ErrRemoveOwner  = errors.New("cannot remove poster owner")
)

// Queries is the part of db.Queries the service uses.
type Queries interface {
	GetUserByEmail(ctx context.Context, email string) (db.User, error)
	CreatePoster(ctx context.Context, arg db.CreatePosterParams) (db.Poster, error)
	GetPoster(ctx context.Context, id string) (db.Poster, error)
	ListPostersForUser(ctx context.Context, userID string) ([]db.Poster, error)
	DeletePoster(ctx context.Context, id string) error
	TouchPoster(ctx context.Context, id string) error
	AddPosterMember(ctx context.Context, arg db.AddPosterMemberParams) error
	GetPosterMember(ctx context.Context, arg db.GetPosterMemberParams) (db.PosterMember, error)
	ListPosterMembers(ctx context.Context, posterID string) ([]db.ListPosterMembersRow, error)
	RemovePosterMember(ctx context.Context, arg db.RemovePosterMemberParams) error
	CreateSnapshot(ctx context.Context, arg db.CreateSnapshotParams) (db.Snapshot, error)
	GetLatestSnapshot(ctx context.Context, posterID string) (db.Snapshot, error)
}

type Service struct {
	queries Queries
}

func NewService(queries Queries) *Service {
	return &Service{queries: queries}
}

type Poster struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type Member struct {
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Create makes a poster owned by ownerID. A nil doc seeds the default
// document.
func (s *Service) Create(ctx context.Context, name, ownerID string, doc *document.Document) (*Poster, error) {
	posterID := typeid.NewPosterID()

	p, err := s.queries.CreatePoster(ctx, db.CreatePosterParams{
		ID:      posterID,
		Name:    name,
		OwnerID: ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("create poster: %w", err)
	}

	err = s.queries.AddPosterMember(ctx, db.AddPosterMemberParams{
		PosterID: posterID,
		UserID:   ownerID,
		Role:     db.PosterRoleOwner,
	})
	if err != nil {
		return nil, fmt.Errorf("add owner as member: %w", err)
	}

	if doc == nil {
		d := document.Defaults()
		doc = &d
	}
	if _, err := s.snapshot(ctx, posterID, doc); err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	return toPoster(p), nil
}

func (s *Service) Get(ctx context.Context, posterID, userID string) (*Poster, error) {
	if err := s.CheckMember(ctx, posterID, userID); err != nil {
		return nil, err
	}
	p, err := s.getPoster(ctx, posterID)
	if err != nil {
		return nil, err
	}
	return toPoster(p), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Poster, error) {
	rows, err := s.queries.ListPostersForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list posters: %w", err)
	}
	posters := make([]Poster, len(rows))
	for i, p := range rows {
		posters[i] = *toPoster(p)
	}
	return posters, nil
}

func (s *Service) Delete(ctx context.Context, posterID, userID string) error {
	if err := s.checkOwner(ctx, posterID, userID); err != nil {
		return err
	}
	return s.queries.DeletePoster(ctx, posterID)
}

func (s *Service) InviteByEmail(ctx context.Context, posterID, ownerID, email string) error {
	if err := s.checkOwner(ctx, posterID, ownerID); err != nil {
		return err
	}

	invitee, err := s.queries.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	return s.queries.AddPosterMember(ctx, db.AddPosterMemberParams{
		PosterID: posterID,
		UserID:   invitee.ID,
		Role:     db.PosterRoleEditor,
	})
}

func (s *Service) ListMembers(ctx context.Context, posterID, userID string) ([]Member, error) {
	if err := s.CheckMember(ctx, posterID, userID); err != nil {
		return nil, err
	}

	rows, err := s.queries.ListPosterMembers(ctx, posterID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	members := make([]Member, len(rows))
	for i, m := range rows {
		members[i] = Member{
			UserID:      m.UserID,
			Role:        string(m.Role),
			DisplayName: m.DisplayName,
			Email:       m.Email,
		}
	}
	return members, nil
}

func (s *Service) RemoveMember(ctx context.Context, posterID, ownerID, targetUserID string) error {
	if err := s.checkOwner(ctx, posterID, ownerID); err != nil {
		return err
	}
	if targetUserID == ownerID {
		return ErrRemoveOwner
	}
	return s.queries.RemovePosterMember(ctx, db.RemovePosterMemberParams{
		PosterID: posterID,
		UserID:   targetUserID,
	})
}

// CheckMember reports ErrNotMember when userID cannot edit the poster.
func (s *Service) CheckMember(ctx context.Context, posterID, userID string) error {
	_, err := s.queries.GetPosterMember(ctx, db.GetPosterMemberParams{
		PosterID: posterID,
		UserID:   userID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotMember
		}
		return fmt.Errorf("check membership: %w", err)
	}
	return nil
}

func (s *Service) checkOwner(ctx context.Context, posterID, userID string) error {
	p, err := s.getPoster(ctx, posterID)
	if err != nil {
		return err
	}
	if p.OwnerID != userID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) getPoster(ctx context.Context, posterID string) (db.Poster, error) {
	p, err := s.queries.GetPoster(ctx, posterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Poster{}, ErrNotFound
		}
		return db.Poster{}, fmt.Errorf("get poster: %w", err)
	}
	return p, nil
}

func toPoster(p db.Poster) *Poster {
	return &Poster{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		CreatedAt: p.CreatedAt.Time.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: p.UpdatedAt.Time.Format("2006-01-02T15:04:05Z"),
	}
}
