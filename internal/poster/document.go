package poster

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SbTchR/TimelineGenerator/internal/db"
	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/typeid"
)

// Version is a stored document revision.
type Version struct {
	Version   int32  `json:"version"`
	CreatedAt string `json:"createdAt"`
}

// PosterDocument returns the latest document of a poster userID belongs to.
func (s *Service) PosterDocument(ctx context.Context, posterID, userID string) (*document.Document, error) {
	if err := s.CheckMember(ctx, posterID, userID); err != nil {
		return nil, err
	}
	return s.LoadDocument(ctx, posterID)
}

// SaveUserDocument stores doc as the next version after a membership check.
func (s *Service) SaveUserDocument(ctx context.Context, posterID, userID string, doc *document.Document) (*Version, error) {
	if err := s.CheckMember(ctx, posterID, userID); err != nil {
		return nil, err
	}
	if _, err := s.getPoster(ctx, posterID); err != nil {
		return nil, err
	}
	snap, err := s.store(ctx, posterID, doc)
	if err != nil {
		return nil, err
	}
	return &Version{
		Version:   snap.Version,
		CreatedAt: snap.CreatedAt.Time.Format("2006-01-02T15:04:05Z"),
	}, nil
}

// LoadDocument returns the latest stored document without access checks.
// Live editing rooms use it after authorising the connection.
func (s *Service) LoadDocument(ctx context.Context, posterID string) (*document.Document, error) {
	snap, err := s.queries.GetLatestSnapshot(ctx, posterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	doc, err := document.Load(snap.Document)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %d: %w", snap.Version, err)
	}
	return doc, nil
}

// SaveDocument stores doc as the next version without access checks.
func (s *Service) SaveDocument(ctx context.Context, posterID string, doc *document.Document) error {
	_, err := s.store(ctx, posterID, doc)
	return err
}

func (s *Service) store(ctx context.Context, posterID string, doc *document.Document) (db.Snapshot, error) {
	snap, err := s.snapshot(ctx, posterID, doc)
	if err != nil {
		return db.Snapshot{}, err
	}
	if err := s.queries.TouchPoster(ctx, posterID); err != nil {
		return db.Snapshot{}, fmt.Errorf("touch poster: %w", err)
	}
	return snap, nil
}

func (s *Service) snapshot(ctx context.Context, posterID string, doc *document.Document) (db.Snapshot, error) {
	data, err := document.Marshal(doc)
	if err != nil {
		return db.Snapshot{}, err
	}
	snap, err := s.queries.CreateSnapshot(ctx, db.CreateSnapshotParams{
		ID:       typeid.NewSnapshotID(),
		PosterID: posterID,
		Document: data,
	})
	if err != nil {
		return db.Snapshot{}, fmt.Errorf("create snapshot: %w", err)
	}
	return snap, nil
}
