package scheduled

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.ScheduledSession) error {
	query :=
		`INSERT INTO scheduled_sessions
		 (id, learner_profile_id, tutor_profile_id, start_time, end_time, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 `

	var tutor sql.NullString
	if s.TutorProfileID != nil {
		tutor = sql.NullString{String: *s.TutorProfileID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.LearnerProfileID, tutor, s.StartTime, s.EndTime, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.ScheduledSession, error) {
	query :=
		`SELECT s.id, s.learner_profile_id, l.user_id, s.tutor_profile_id, t.user_id,
		        s.start_time, s.end_time, s.status, s.created_at, s.updated_at
		 FROM scheduled_sessions s
		 JOIN learner_profiles l ON l.id = s.learner_profile_id
		 LEFT JOIN tutor_profiles t ON t.id = s.tutor_profile_id
		 WHERE s.id = $1
		 `

	s := &models.ScheduledSession{}
	var tutorID, tutorUserID sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.LearnerProfileID, &s.LearnerUserID, &tutorID, &tutorUserID,
		&s.StartTime, &s.EndTime, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if tutorID.Valid {
		s.TutorProfileID = &tutorID.String
	}
	if tutorUserID.Valid {
		s.TutorUserID = &tutorUserID.String
	}

	return s, nil
}

func (r *PostgresRepository) HasTutorConflict(ctx context.Context, tutorProfileID string, in models.Interval) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM scheduled_sessions
		   WHERE tutor_profile_id = $1
		     AND status IN ('SCHEDULED', 'LIVE')
		     AND start_time < $3 AND end_time > $2
		 )
		 `

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, tutorProfileID, in.Start, in.End).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, expected, to models.SessionStatus, at time.Time) (bool, error) {
	query :=
		`UPDATE scheduled_sessions SET status = $3, updated_at = $4
		 WHERE id = $1 AND status = $2
		 `

	res, err := r.db.ExecContext(ctx, query, id, expected, to, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n > 0, nil
}
