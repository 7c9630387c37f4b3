package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) CreateLearner(ctx context.Context, p *models.LearnerProfile) error {
	query :=
		`INSERT INTO learner_profiles (id, user_id, credits)
		 VALUES ($1, $2, $3)
		 `

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.UserID, p.Credits); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateTutor(ctx context.Context, p *models.TutorProfile) error {
	query :=
		`INSERT INTO tutor_profiles (id, user_id, display_name, active)
		 VALUES ($1, $2, $3, $4)
		 `

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.UserID, p.DisplayName, p.Active); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetLearnerByUserID(ctx context.Context, userID string) (*models.LearnerProfile, error) {
	query :=
		`SELECT id, user_id, credits FROM learner_profiles
		 WHERE user_id = $1
		 `
	return r.scanLearner(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) LockLearnerByUserID(ctx context.Context, userID string) (*models.LearnerProfile, error) {
	query :=
		`SELECT id, user_id, credits FROM learner_profiles
		 WHERE user_id = $1
		 FOR UPDATE
		 `
	return r.scanLearner(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) scanLearner(row *sql.Row) (*models.LearnerProfile, error) {
	p := &models.LearnerProfile{}
	if err := row.Scan(&p.ID, &p.UserID, &p.Credits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) LockTutor(ctx context.Context, tutorProfileID string) (*models.TutorProfile, error) {
	query :=
		`SELECT id, user_id, display_name, active FROM tutor_profiles
		 WHERE id = $1
		 FOR UPDATE
		 `

	p := &models.TutorProfile{}
	err := r.db.QueryRowContext(ctx, query, tutorProfileID).Scan(&p.ID, &p.UserID, &p.DisplayName, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Debit(ctx context.Context, learnerProfileID string, amount int) (int, bool, error) {
	query :=
		`UPDATE learner_profiles SET credits = credits - $2
		 WHERE id = $1 AND credits >= $2
		 RETURNING credits
		 `

	var balance int
	err := r.db.QueryRowContext(ctx, query, learnerProfileID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("db error: %w", err)
	}

	return balance, true, nil
}
