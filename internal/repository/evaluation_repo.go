package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// EvaluationFilter narrows history listings.
type EvaluationFilter struct {
	RepoURL string
	Kind    string
	Status  string
	Limit   int
}

// EvaluationRepository persists evaluation history.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	GetByID(ctx context.Context, id string) (models.Evaluation, error)
	ListRecent(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, error)
}

// NewEvaluationRepository constructs an evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

type evaluationRepository struct {
	db *gorm.DB
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) GetByID(ctx context.Context, id string) (models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.WithContext(ctx).First(&evaluation, "id = ?", id).Error; err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) ListRecent(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Model(&models.Evaluation{})
	if filter.RepoURL != "" {
		query = query.Where("repo_url = ?", filter.RepoURL)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var evaluations []models.Evaluation
	if err := query.Order("created_at DESC").Limit(limit).Find(&evaluations).Error; err != nil {
		return nil, err
	}
	return evaluations, nil
}
