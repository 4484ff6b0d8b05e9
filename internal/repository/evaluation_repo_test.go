package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

func setupEvaluationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Evaluation{}))
	return db
}

func TestEvaluationRepositoryCreateAndGet(t *testing.T) {
	repo := NewEvaluationRepository(setupEvaluationTestDB(t))
	ctx := context.Background()

	evaluation := models.Evaluation{
		ID:         "eval-1",
		RepoURL:    "https://example.com/memory.git",
		Title:      "Memory Game",
		Kind:       "html_asset",
		Status:     models.EvaluationStatusCompleted,
		TotalScore: 8,
		TotalMarks: 10,
		Scores:     datatypes.JSONMap{"layout": float64(1)},
		Files:      datatypes.JSON(`["index.html","script.js"]`),
	}
	require.NoError(t, repo.Create(ctx, &evaluation))

	stored, err := repo.GetByID(ctx, "eval-1")
	require.NoError(t, err)
	require.Equal(t, 8, stored.TotalScore)
	require.Equal(t, json.Number("1"), stored.Scores["layout"])
	require.JSONEq(t, `["index.html","script.js"]`, string(stored.Files))

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEvaluationRepositoryStoresLongRepoURL(t *testing.T) {
	db := setupEvaluationTestDB(t)

	stmt := &gorm.Statement{DB: db}
	require.NoError(t, stmt.Parse(&models.Evaluation{}))
	require.Equal(t, 2048, stmt.Schema.LookUpField("RepoURL").Size)

	repo := NewEvaluationRepository(db)
	ctx := context.Background()
	repoURL := "https://example.com/" + strings.Repeat("a", 2048-len("https://example.com/"))

	require.NoError(t, repo.Create(ctx, &models.Evaluation{
		ID:      "eval-long",
		RepoURL: repoURL,
		Status:  models.EvaluationStatusFailed,
	}))

	stored, err := repo.GetByID(ctx, "eval-long")
	require.NoError(t, err)
	require.Equal(t, repoURL, stored.RepoURL)
}

func TestEvaluationRepositoryListRecentFiltersAndOrders(t *testing.T) {
	db := setupEvaluationTestDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	rows := []models.Evaluation{
		{ID: "a", RepoURL: "https://example.com/a.git", Kind: "html_asset", Status: models.EvaluationStatusCompleted, CreatedAt: base},
		{ID: "b", RepoURL: "https://example.com/b.git", Kind: "component_app", Status: models.EvaluationStatusFailed, CreatedAt: base.Add(time.Minute)},
		{ID: "c", RepoURL: "https://example.com/a.git", Kind: "html_asset", Status: models.EvaluationStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	all, err := repo.ListRecent(ctx, EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "c", all[0].ID)

	repoOnly, err := repo.ListRecent(ctx, EvaluationFilter{RepoURL: "https://example.com/a.git", Limit: 1})
	require.NoError(t, err)
	require.Len(t, repoOnly, 1)
	require.Equal(t, "c", repoOnly[0].ID)

	failed, err := repo.ListRecent(ctx, EvaluationFilter{Status: models.EvaluationStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "b", failed[0].ID)
}
