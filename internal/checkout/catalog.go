package checkout

import (
	"context"

	"gorm.io/gorm"

	"github.com/josima5/venda-projetos-sub001/pkg/db/models"
)

// CatalogRepository reads the server-side project catalog.
type CatalogRepository interface {
	FindProject(ctx context.Context, id string) (*models.Project, error)
	UpsertProject(ctx context.Context, project *models.Project) error
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// FindProject returns an active catalog entry.
func (r *catalogRepository) FindProject(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *catalogRepository) UpsertProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}
