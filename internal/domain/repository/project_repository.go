package repository

import (
	"context"

	"github.com/oksasatya/fluxa/internal/domain/entity"
)

// ProjectRepository persists projects and their files.
type ProjectRepository interface {
	Create(ctx context.Context, p *entity.Project) error
	GetByID(ctx context.Context, id int64) (*entity.Project, error)
	ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*entity.Project, error)
	Update(ctx context.Context, p *entity.Project) error
	Delete(ctx context.Context, id int64) error

	CreateFile(ctx context.Context, f *entity.ProjectFile) error
	GetFile(ctx context.Context, projectID, fileID int64) (*entity.ProjectFile, error)
	ListFiles(ctx context.Context, projectID int64) ([]*entity.ProjectFile, error)
	UpdateFile(ctx context.Context, f *entity.ProjectFile) error
	DeleteFile(ctx context.Context, projectID, fileID int64) error
}
