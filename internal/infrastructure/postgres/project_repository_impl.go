package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/fluxa/internal/domain/entity"
	"github.com/oksasatya/fluxa/internal/domain/repository"
)

const (
	projectColumns = `id, owner_id, name, description, is_public, language, framework, created_at, updated_at`
	fileColumns    = `id, project_id, name, path, content, file_type, created_at, updated_at`
)

type ProjectRepository struct {
	db DBTX
}

func NewProjectRepository(db DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, p *entity.Project) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO projects (owner_id, name, description, is_public, language, framework)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, p.OwnerID, p.Name, p.Description, p.IsPublic, p.Language, p.Framework)

	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*entity.Project, error) {
	p := &entity.Project{}
	err := r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.IsPublic, &p.Language, &p.Framework, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*entity.Project, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE owner_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*entity.Project
	for rows.Next() {
		p := &entity.Project{}
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.IsPublic, &p.Language, &p.Framework, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProjectRepository) Update(ctx context.Context, p *entity.Project) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.Exec(ctx, `
		UPDATE projects
		SET name = $1, description = $2, is_public = $3, language = $4, framework = $5, updated_at = $6
		WHERE id = $7
	`, p.Name, p.Description, p.IsPublic, p.Language, p.Framework, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes the project; files go with it through ON DELETE CASCADE.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) CreateFile(ctx context.Context, f *entity.ProjectFile) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO project_files (project_id, name, path, content, file_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, f.ProjectID, f.Name, f.Path, f.Content, f.FileType)

	if err := row.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetFile only finds the file when it belongs to projectID.
func (r *ProjectRepository) GetFile(ctx context.Context, projectID, fileID int64) (*entity.ProjectFile, error) {
	f := &entity.ProjectFile{}
	err := r.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM project_files WHERE id = $1 AND project_id = $2`, fileID, projectID).
		Scan(&f.ID, &f.ProjectID, &f.Name, &f.Path, &f.Content, &f.FileType, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

func (r *ProjectRepository) ListFiles(ctx context.Context, projectID int64) ([]*entity.ProjectFile, error) {
	rows, err := r.db.Query(ctx, `SELECT `+fileColumns+` FROM project_files WHERE project_id = $1 ORDER BY path`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []*entity.ProjectFile
	for rows.Next() {
		f := &entity.ProjectFile{}
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Name, &f.Path, &f.Content, &f.FileType, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *ProjectRepository) UpdateFile(ctx context.Context, f *entity.ProjectFile) error {
	f.UpdatedAt = time.Now().UTC()
	res, err := r.db.Exec(ctx, `
		UPDATE project_files
		SET name = $1, path = $2, content = $3, file_type = $4, updated_at = $5
		WHERE id = $6 AND project_id = $7
	`, f.Name, f.Path, f.Content, f.FileType, f.UpdatedAt, f.ID, f.ProjectID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("update file: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) DeleteFile(ctx context.Context, projectID, fileID int64) error {
	res, err := r.db.Exec(ctx, `DELETE FROM project_files WHERE id = $1 AND project_id = $2`, fileID, projectID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.ProjectRepository = (*ProjectRepository)(nil)
