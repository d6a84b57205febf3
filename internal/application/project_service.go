package application

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/fluxa/internal/domain/entity"
	repo "github.com/oksasatya/fluxa/internal/domain/repository"
)

type ProjectService struct {
	Repo   repo.ProjectRepository
	Logger *logrus.Logger
}

func NewProjectService(r repo.ProjectRepository, logger *logrus.Logger) *ProjectService {
	return &ProjectService{Repo: r, Logger: loggerOrDefault(logger)}
}

type ProjectInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	IsPublic    bool   `json:"is_public"`
	Language    string `json:"language" validate:"max=50"`
	Framework   string `json:"framework" validate:"max=50"`
}

type ProjectPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsPublic    *bool   `json:"is_public"`
	Language    *string `json:"language" validate:"omitempty,max=50"`
	Framework   *string `json:"framework" validate:"omitempty,max=50"`
}

func (p ProjectPatch) Apply(pr *entity.Project) {
	if p.Name != nil {
		pr.Name = *p.Name
	}
	if p.Description != nil {
		pr.Description = *p.Description
	}
	if p.IsPublic != nil {
		pr.IsPublic = *p.IsPublic
	}
	if p.Language != nil {
		pr.Language = *p.Language
	}
	if p.Framework != nil {
		pr.Framework = *p.Framework
	}
}

type FileInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Path     string `json:"path" validate:"required,max=1024"`
	Content  string `json:"content"`
	FileType string `json:"file_type" validate:"max=50"`
}

type FilePatch struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Path     *string `json:"path" validate:"omitempty,min=1,max=1024"`
	Content  *string `json:"content"`
	FileType *string `json:"file_type" validate:"omitempty,max=50"`
}

func (p FilePatch) Apply(f *entity.ProjectFile) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Path != nil {
		f.Path = *p.Path
	}
	if p.Content != nil {
		f.Content = *p.Content
	}
	if p.FileType != nil {
		f.FileType = *p.FileType
	}
}

type ProjectWithFiles struct {
	Project *entity.Project
	Files   []*entity.ProjectFile
}

func (s *ProjectService) List(ctx context.Context, actor *entity.Identity, offset, limit int) ([]*entity.Project, error) {
	if _, err := RequireActive(actor); err != nil {
		return nil, err
	}
	offset, limit = clampPage(offset, limit)
	list, err := s.Repo.ListByOwner(ctx, actor.ID, offset, limit)
	if err != nil {
		return nil, s.internal(err, "list projects failed", actor.ID)
	}
	return list, nil
}

func (s *ProjectService) Create(ctx context.Context, actor *entity.Identity, in ProjectInput) (*entity.Project, error) {
	if _, err := RequireActive(actor); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p := &entity.Project{
		OwnerID:     actor.ID,
		Name:        in.Name,
		Description: in.Description,
		IsPublic:    in.IsPublic,
		Language:    in.Language,
		Framework:   in.Framework,
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		return nil, s.internal(err, "create project failed", actor.ID)
	}
	return p, nil
}

// Get returns a project with its files to its owner, or to anyone when public.
func (s *ProjectService) Get(ctx context.Context, actor *entity.Identity, id int64) (*ProjectWithFiles, error) {
	if _, err := RequireActive(actor); err != nil {
		return nil, err
	}
	p, err := s.project(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != actor.ID && !p.IsPublic {
		return nil, ErrInsufficientPrivilege
	}
	files, err := s.Repo.ListFiles(ctx, p.ID)
	if err != nil {
		return nil, s.internal(err, "list files failed", actor.ID)
	}
	return &ProjectWithFiles{Project: p, Files: files}, nil
}

func (s *ProjectService) Update(ctx context.Context, actor *entity.Identity, id int64, patch ProjectPatch) (*entity.Project, error) {
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	patch.Apply(p)
	if err := s.Repo.Update(ctx, p); err != nil {
		return nil, s.storeErr(err, "update project failed", actor.ID)
	}
	return p, nil
}

func (s *ProjectService) Delete(ctx context.Context, actor *entity.Identity, id int64) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return s.storeErr(err, "delete project failed", actor.ID)
	}
	return nil
}

func (s *ProjectService) CreateFile(ctx context.Context, actor *entity.Identity, projectID int64, in FileInput) (*entity.ProjectFile, error) {
	if _, err := s.owned(ctx, actor, projectID); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	f := &entity.ProjectFile{
		ProjectID: projectID,
		Name:      in.Name,
		Path:      in.Path,
		Content:   in.Content,
		FileType:  in.FileType,
	}
	if err := s.Repo.CreateFile(ctx, f); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrInvalidInput
		}
		return nil, s.internal(err, "create file failed", actor.ID)
	}
	return f, nil
}

func (s *ProjectService) UpdateFile(ctx context.Context, actor *entity.Identity, projectID, fileID int64, patch FilePatch) (*entity.ProjectFile, error) {
	if _, err := s.owned(ctx, actor, projectID); err != nil {
		return nil, err
	}
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	f, err := s.Repo.GetFile(ctx, projectID, fileID)
	if err != nil {
		return nil, s.storeErr(err, "load file failed", actor.ID)
	}
	patch.Apply(f)
	if err := s.Repo.UpdateFile(ctx, f); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrInvalidInput
		}
		return nil, s.storeErr(err, "update file failed", actor.ID)
	}
	return f, nil
}

func (s *ProjectService) DeleteFile(ctx context.Context, actor *entity.Identity, projectID, fileID int64) error {
	if _, err := s.owned(ctx, actor, projectID); err != nil {
		return err
	}
	if err := s.Repo.DeleteFile(ctx, projectID, fileID); err != nil {
		return s.storeErr(err, "delete file failed", actor.ID)
	}
	return nil
}

// owned loads a project the active actor owns.
func (s *ProjectService) owned(ctx context.Context, actor *entity.Identity, id int64) (*entity.Project, error) {
	if _, err := RequireActive(actor); err != nil {
		return nil, err
	}
	p, err := s.project(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != actor.ID {
		return nil, ErrInsufficientPrivilege
	}
	return p, nil
}

func (s *ProjectService) project(ctx context.Context, id, actorID int64) (*entity.Project, error) {
	p, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeErr(err, "load project failed", actorID)
	}
	return p, nil
}

func (s *ProjectService) storeErr(err error, msg string, actorID int64) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return s.internal(err, msg, actorID)
}

func (s *ProjectService) internal(err error, msg string, actorID int64) error {
	s.Logger.WithError(err).WithField("actor_id", actorID).Error(msg)
	return ErrInternal
}
