package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
)

// CategoryUseCase alta y listado de categorías.
type CategoryUseCase struct {
	repo        repository.CategoryRepository
	invalidator ledger.Invalidator
}

// NewCategoryUseCase construye el caso de uso. invalidator puede ser nil.
func NewCategoryUseCase(repo repository.CategoryRepository, invalidator ledger.Invalidator) *CategoryUseCase {
	return &CategoryUseCase{repo: repo, invalidator: invalidator}
}

// Create registra una categoría nueva.
func (uc *CategoryUseCase) Create(ctx context.Context, in dto.CreateCategoryRequest) (*dto.CategoryResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: el nombre es obligatorio", domain.ErrInvalidInput)
	}
	c := &entity.Category{ID: uuid.New().String(), Name: name}
	if err := uc.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	if uc.invalidator != nil {
		uc.invalidator.Invalidate(ctx, cache.CatalogChanged())
	}
	return &dto.CategoryResponse{ID: c.ID, Name: c.Name}, nil
}

// List devuelve todas las categorías.
func (uc *CategoryUseCase) List(ctx context.Context) ([]dto.CategoryResponse, error) {
	items, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CategoryResponse, 0, len(items))
	for _, c := range items {
		out = append(out, dto.CategoryResponse{ID: c.ID, Name: c.Name})
	}
	return out, nil
}

// exists valida la referencia a categoría al crear productos ("" = sin categoría).
func exists(ctx context.Context, repo repository.CategoryRepository, id string) error {
	if id == "" || repo == nil {
		return nil
	}
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: categoría %s", domain.ErrNotFound, id)
	}
	return nil
}
