package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/daris/internal/models"
)

// CourseCatalog is the read-only catalog collaborator: given an item id it
// returns price, currency and ownership. The catalog itself is managed by
// another service.
type CourseCatalog interface {
	Course(ctx context.Context, id uuid.UUID) (*models.Course, error)
	Product(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Teacher(ctx context.Context, id uuid.UUID) (*models.Teacher, error)
}

// CatalogService is the GORM-backed CourseCatalog implementation.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

func (s *CatalogService) Course(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := s.db.WithContext(ctx).First(&course, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(ErrValidation, "unknown course: "+id.String())
		}
		return nil, err
	}
	return &course, nil
}

func (s *CatalogService) Product(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(ErrValidation, "unknown product: "+id.String())
		}
		return nil, err
	}
	return &product, nil
}

func (s *CatalogService) Teacher(ctx context.Context, id uuid.UUID) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := s.db.WithContext(ctx).First(&teacher, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(ErrValidation, "unknown teacher: "+id.String())
		}
		return nil, err
	}
	return &teacher, nil
}
