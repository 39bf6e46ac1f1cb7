package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/risk-alert-api/internal/models"
)

// AcademicRecordRepository exposes persistence helpers for per-student academic records.
type AcademicRecordRepository interface {
	List(ctx context.Context) ([]models.AcademicRecord, error)
	ListByRiskLevel(ctx context.Context, level models.RiskLevel) ([]models.AcademicRecord, error)
	GetByID(ctx context.Context, id uint) (models.AcademicRecord, error)
	GetByUserID(ctx context.Context, userID uint) (models.AcademicRecord, error)
	UpsertForUser(ctx context.Context, userID uint) (models.AcademicRecord, error)
	Save(ctx context.Context, record *models.AcademicRecord) error
}

type academicRecordRepository struct {
	db *gorm.DB
}

// NewAcademicRecordRepository constructs the academic record repository.
func NewAcademicRecordRepository(db *gorm.DB) AcademicRecordRepository {
	return &academicRecordRepository{db: db}
}

func (r *academicRecordRepository) List(ctx context.Context) ([]models.AcademicRecord, error) {
	var records []models.AcademicRecord
	if err := r.db.WithContext(ctx).
		Preload("User").
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *academicRecordRepository) ListByRiskLevel(ctx context.Context, level models.RiskLevel) ([]models.AcademicRecord, error) {
	var records []models.AcademicRecord
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("risk_level = ?", level).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *academicRecordRepository) GetByID(ctx context.Context, id uint) (models.AcademicRecord, error) {
	var record models.AcademicRecord
	if err := r.db.WithContext(ctx).Preload("User").First(&record, id).Error; err != nil {
		return models.AcademicRecord{}, err
	}

	return record, nil
}

func (r *academicRecordRepository) GetByUserID(ctx context.Context, userID uint) (models.AcademicRecord, error) {
	var record models.AcademicRecord
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		First(&record).Error; err != nil {
		return models.AcademicRecord{}, err
	}

	return record, nil
}

// UpsertForUser returns the user's record, creating an empty Low-risk one when missing.
func (r *academicRecordRepository) UpsertForUser(ctx context.Context, userID uint) (models.AcademicRecord, error) {
	record := models.AcademicRecord{}
	err := r.db.WithContext(ctx).
		Where(models.AcademicRecord{UserID: userID}).
		Attrs(models.AcademicRecord{
			Subjects:  []models.Subject{},
			RiskLevel: models.RiskLevelLow,
		}).
		FirstOrCreate(&record).Error
	if err != nil {
		return models.AcademicRecord{}, err
	}

	return record, nil
}

func (r *academicRecordRepository) Save(ctx context.Context, record *models.AcademicRecord) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(record).Error
}
