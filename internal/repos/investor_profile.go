package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

type InvestorProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, investor *types.InvestorProfile) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.InvestorProfile, error)
	List(ctx context.Context, tx *gorm.DB, offset, limit int) ([]*types.InvestorProfile, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
}

type investorProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvestorProfileRepo(db *gorm.DB, baseLog *logger.Logger) InvestorProfileRepo {
	return &investorProfileRepo{
		db:  db,
		log: baseLog.With("repo", "InvestorProfileRepo"),
	}
}

func (r *investorProfileRepo) Create(ctx context.Context, tx *gorm.DB, investor *types.InvestorProfile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if investor.ID == uuid.Nil {
		investor.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(investor).Error
}

func (r *investorProfileRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.InvestorProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.InvestorProfile
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *investorProfileRepo) List(ctx context.Context, tx *gorm.DB, offset, limit int) ([]*types.InvestorProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.InvestorProfile
	err := transaction.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *investorProfileRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.InvestorProfile{}).
		Count(&count).Error
	return count, err
}
