package repository

import (
	"context"

	"gorm.io/gorm"

	"organizerpro/backend/internal/model"
)

// MemberFilter 成员名册查询条件
type MemberFilter struct {
	IncludeInactive bool
	Role            string
	MemberType      string
	ProjectID       string
	IDs             []string
}

// MemberRepository 成员名册只读访问接口
// 成员的增删改由成员管理服务负责，本服务只读
type MemberRepository interface {
	GetByID(ctx context.Context, id string) (*model.Member, error)
	List(ctx context.Context, filter MemberFilter) ([]model.Member, error)
}

type memberRepo struct {
	db *gorm.DB
}

// NewMemberRepo 创建 MemberRepository 实例
func NewMemberRepo(db *gorm.DB) MemberRepository {
	return &memberRepo{db: db}
}

func (r *memberRepo) GetByID(ctx context.Context, id string) (*model.Member, error) {
	var m model.Member
	err := r.db.WithContext(ctx).
		Where("member_id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *memberRepo) List(ctx context.Context, filter MemberFilter) ([]model.Member, error) {
	var members []model.Member
	db := r.db.WithContext(ctx)

	if !filter.IncludeInactive {
		db = db.Where("status = ?", model.MemberStatusActive)
	}
	if filter.Role != "" {
		db = db.Where("role = ?", filter.Role)
	}
	if filter.MemberType != "" {
		db = db.Where("member_type = ?", filter.MemberType)
	}
	if filter.ProjectID != "" {
		db = db.Where("project_id = ?", filter.ProjectID)
	}
	if len(filter.IDs) > 0 {
		db = db.Where("member_id IN ?", filter.IDs)
	}

	err := db.Order("name ASC").Find(&members).Error
	return members, err
}
