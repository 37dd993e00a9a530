package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 成员状态
const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
)

// 成员类型
const (
	MemberTypeRegular = "regular"
	MemberTypeGuest   = "guest"
)

// Member 成员表 — 对应 members
// 由成员管理模块维护，考勤引擎只读；停用成员不进入批量名单，但其历史记录仍可查询
type Member struct {
	MemberID   string  `gorm:"type:uuid;primaryKey"                         json:"member_id"`
	Name       string  `gorm:"type:varchar(100);not null"                   json:"name"`
	Role       string  `gorm:"type:varchar(50);not null;default:''"         json:"role"`
	MemberType string  `gorm:"type:varchar(20);not null;default:'regular'"  json:"member_type"`
	Status     string  `gorm:"type:varchar(20);not null;default:'active'"   json:"status"`
	ProjectID  *string `gorm:"type:uuid"                                    json:"project_id,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Member) TableName() string { return "members" }

// BeforeCreate 生成主键
func (m *Member) BeforeCreate(_ *gorm.DB) error {
	if m.MemberID == "" {
		m.MemberID = uuid.New().String()
	}
	return nil
}

// IsActive 是否在职
func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}
