package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"organizerpro/backend/internal/model"
	"organizerpro/backend/pkg/period"
)

// AttendanceFilter 考勤记录查询条件，From/To 为闭区间（UTC 零点）
type AttendanceFilter struct {
	MemberID  string
	MemberIDs []string
	ProjectID string
	Sector    string
	From      *time.Time
	To        *time.Time
	Offset    int
	Limit     int // 0 表示不分页
}

// StatusCount 按状态聚合的记录数
type StatusCount struct {
	Status model.Status `json:"status"`
	Count  int64        `json:"count"`
}

// AttendanceRepository 考勤记录数据访问接口
type AttendanceRepository interface {
	GetByID(ctx context.Context, id string) (*model.AttendanceRecord, error)
	GetByMemberAndDate(ctx context.Context, memberID string, date time.Time) (*model.AttendanceRecord, error)
	// Upsert 按 (member_id, date) 写入；冲突时覆盖可变字段，完成后 rec 为库中最终状态
	Upsert(ctx context.Context, rec *model.AttendanceRecord) error
	Update(ctx context.Context, rec *model.AttendanceRecord) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter AttendanceFilter) ([]model.AttendanceRecord, int64, error)
	CountByStatus(ctx context.Context, filter AttendanceFilter) ([]StatusCount, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo 创建 AttendanceRepository 实例
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

// 冲突时覆盖的列；attendance_id 与 created_* 保留首次写入的值
var upsertColumns = []string{
	"status", "subject", "project_id", "note",
	"permission_duration", "permission_reason",
	"overtime_duration", "overtime_reason",
	"sector", "updated_at", "updated_by",
}

func (r *attendanceRepo) GetByID(ctx context.Context, id string) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("attendance_id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *attendanceRepo) GetByMemberAndDate(ctx context.Context, memberID string, date time.Time) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := dateBetween(r.db.WithContext(ctx), date, date).
		Where("member_id = ?", memberID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *attendanceRepo) Upsert(ctx context.Context, rec *model.AttendanceRecord) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(rec).Error
	if err != nil {
		return err
	}

	// 冲突路径下主键仍是库中已有值，回读一次保证返回值与存储一致
	stored, err := r.GetByMemberAndDate(ctx, rec.MemberID, rec.Date)
	if err != nil {
		return err
	}
	*rec = *stored
	return nil
}

func (r *attendanceRepo) Update(ctx context.Context, rec *model.AttendanceRecord) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *attendanceRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("attendance_id = ?", id).
		Delete(&model.AttendanceRecord{}).Error
}

func (r *attendanceRepo) List(ctx context.Context, filter AttendanceFilter) ([]model.AttendanceRecord, int64, error) {
	var records []model.AttendanceRecord
	var total int64

	db := r.applyFilter(r.db.WithContext(ctx).Model(&model.AttendanceRecord{}), filter)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		db = db.Offset(filter.Offset).Limit(filter.Limit)
	}
	err := db.Order("date DESC, member_id ASC").Find(&records).Error
	return records, total, err
}

func (r *attendanceRepo) CountByStatus(ctx context.Context, filter AttendanceFilter) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.applyFilter(r.db.WithContext(ctx).Model(&model.AttendanceRecord{}), filter).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status ASC").
		Scan(&counts).Error
	return counts, err
}

func (r *attendanceRepo) applyFilter(db *gorm.DB, f AttendanceFilter) *gorm.DB {
	if f.MemberID != "" {
		db = db.Where("member_id = ?", f.MemberID)
	}
	if len(f.MemberIDs) > 0 {
		db = db.Where("member_id IN ?", f.MemberIDs)
	}
	if f.ProjectID != "" {
		db = db.Where("project_id = ?", f.ProjectID)
	}
	if f.Sector != "" {
		db = db.Where("sector = ?", f.Sector)
	}
	if f.From != nil {
		db = db.Where("date >= ?", period.FormatDate(*f.From))
	}
	if f.To != nil {
		db = db.Where("date < ?", period.FormatDate(f.To.AddDate(0, 0, 1)))
	}
	return db
}

// dateBetween 以 [from, to+1) 半开区间比较日期，兼容把 date 存为时间戳字符串的驱动
func dateBetween(db *gorm.DB, from, to time.Time) *gorm.DB {
	return db.Where("date >= ? AND date < ?", period.FormatDate(from), period.FormatDate(to.AddDate(0, 0, 1)))
}
