package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"organizerpro/backend/internal/model"
	"organizerpro/backend/internal/repository"
	pkgerrors "organizerpro/backend/pkg/errors"
	"organizerpro/backend/pkg/metrics"
	"organizerpro/backend/pkg/period"
)

// ── 考勤模块业务错误 ──

var (
	ErrMemberNotFound    = fmt.Errorf("%w: 成员不存在", pkgerrors.ErrNotFound)
	ErrRecordNotFound    = fmt.Errorf("%w: 考勤记录不存在", pkgerrors.ErrNotFound)
	ErrPastDateLocked    = fmt.Errorf("%w: 子账号不能修改今天之前的考勤", pkgerrors.ErrForbidden)
	ErrInvalidDate       = fmt.Errorf("%w: 日期格式无效", pkgerrors.ErrValidation)
	ErrInvalidPeriod     = fmt.Errorf("%w: 周期参数无效", pkgerrors.ErrValidation)
	ErrInvalidWindow     = fmt.Errorf("%w: 时段无效", pkgerrors.ErrValidation)
	ErrStatusRequired    = fmt.Errorf("%w: 新建记录必须指定状态", pkgerrors.ErrValidation)
	ErrStatusNotAllowed  = fmt.Errorf("%w: 当前配置不支持该状态", pkgerrors.ErrValidation)
	ErrPermissionStatus  = fmt.Errorf("%w: 请假时段只能用于 permission 状态", pkgerrors.ErrValidation)
	ErrOvertimeDisabled  = fmt.Errorf("%w: 当前配置未开启加班登记", pkgerrors.ErrValidation)
	ErrBulkDisabled      = fmt.Errorf("%w: 当前配置未开启批量标记", pkgerrors.ErrValidation)
	ErrEmptyRoster       = fmt.Errorf("%w: 批量名单为空", pkgerrors.ErrValidation)
	ErrInvalidDateRange  = fmt.Errorf("%w: 批量日期范围无效", pkgerrors.ErrValidation)
	ErrInvalidRecurrence = fmt.Errorf("%w: 重复规则无效", pkgerrors.ErrValidation)
	ErrInvalidCalendar   = fmt.Errorf("%w: 日历文件无效", pkgerrors.ErrValidation)
)

// subPatch 请假/加班子状态的局部更新
type subPatch struct {
	duration *string // 已编码的时段字符串
	reason   *string
	clear    bool
}

// markInput 单条 upsert 的输入；nil 字段表示"保留原值"
type markInput struct {
	memberID   string
	date       time.Time
	status     *model.Status
	subject    *string
	projectID  *string
	note       *string
	permission *subPatch
	overtime   *subPatch
	origin     string // quick | bulk
	rosterOK   bool   // 调用方已确认成员存在且在名册中
}

// markEngine 单条考勤记录的合并写入引擎，快捷标记与批量标记共用
type markEngine struct {
	repo    *repository.Repository
	profile model.Profile
	clock   Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// guard 受限账号不能修改过去日期；必须在任何存储调用之前执行
func (e *markEngine) guard(actor Actor, date time.Time) error {
	if !actor.CanEdit(date, e.clock.Today()) {
		e.metrics.Rejected("past_date_locked")
		return ErrPastDateLocked
	}
	return nil
}

// checkCapabilities 校验状态与子状态是否被当前配置允许
func (e *markEngine) checkCapabilities(in *markInput) error {
	if in.status != nil && !e.profile.Allows(*in.status) {
		return fmt.Errorf("%w: %s", ErrStatusNotAllowed, *in.status)
	}
	if in.overtime != nil && !in.overtime.clear && !e.profile.Overtime {
		return ErrOvertimeDisabled
	}
	return nil
}

// apply 确保 (member, date) 恰有一条记录：不存在则创建，存在则合并显式字段
func (e *markEngine) apply(ctx context.Context, actor Actor, in markInput) (*model.AttendanceRecord, error) {
	if err := e.checkCapabilities(&in); err != nil {
		return nil, err
	}
	if err := e.guard(actor, in.date); err != nil {
		return nil, err
	}

	if !in.rosterOK {
		if _, err := e.repo.Member.GetByID(ctx, in.memberID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrMemberNotFound
			}
			e.logger.Error("查询成员失败", zap.String("member_id", in.memberID), zap.Error(err))
			return nil, pkgerrors.Persistence("查询成员", err)
		}
	}

	existing, err := e.repo.Attendance.GetByMemberAndDate(ctx, in.memberID, in.date)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		e.logger.Error("查询考勤记录失败",
			zap.String("member_id", in.memberID),
			zap.String("date", period.FormatDate(in.date)),
			zap.Error(err),
		)
		return nil, pkgerrors.Persistence("查询考勤记录", err)
	}

	rec := existing
	if rec == nil {
		rec, err = e.newRecord(actor, &in)
		if err != nil {
			return nil, err
		}
	}
	if err := merge(rec, &in); err != nil {
		return nil, err
	}
	rec.UpdatedBy = &actor.UserID

	if existing == nil {
		err = e.repo.Attendance.Upsert(ctx, rec)
	} else {
		err = e.repo.Attendance.Update(ctx, rec)
	}
	if err != nil {
		e.logger.Error("保存考勤记录失败",
			zap.String("member_id", in.memberID),
			zap.String("date", period.FormatDate(in.date)),
			zap.Error(err),
		)
		return nil, pkgerrors.Persistence("保存考勤记录", err)
	}

	e.metrics.Mark(string(rec.Status), in.origin)
	return rec, nil
}

// newRecord 首次标记；未指定状态但带请假时段时推断为 permission
func (e *markEngine) newRecord(actor Actor, in *markInput) (*model.AttendanceRecord, error) {
	status := in.status
	if status == nil {
		if in.permission == nil || in.permission.clear {
			return nil, ErrStatusRequired
		}
		s := model.StatusPermission
		status = &s
		in.status = status
	}

	return &model.AttendanceRecord{
		MemberID: in.memberID,
		Date:     in.date,
		Status:   *status,
		Subject:  model.SubjectDaily,
		Sector:   e.profile.Name,
		BaseModel: model.BaseModel{
			CreatedBy: &actor.UserID,
		},
	}, nil
}

// merge 显式字段覆盖，省略字段保留
// 状态离开 permission 时清除请假时段与原因，保证 permission_duration 只出现在 permission 记录上
func merge(rec *model.AttendanceRecord, in *markInput) error {
	if in.status != nil {
		rec.Status = *in.status
	}

	if rec.Status != model.StatusPermission {
		if in.permission != nil && !in.permission.clear {
			return ErrPermissionStatus
		}
		rec.PermissionDuration = nil
		rec.PermissionReason = nil
	} else if p := in.permission; p != nil {
		if p.clear {
			rec.PermissionDuration = nil
			rec.PermissionReason = nil
		} else {
			if p.duration != nil {
				rec.PermissionDuration = p.duration
			}
			if p.reason != nil {
				rec.PermissionReason = p.reason
			}
		}
	}

	if o := in.overtime; o != nil {
		if o.clear {
			rec.OvertimeDuration = nil
			rec.OvertimeReason = nil
		} else {
			if o.duration != nil {
				rec.OvertimeDuration = o.duration
			}
			if o.reason != nil {
				rec.OvertimeReason = o.reason
			}
		}
	}

	if in.subject != nil {
		rec.Subject = *in.subject
	}
	if in.projectID != nil {
		rec.ProjectID = in.projectID
		if *in.projectID == "" {
			rec.ProjectID = nil
		}
	}
	if in.note != nil {
		rec.Note = in.note
	}
	return nil
}
