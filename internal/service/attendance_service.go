package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"organizerpro/backend/internal/dto"
	"organizerpro/backend/internal/model"
	"organizerpro/backend/internal/repository"
	pkgerrors "organizerpro/backend/pkg/errors"
	"organizerpro/backend/pkg/period"
	"organizerpro/backend/pkg/timewindow"
)

// AttendanceService 单条考勤记录的标记、删除与查询
type AttendanceService interface {
	QuickMark(ctx context.Context, actor Actor, req *dto.QuickMarkRequest) (*dto.AttendanceRecordResponse, error)
	Delete(ctx context.Context, actor Actor, id string) (*dto.AttendanceRecordResponse, error)
	List(ctx context.Context, req *dto.RecordListRequest) ([]dto.AttendanceRecordResponse, int64, error)
	Stats(ctx context.Context, req *dto.StatsRequest) (*dto.StatsResponse, error)
}

type attendanceService struct {
	repo   *repository.Repository
	engine *markEngine
	logger *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(repo *repository.Repository, engine *markEngine, logger *zap.Logger) AttendanceService {
	return &attendanceService{repo: repo, engine: engine, logger: logger}
}

// ────────────────────── QuickMark ──────────────────────

func (s *attendanceService) QuickMark(ctx context.Context, actor Actor, req *dto.QuickMarkRequest) (*dto.AttendanceRecordResponse, error) {
	date, err := period.ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}

	in := markInput{
		memberID:  req.MemberID,
		date:      date,
		subject:   req.Subject,
		projectID: req.ProjectID,
		note:      req.Note,
		origin:    "quick",
	}
	if req.Status != nil {
		st, err := model.ParseStatus(*req.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrValidation, err)
		}
		in.status = &st
	}
	if in.permission, err = toSubPatch(req.Permission, "请假"); err != nil {
		return nil, err
	}
	if in.overtime, err = toSubPatch(req.Overtime, "加班"); err != nil {
		return nil, err
	}

	rec, err := s.engine.apply(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	return toRecordResponse(rec), nil
}

// toSubPatch 编码时段；nil 输入表示不修改该子状态
func toSubPatch(in *dto.WindowInput, label string) (*subPatch, error) {
	if in == nil {
		return nil, nil
	}
	if in.Clear {
		return &subPatch{clear: true}, nil
	}

	p := &subPatch{reason: in.Reason}
	if in.Window != nil {
		s, err := timewindow.Format(*in.Window)
		if err != nil {
			return nil, fmt.Errorf("%w: %s%v", ErrInvalidWindow, label, err)
		}
		p.duration = &s
	}
	return p, nil
}

// ────────────────────── Delete ──────────────────────

func (s *attendanceService) Delete(ctx context.Context, actor Actor, id string) (*dto.AttendanceRecordResponse, error) {
	// 按 ID 删除时日期只能从记录本身得知，守卫在这次只读查询之后、任何写入之前执行
	rec, err := s.repo.Attendance.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		s.logger.Error("查询考勤记录失败", zap.String("id", id), zap.Error(err))
		return nil, pkgerrors.Persistence("查询考勤记录", err)
	}

	if err := s.engine.guard(actor, rec.Date); err != nil {
		return nil, err
	}

	if err := s.repo.Attendance.Delete(ctx, id); err != nil {
		s.logger.Error("删除考勤记录失败", zap.String("id", id), zap.Error(err))
		return nil, pkgerrors.Persistence("删除考勤记录", err)
	}

	s.logger.Info("考勤记录已删除",
		zap.String("id", id),
		zap.String("member_id", rec.MemberID),
		zap.String("date", rec.DateString()),
		zap.String("actor", actor.UserID),
	)
	return toRecordResponse(rec), nil
}

// ────────────────────── List ──────────────────────

func (s *attendanceService) List(ctx context.Context, req *dto.RecordListRequest) ([]dto.AttendanceRecordResponse, int64, error) {
	p, err := resolvePeriod(req.PeriodQuery)
	if err != nil {
		return nil, 0, err
	}

	filter := periodFilter(p)
	filter.MemberID = req.MemberID
	filter.ProjectID = req.ProjectID
	filter.Sector = req.Sector
	filter.Offset = req.GetOffset()
	filter.Limit = req.GetPageSize()

	records, total, err := s.repo.Attendance.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询考勤列表失败", zap.Stringer("period", p), zap.Error(err))
		return nil, 0, pkgerrors.Persistence("查询考勤列表", err)
	}

	result := make([]dto.AttendanceRecordResponse, 0, len(records))
	for i := range records {
		result = append(result, *toRecordResponse(&records[i]))
	}
	return result, total, nil
}

// ────────────────────── Stats ──────────────────────

func (s *attendanceService) Stats(ctx context.Context, req *dto.StatsRequest) (*dto.StatsResponse, error) {
	p, err := resolvePeriod(req.PeriodQuery)
	if err != nil {
		return nil, err
	}

	filter := periodFilter(p)
	filter.MemberID = req.MemberID
	filter.ProjectID = req.ProjectID
	filter.Sector = req.Sector

	counts, err := s.repo.Attendance.CountByStatus(ctx, filter)
	if err != nil {
		s.logger.Error("统计考勤状态失败", zap.Stringer("period", p), zap.Error(err))
		return nil, pkgerrors.Persistence("统计考勤状态", err)
	}

	resp := &dto.StatsResponse{Period: p.String(), Counts: make([]dto.StatusCountResponse, 0, len(counts))}
	for _, c := range counts {
		resp.Total += c.Count
		resp.Counts = append(resp.Counts, dto.StatusCountResponse{Status: string(c.Status), Count: c.Count})
	}
	return resp, nil
}

// ── 内部辅助方法 ──

// resolvePeriod 严格解析周期；失败时返回校验错误，调用方不得发起查询
func resolvePeriod(q dto.PeriodQuery) (period.Period, error) {
	p, err := period.Resolve(q.ToQuery())
	if err != nil {
		return period.Period{}, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
	}
	return p, nil
}

func periodFilter(p period.Period) repository.AttendanceFilter {
	from, to := p.Start, p.End
	return repository.AttendanceFilter{From: &from, To: &to}
}

func toRecordResponse(rec *model.AttendanceRecord) *dto.AttendanceRecordResponse {
	resp := &dto.AttendanceRecordResponse{
		ID:                 rec.AttendanceID,
		MemberID:           rec.MemberID,
		Date:               rec.DateString(),
		Status:             string(rec.Status),
		Subject:            rec.Subject,
		ProjectID:          rec.ProjectID,
		Note:               rec.Note,
		PermissionDuration: rec.PermissionDuration,
		PermissionReason:   rec.PermissionReason,
		OvertimeDuration:   rec.OvertimeDuration,
		OvertimeReason:     rec.OvertimeReason,
		Sector:             rec.Sector,
		CreatedBy:          rec.CreatedBy,
		UpdatedBy:          rec.UpdatedBy,
		CreatedAt:          rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:          rec.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	// permission 记录即使缺少时段也回显默认窗口
	if rec.Status == model.StatusPermission {
		w := timewindow.Parse(deref(rec.PermissionDuration))
		resp.PermissionWindow = &w
	}
	if rec.HasOvertime() {
		w := timewindow.Parse(*rec.OvertimeDuration)
		resp.OvertimeWindow = &w
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
