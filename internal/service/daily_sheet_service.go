package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"organizerpro/backend/internal/dto"
	"organizerpro/backend/internal/model"
	"organizerpro/backend/internal/repository"
	pkgerrors "organizerpro/backend/pkg/errors"
	"organizerpro/backend/pkg/metrics"
	"organizerpro/backend/pkg/period"
)

// RecordCache 日常表记录缓存，由 pkg/redis.Client 实现
type RecordCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const dailySheetKeyPrefix = "attendance:daily:"

// DailySheetKey 某天记录的缓存键
func DailySheetKey(date string) string {
	return dailySheetKeyPrefix + date
}

// DailySheetService 日常表：目标日期下每个在职成员一行
// 缓存只由调用方在变更后失效，服务本身不感知写入
// 名册或记录之一读取失败时，返回标记为 Incomplete 的部分结果与错误
type DailySheetService interface {
	Get(ctx context.Context, actor Actor, req *dto.DailySheetRequest) (*dto.DailySheetResponse, error)
	Invalidate(ctx context.Context, dates ...string)
}

type dailySheetService struct {
	repo    *repository.Repository
	cache   RecordCache // 可为 nil
	ttl     time.Duration
	clock   Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewDailySheetService 创建 DailySheetService 实例；cache 为 nil 时直接读库
func NewDailySheetService(repo *repository.Repository, cache RecordCache, ttl time.Duration, clock Clock, m *metrics.Metrics, logger *zap.Logger) DailySheetService {
	return &dailySheetService{repo: repo, cache: cache, ttl: ttl, clock: clock, metrics: m, logger: logger}
}

func (s *dailySheetService) Get(ctx context.Context, actor Actor, req *dto.DailySheetRequest) (*dto.DailySheetResponse, error) {
	today := s.clock.Today()
	target := period.TargetDate(req.ToQuery(), today)
	date := period.FormatDate(target)

	// 名册与记录并行读取；一方失败时保留另一方，随聚合错误返回
	var (
		members               []model.Member
		records               []dto.AttendanceRecordResponse
		g                     errgroup.Group
		memberErr, recordsErr error
	)
	g.Go(func() error {
		var err error
		members, err = s.repo.Member.List(ctx, repository.MemberFilter{Role: req.Role})
		memberErr = pkgerrors.Persistence("加载名册", err)
		return nil
	})
	g.Go(func() error {
		records, recordsErr = s.recordsOf(ctx, target)
		return nil
	})
	_ = g.Wait()

	err := errors.Join(memberErr, recordsErr)
	if memberErr != nil && recordsErr != nil {
		s.logger.Error("日常表读取失败", zap.String("date", date), zap.Error(err))
		return nil, err
	}

	resp := &dto.DailySheetResponse{
		TargetDate: date,
		Editable:   actor.CanEdit(target, today),
		Incomplete: err != nil,
	}
	if memberErr != nil {
		// 名册不可用：只列出当天已有记录的成员
		resp.Rows = make([]dto.DailySheetRow, 0, len(records))
		for i := range records {
			resp.Rows = append(resp.Rows, dto.DailySheetRow{
				Member: dto.MemberResponse{ID: records[i].MemberID},
				Record: &records[i],
			})
		}
	} else {
		byMember := make(map[string]*dto.AttendanceRecordResponse, len(records))
		for i := range records {
			byMember[records[i].MemberID] = &records[i]
		}
		resp.Rows = make([]dto.DailySheetRow, 0, len(members))
		for _, m := range members {
			resp.Rows = append(resp.Rows, dto.DailySheetRow{
				Member: toMemberResponse(&m),
				Record: byMember[m.MemberID],
			})
		}
	}

	if err != nil {
		s.logger.Warn("日常表数据不完整", zap.String("date", date), zap.Error(err))
	}
	return resp, err
}

// recordsOf 读取某天的全部记录，优先走缓存；缓存故障只记日志
func (s *dailySheetService) recordsOf(ctx context.Context, date time.Time) ([]dto.AttendanceRecordResponse, error) {
	key := DailySheetKey(period.FormatDate(date))

	if s.cache != nil {
		var cached []dto.AttendanceRecordResponse
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("读取日常表缓存失败", zap.String("key", key), zap.Error(err))
		}
		s.metrics.DailySheetCache(hit)
		if hit {
			return cached, nil
		}
	}

	records, _, err := s.repo.Attendance.List(ctx, repository.AttendanceFilter{From: &date, To: &date})
	if err != nil {
		return nil, pkgerrors.Persistence("查询当日考勤", err)
	}

	out := make([]dto.AttendanceRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, *toRecordResponse(&records[i]))
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, out, s.ttl); err != nil {
			s.logger.Warn("写入日常表缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

func (s *dailySheetService) Invalidate(ctx context.Context, dates ...string) {
	if s.cache == nil || len(dates) == 0 {
		return
	}
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, DailySheetKey(d))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("清除日常表缓存失败", zap.Strings("keys", keys), zap.Error(err))
	}
}
