package service

import (
	"go.uber.org/zap"

	"organizerpro/backend/config"
	"organizerpro/backend/internal/model"
	"organizerpro/backend/internal/repository"
	"organizerpro/backend/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Attendance AttendanceService
	BulkMark   BulkMarkService
	Summary    SummaryService
	DailySheet DailySheetService
	Member     MemberService
	Profile    model.Profile
}

// NewService 创建 Service 聚合
// cache 为 nil 时日常表不走缓存
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	cache RecordCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	profile, ok := model.ProfileByName(cfg.Attendance.Profile)
	if !ok {
		profile = model.ProfileGeneral
	}
	clock := Clock{Location: cfg.Attendance.Location()}

	engine := &markEngine{
		repo:    repo,
		profile: profile,
		clock:   clock,
		metrics: m,
		logger:  logger,
	}

	return &Service{
		Attendance: NewAttendanceService(repo, engine, logger),
		BulkMark:   NewBulkMarkService(repo, engine, cfg.Attendance.BulkConcurrency, cfg.Attendance.MaxBulkDays, m, logger),
		Summary:    NewSummaryService(repo, logger),
		DailySheet: NewDailySheetService(repo, cache, cfg.Attendance.DailySheetCacheTTL, clock, m, logger),
		Member:     NewMemberService(repo, logger),
		Profile:    profile,
	}
}
