package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"organizerpro/backend/internal/dto"
	"organizerpro/backend/internal/model"
	"organizerpro/backend/internal/repository"
	pkgerrors "organizerpro/backend/pkg/errors"
	"organizerpro/backend/pkg/period"
)

// SummaryService 按周期汇总每个成员的考勤
// 名册或记录之一读取失败时，返回标记为 Incomplete 的部分结果与错误
type SummaryService interface {
	Summarize(ctx context.Context, req *dto.SummaryRequest) (*dto.SummaryResponse, error)
}

type summaryService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSummaryService 创建 SummaryService 实例
func NewSummaryService(repo *repository.Repository, logger *zap.Logger) SummaryService {
	return &summaryService{repo: repo, logger: logger}
}

func (s *summaryService) Summarize(ctx context.Context, req *dto.SummaryRequest) (*dto.SummaryResponse, error) {
	p, err := resolvePeriod(req.PeriodQuery)
	if err != nil {
		return nil, err
	}

	// 名册与记录互不依赖，并行读取；一方失败不取消另一方，已读到的部分随聚合错误一并返回
	var (
		members               []model.Member
		records               []model.AttendanceRecord
		g                     errgroup.Group
		memberErr, recordsErr error
	)
	g.Go(func() error {
		mf := repository.MemberFilter{IncludeInactive: true, Role: req.Role, MemberType: req.MemberType}
		if req.MemberID != "" {
			mf.IDs = []string{req.MemberID}
		}
		var err error
		members, err = s.repo.Member.List(ctx, mf)
		memberErr = pkgerrors.Persistence("加载名册", err)
		return nil
	})
	g.Go(func() error {
		filter := periodFilter(p)
		filter.MemberID = req.MemberID
		filter.Sector = req.Sector
		var err error
		records, _, err = s.repo.Attendance.List(ctx, filter)
		recordsErr = pkgerrors.Persistence("查询考勤记录", err)
		return nil
	})
	_ = g.Wait()

	err = errors.Join(memberErr, recordsErr)
	if memberErr != nil && recordsErr != nil {
		s.logger.Error("汇总数据读取失败", zap.Stringer("period", p), zap.Error(err))
		return nil, err
	}
	if memberErr != nil {
		members = membersOf(records)
	}

	rows := AggregateSummary(p, members, records)
	sortSummaries(rows, req.SortBy, req.Order == "desc")

	resp := &dto.SummaryResponse{
		Period:     p.String(),
		Start:      period.FormatDate(p.Start),
		End:        period.FormatDate(p.End),
		Members:    rows,
		Incomplete: err != nil,
	}
	if err != nil {
		s.logger.Warn("汇总数据不完整", zap.Stringer("period", p), zap.Error(err))
	}
	return resp, err
}

// membersOf 名册不可用时，以记录中出现的成员 ID 构造最小名册
func membersOf(records []model.AttendanceRecord) []model.Member {
	seen := make(map[string]bool)
	var out []model.Member
	for _, r := range records {
		if seen[r.MemberID] {
			continue
		}
		seen[r.MemberID] = true
		out = append(out, model.Member{MemberID: r.MemberID, Status: model.MemberStatusActive})
	}
	return out
}

// AggregateSummary 纯函数：按周期谓词统计每个成员的记录
//   - working_days 为有任意记录的天数，而非周期的日历天数
//   - attendance_rate = (present + 0.5*half_day) / working_days，百分比保留两位小数
//
// 停用成员只有在周期内有记录时才出现
func AggregateSummary(p period.Period, members []model.Member, records []model.AttendanceRecord) []dto.MemberSummaryResponse {
	byMember := make(map[string]*dto.MemberSummaryResponse, len(members))
	order := make([]string, 0, len(members))
	for _, m := range members {
		byMember[m.MemberID] = &dto.MemberSummaryResponse{
			MemberID:   m.MemberID,
			Name:       m.Name,
			Role:       m.Role,
			MemberType: m.MemberType,
		}
		order = append(order, m.MemberID)
	}
	active := make(map[string]bool, len(members))
	for _, m := range members {
		active[m.MemberID] = m.IsActive()
	}

	days := make(map[string]map[string]bool, len(members))
	for i := range records {
		rec := &records[i]
		row, ok := byMember[rec.MemberID]
		if !ok || !p.MatchesTime(rec.Date) {
			continue
		}

		d := rec.DateString()
		if days[rec.MemberID] == nil {
			days[rec.MemberID] = make(map[string]bool)
		}
		if days[rec.MemberID][d] {
			continue
		}
		days[rec.MemberID][d] = true

		row.WorkingDays++
		switch rec.Status {
		case model.StatusPresent:
			row.Present++
		case model.StatusAbsent:
			row.Absent++
		case model.StatusLate:
			row.Late++
		case model.StatusHalfDay:
			row.HalfDay++
		case model.StatusPermission:
			row.Permission++
		case model.StatusWeekOff:
			row.WeekOff++
		case model.StatusHoliday:
			row.Holiday++
		}
		if rec.HasOvertime() {
			row.OvertimeDays++
		}
	}

	out := make([]dto.MemberSummaryResponse, 0, len(order))
	for _, id := range order {
		row := byMember[id]
		if !active[id] && row.WorkingDays == 0 {
			continue
		}
		row.AttendanceRate = attendanceRate(row.Present, row.HalfDay, row.WorkingDays)
		out = append(out, *row)
	}
	return out
}

func attendanceRate(present, halfDay, workingDays int) float64 {
	if workingDays == 0 {
		return 0
	}
	rate := (float64(present) + 0.5*float64(halfDay)) / float64(workingDays) * 100
	return math.Round(rate*100) / 100
}

func sortSummaries(rows []dto.MemberSummaryResponse, by string, desc bool) {
	compare := func(a, b *dto.MemberSummaryResponse) int {
		switch by {
		case "role":
			if c := strings.Compare(a.Role, b.Role); c != 0 {
				return c
			}
			return strings.Compare(a.Name, b.Name)
		case "member_id":
			return strings.Compare(a.MemberID, b.MemberID)
		case "attendance_rate":
			switch {
			case a.AttendanceRate < b.AttendanceRate:
				return -1
			case a.AttendanceRate > b.AttendanceRate:
				return 1
			}
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(&rows[i], &rows[j])
		if c == 0 {
			c = strings.Compare(rows[i].MemberID, rows[j].MemberID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}
