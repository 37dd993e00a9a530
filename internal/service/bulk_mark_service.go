package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"organizerpro/backend/internal/dto"
	"organizerpro/backend/internal/model"
	"organizerpro/backend/internal/repository"
	pkgerrors "organizerpro/backend/pkg/errors"
	"organizerpro/backend/pkg/metrics"
	"organizerpro/backend/pkg/period"
)

// BulkMarkService 批量标记与节假日导入
// 部分失败时同时返回结果与 *pkgerrors.PartialBatchError，调用方必须展示失败明细；
// 全部失败时返回失败项的错误类别（权限或存储），不再视为部分成功
type BulkMarkService interface {
	BulkMark(ctx context.Context, actor Actor, req *dto.BulkMarkRequest) (*dto.BulkMarkResponse, error)
	ImportHolidays(ctx context.Context, actor Actor, calendar io.Reader, req *dto.HolidayImportRequest) (*dto.HolidayImportResponse, error)
}

type bulkMarkService struct {
	repo        *repository.Repository
	engine      *markEngine
	concurrency int
	maxDays     int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewBulkMarkService 创建 BulkMarkService 实例
func NewBulkMarkService(repo *repository.Repository, engine *markEngine, concurrency, maxDays int, m *metrics.Metrics, logger *zap.Logger) BulkMarkService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &bulkMarkService{
		repo:        repo,
		engine:      engine,
		concurrency: concurrency,
		maxDays:     maxDays,
		metrics:     m,
		logger:      logger,
	}
}

// ────────────────────── BulkMark ──────────────────────

func (s *bulkMarkService) BulkMark(ctx context.Context, actor Actor, req *dto.BulkMarkRequest) (*dto.BulkMarkResponse, error) {
	status, err := s.checkStatus(req.Status)
	if err != nil {
		return nil, err
	}

	dates, err := s.expandDates(req)
	if err != nil {
		return nil, err
	}
	if err := s.guardDates(actor, dates); err != nil {
		return nil, err
	}

	members, missing, err := s.loadRoster(ctx, req.MemberIDs, req.Role)
	if err != nil {
		return nil, err
	}

	subject, note := bulkDefaults(status, req.Reason)
	if n := strings.TrimSpace(req.Note); n != "" {
		note = &n
	}

	resp, failures := s.markBatch(ctx, actor, batch{
		status:  status,
		subject: subject,
		note:    note,
		members: members,
		missing: missing,
		dates:   dates,
	})
	return resp, pkgerrors.BatchResult(resp.Total, failures)
}

// guardDates 受限账号的全部日期都已锁定时，在访问存储前整体拒绝
func (s *bulkMarkService) guardDates(actor Actor, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}
	today := s.engine.clock.Today()
	for _, d := range dates {
		if actor.CanEdit(d, today) {
			return nil
		}
	}
	return s.engine.guard(actor, dates[0])
}

// bulkDefaults 推导主题与备注
//   - holiday: 主题与备注均为原因，缺省 "Holiday"
//   - week_off: 主题 "Weekend"
//   - 其他: 主题 "Bulk Mark"；提供原因时原因同时作为主题与备注
func bulkDefaults(status model.Status, reason string) (string, *string) {
	reason = strings.TrimSpace(reason)

	switch status {
	case model.StatusHoliday:
		if reason == "" {
			reason = model.SubjectHoliday
		}
		return reason, &reason
	case model.StatusWeekOff:
		if reason != "" {
			return model.SubjectWeekend, &reason
		}
		return model.SubjectWeekend, nil
	}

	if reason != "" {
		return reason, &reason
	}
	return model.SubjectBulk, nil
}

func (s *bulkMarkService) checkStatus(raw string) (model.Status, error) {
	if !s.engine.profile.BulkMark {
		return "", ErrBulkDisabled
	}
	status, err := model.ParseStatus(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", pkgerrors.ErrValidation, err)
	}
	if !s.engine.profile.Allows(status) {
		return "", fmt.Errorf("%w: %s", ErrStatusNotAllowed, status)
	}
	return status, nil
}

// expandDates 将单日或闭区间展开为日期列表，可选按 RRULE 过滤
func (s *bulkMarkService) expandDates(req *dto.BulkMarkRequest) ([]time.Time, error) {
	var p period.Period
	var err error

	switch {
	case req.Date != "" && (req.Start != "" || req.End != ""):
		return nil, fmt.Errorf("%w: date 与 start/end 不能同时提供", ErrInvalidDateRange)
	case req.Date != "":
		p, err = period.Resolve(period.Query{Mode: period.ModeDay, Anchor: req.Date})
	default:
		p, err = period.Resolve(period.Query{Mode: period.ModeRange, Start: req.Start, End: req.End})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDateRange, err)
	}

	// 先按天数校验上限再展开
	if n := p.Len(); s.maxDays > 0 && n > s.maxDays {
		return nil, fmt.Errorf("%w: 最多 %d 天，实际 %d 天", ErrInvalidDateRange, s.maxDays, n)
	}

	if strings.TrimSpace(req.Recurrence) == "" {
		return p.Days(), nil
	}
	return filterByRecurrence(req.Recurrence, p)
}

// filterByRecurrence 以区间起点为 DTSTART 展开 RRULE，仅保留区间内的发生日期
func filterByRecurrence(rule string, p period.Period) ([]time.Time, error) {
	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	opt.Dtstart = p.Start

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}

	var dates []time.Time
	for _, occ := range r.Between(p.Start, p.End.Add(24*time.Hour-time.Nanosecond), true) {
		d, _ := period.ParseDate(period.FormatDate(occ))
		if len(dates) == 0 || !dates[len(dates)-1].Equal(d) {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: 区间内没有匹配的日期", ErrInvalidDateRange)
	}
	return dates, nil
}

// loadRoster 加载在职名册；显式指定但不在名册中的成员作为失败项返回
func (s *bulkMarkService) loadRoster(ctx context.Context, ids []string, role string) ([]model.Member, []string, error) {
	members, err := s.repo.Member.List(ctx, repository.MemberFilter{IDs: ids, Role: role})
	if err != nil {
		s.logger.Error("加载名册失败", zap.Error(err))
		return nil, nil, pkgerrors.Persistence("加载名册", err)
	}
	if len(members) == 0 {
		return nil, nil, ErrEmptyRoster
	}

	var missing []string
	if len(ids) > 0 {
		found := make(map[string]bool, len(members))
		for _, m := range members {
			found[m.MemberID] = true
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if !found[id] && !seen[id] {
				missing = append(missing, id)
			}
			seen[id] = true
		}
	}
	return members, missing, nil
}

// batch 一次批量写入的参数
type batch struct {
	status  model.Status
	subject string
	note    *string
	members []model.Member
	missing []string // 不在名册中的成员，每个日期各记一次失败
	dates   []time.Time
}

// markBatch 对每个 (日期, 成员) 并发执行 upsert，等待全部完成后汇总
// 单个失败不会取消其他写入；失败项由调用方经 pkgerrors.BatchResult 归类
func (s *bulkMarkService) markBatch(ctx context.Context, actor Actor, b batch) (*dto.BulkMarkResponse, []pkgerrors.BatchFailure) {
	var (
		mu       sync.Mutex
		failures []pkgerrors.BatchFailure
		g        errgroup.Group
	)
	g.SetLimit(s.concurrency)

	fail := func(memberID string, date time.Time, err error) {
		mu.Lock()
		failures = append(failures, pkgerrors.BatchFailure{MemberID: memberID, Date: period.FormatDate(date), Err: err})
		mu.Unlock()
	}

	for _, date := range b.dates {
		for _, id := range b.missing {
			fail(id, date, ErrMemberNotFound)
		}

		// 受限账号的过去日期整列拒绝，不发起存储调用
		if err := s.engine.guard(actor, date); err != nil {
			for _, m := range b.members {
				fail(m.MemberID, date, err)
			}
			continue
		}

		for _, m := range b.members {
			in := markInput{
				memberID: m.MemberID,
				date:     date,
				status:   &b.status,
				subject:  &b.subject,
				note:     b.note,
				origin:   "bulk",
				rosterOK: true,
			}
			g.Go(func() error {
				if _, err := s.engine.apply(ctx, actor, in); err != nil {
					fail(in.memberID, in.date, err)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	total := len(b.dates) * (len(b.members) + len(b.missing))
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].Date != failures[j].Date {
			return failures[i].Date < failures[j].Date
		}
		return failures[i].MemberID < failures[j].MemberID
	})

	resp := &dto.BulkMarkResponse{
		Status:    string(b.status),
		Dates:     make([]string, 0, len(b.dates)),
		Total:     total,
		Succeeded: total - len(failures),
		Failed:    len(failures),
	}
	for _, d := range b.dates {
		resp.Dates = append(resp.Dates, period.FormatDate(d))
	}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, dto.BatchFailureResponse{MemberID: f.MemberID, Date: f.Date, Reason: f.Err.Error()})
	}

	s.metrics.BulkPairs(resp.Succeeded, resp.Failed)
	s.logger.Info("批量标记完成",
		zap.String("status", resp.Status),
		zap.Int("dates", len(b.dates)),
		zap.Int("total", total),
		zap.Int("failed", len(failures)),
		zap.String("actor", actor.UserID),
	)

	return resp, failures
}

// ────────────────────── ImportHolidays ──────────────────────

func (s *bulkMarkService) ImportHolidays(ctx context.Context, actor Actor, calendar io.Reader, req *dto.HolidayImportRequest) (*dto.HolidayImportResponse, error) {
	status, err := s.checkStatus(string(model.StatusHoliday))
	if err != nil {
		return nil, err
	}

	window, err := s.importWindow(req)
	if err != nil {
		return nil, err
	}

	events, err := ParseHolidayCalendar(calendar, window, s.engine.clock.Location)
	if err != nil {
		return nil, err
	}

	var all []time.Time
	for _, evt := range events {
		all = append(all, evt.Dates...)
	}
	if err := s.guardDates(actor, all); err != nil {
		return nil, err
	}

	members, missing, err := s.loadRoster(ctx, req.MemberIDs, "")
	if err != nil {
		return nil, err
	}

	resp := &dto.HolidayImportResponse{}
	var (
		total    int
		failures []pkgerrors.BatchFailure
	)
	for _, evt := range events {
		subject, note := bulkDefaults(status, evt.Summary)
		result, failed := s.markBatch(ctx, actor, batch{
			status:  status,
			subject: subject,
			note:    note,
			members: members,
			missing: missing,
			dates:   evt.Dates,
		})
		failures = append(failures, failed...)
		total += result.Total

		evtResp := dto.HolidayEventResponse{Summary: evt.Summary, Dates: result.Dates}
		resp.Events = append(resp.Events, evtResp)
		resp.Result = append(resp.Result, *result)
	}

	s.metrics.HolidayImport()
	s.logger.Info("节假日日历导入完成",
		zap.Int("events", len(events)),
		zap.Int("pairs", total),
		zap.Int("failed", len(failures)),
	)

	return resp, pkgerrors.BatchResult(total, failures)
}

// importWindow 导入窗口：未指定时为今天起 max_bulk_days 天
func (s *bulkMarkService) importWindow(req *dto.HolidayImportRequest) (period.Period, error) {
	today := s.engine.clock.Today()
	start, end := period.FormatDate(today), ""
	if req.From != "" {
		start = req.From
	}
	if req.To != "" {
		end = req.To
	} else {
		from, err := period.ParseDate(start)
		if err != nil {
			return period.Period{}, fmt.Errorf("%w: %v", ErrInvalidDateRange, err)
		}
		days := s.maxDays
		if days <= 0 {
			days = 366
		}
		end = period.FormatDate(from.AddDate(0, 0, days-1))
	}

	p, err := period.Resolve(period.Query{Mode: period.ModeRange, Start: start, End: end})
	if err != nil {
		return period.Period{}, fmt.Errorf("%w: %v", ErrInvalidDateRange, err)
	}
	if s.maxDays > 0 && p.Len() > s.maxDays {
		return period.Period{}, fmt.Errorf("%w: 最多 %d 天", ErrInvalidDateRange, s.maxDays)
	}
	return p, nil
}
