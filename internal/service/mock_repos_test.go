package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"organizerpro/backend/internal/model"
	"organizerpro/backend/internal/repository"
	"organizerpro/backend/pkg/period"
)

var errStoreDown = errors.New("connection refused")

// ── Mock MemberRepository ──

type mockMemberRepo struct {
	members   map[string]*model.Member
	listErr   error
	listCalls atomic.Int64
}

func newMockMemberRepo() *mockMemberRepo {
	return &mockMemberRepo{members: make(map[string]*model.Member)}
}

func (m *mockMemberRepo) add(id, name, role, status string) *model.Member {
	mem := &model.Member{MemberID: id, Name: name, Role: role, MemberType: model.MemberTypeRegular, Status: status}
	m.members[id] = mem
	return mem
}

func (m *mockMemberRepo) GetByID(_ context.Context, id string) (*model.Member, error) {
	if mem, ok := m.members[id]; ok {
		return mem, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMemberRepo) List(_ context.Context, f repository.MemberFilter) ([]model.Member, error) {
	m.listCalls.Add(1)
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := make(map[string]bool, len(f.IDs))
	for _, id := range f.IDs {
		ids[id] = true
	}

	var result []model.Member
	for _, mem := range m.members {
		if !f.IncludeInactive && !mem.IsActive() {
			continue
		}
		if f.Role != "" && mem.Role != f.Role {
			continue
		}
		if f.MemberType != "" && mem.MemberType != f.MemberType {
			continue
		}
		if len(ids) > 0 && !ids[mem.MemberID] {
			continue
		}
		result = append(result, *mem)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ── Mock AttendanceRepository ──
// 以 member_id|date 为唯一键，模拟存储层的唯一约束；并发安全

type mockAttendanceRepo struct {
	mu      sync.Mutex
	records map[string]*model.AttendanceRecord
	nextID  int

	calls     atomic.Int64    // 所有方法的调用次数
	failFor   map[string]bool // 对这些成员的写入返回 errStoreDown
	failAll   bool            // 所有调用返回 errStoreDown
	listCalls atomic.Int64
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{
		records: make(map[string]*model.AttendanceRecord),
		failFor: make(map[string]bool),
	}
}

func recordKey(memberID string, date time.Time) string {
	return memberID + "|" + period.FormatDate(date)
}

func (m *mockAttendanceRepo) GetByID(_ context.Context, id string) (*model.AttendanceRecord, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errStoreDown
	}
	for _, r := range m.records {
		if r.AttendanceID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) GetByMemberAndDate(_ context.Context, memberID string, date time.Time) (*model.AttendanceRecord, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errStoreDown
	}
	if r, ok := m.records[recordKey(memberID, date)]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) Upsert(_ context.Context, rec *model.AttendanceRecord) error {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failFor[rec.MemberID] {
		return errStoreDown
	}

	key := recordKey(rec.MemberID, rec.Date)
	if existing, ok := m.records[key]; ok {
		rec.AttendanceID = existing.AttendanceID
		rec.CreatedAt = existing.CreatedAt
		rec.CreatedBy = existing.CreatedBy
	} else {
		m.nextID++
		rec.AttendanceID = fmt.Sprintf("rec-%d", m.nextID)
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()
	cp := *rec
	m.records[key] = &cp
	return nil
}

func (m *mockAttendanceRepo) Update(_ context.Context, rec *model.AttendanceRecord) error {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failFor[rec.MemberID] {
		return errStoreDown
	}
	rec.UpdatedAt = time.Now()
	cp := *rec
	m.records[recordKey(rec.MemberID, rec.Date)] = &cp
	return nil
}

func (m *mockAttendanceRepo) Delete(_ context.Context, id string) error {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errStoreDown
	}
	for k, r := range m.records {
		if r.AttendanceID == id {
			delete(m.records, k)
		}
	}
	return nil
}

func (m *mockAttendanceRepo) List(_ context.Context, f repository.AttendanceFilter) ([]model.AttendanceRecord, int64, error) {
	m.calls.Add(1)
	m.listCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, 0, errStoreDown
	}

	var result []model.AttendanceRecord
	for _, r := range m.records {
		if matchesFilter(r, f) {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].MemberID < result[j].MemberID
	})

	total := int64(len(result))
	if f.Limit > 0 {
		end := f.Offset + f.Limit
		if f.Offset > len(result) {
			f.Offset = len(result)
		}
		if end > len(result) {
			end = len(result)
		}
		result = result[f.Offset:end]
	}
	return result, total, nil
}

func (m *mockAttendanceRepo) CountByStatus(ctx context.Context, f repository.AttendanceFilter) ([]repository.StatusCount, error) {
	f.Limit = 0
	records, _, err := m.List(ctx, f)
	if err != nil {
		return nil, err
	}
	counts := map[model.Status]int64{}
	for _, r := range records {
		counts[r.Status]++
	}
	var out []repository.StatusCount
	for s, c := range counts {
		out = append(out, repository.StatusCount{Status: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

func matchesFilter(r *model.AttendanceRecord, f repository.AttendanceFilter) bool {
	if f.MemberID != "" && r.MemberID != f.MemberID {
		return false
	}
	if len(f.MemberIDs) > 0 {
		found := false
		for _, id := range f.MemberIDs {
			if id == r.MemberID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ProjectID != "" && (r.ProjectID == nil || *r.ProjectID != f.ProjectID) {
		return false
	}
	if f.Sector != "" && r.Sector != f.Sector {
		return false
	}
	if f.From != nil && r.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Date.After(*f.To) {
		return false
	}
	return true
}

// count 当前存储的记录数
func (m *mockAttendanceRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// get 直接读取存储中的记录
func (m *mockAttendanceRepo) get(memberID, date string) *model.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, _ := period.ParseDate(date)
	return m.records[recordKey(memberID, d)]
}

// ── 测试环境 ──

// fixedToday 测试中的"今天"
var fixedToday = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	members    *mockMemberRepo
	attendance *mockAttendanceRepo
	repo       *repository.Repository
	engine     *markEngine
}

func newTestEnv(profile model.Profile) *testEnv {
	members := newMockMemberRepo()
	attendance := newMockAttendanceRepo()
	repo := &repository.Repository{Member: members, Attendance: attendance}
	return &testEnv{
		members:    members,
		attendance: attendance,
		repo:       repo,
		engine: &markEngine{
			repo:    repo,
			profile: profile,
			clock:   Clock{Now: func() time.Time { return fixedToday }, Location: time.UTC},
			logger:  zap.NewNop(),
		},
	}
}

var (
	admin = Actor{UserID: "admin-1", Role: "admin"}
	child = Actor{UserID: "child-1", Role: "child"}
)

func strPtr(s string) *string { return &s }
