package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"organizerpro/backend/internal/dto"
	"organizerpro/backend/internal/model"
	pkgerrors "organizerpro/backend/pkg/errors"
)

func setupBulkService(profile model.Profile, activeMembers int) (BulkMarkService, *testEnv, []string) {
	env := newTestEnv(profile)
	ids := make([]string, 0, activeMembers)
	for i := 1; i <= activeMembers; i++ {
		id := fmt.Sprintf("00000000-0000-0000-0000-%012d", i)
		env.members.add(id, fmt.Sprintf("Member %02d", i), "engineer", model.MemberStatusActive)
		ids = append(ids, id)
	}
	env.members.add("00000000-0000-0000-0000-999999999999", "Retired", "engineer", model.MemberStatusInactive)
	return NewBulkMarkService(env.repo, env.engine, 4, 31, nil, zap.NewNop()), env, ids
}

func TestBulkMark_RangeTimesRoster(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, env, ids := setupBulkService(model.ProfileIT, 5)

	resp, err := svc.BulkMark(context.Background(), admin, &dto.BulkMarkRequest{
		Start:  "2024-03-15",
		End:    "2024-03-17",
		Status: "present",
	})
	if err != nil {
		t.Fatalf("BulkMark 应成功: %v", err)
	}
	if resp.Total != 15 || resp.Succeeded != 15 || resp.Failed != 0 {
		t.Errorf("3 天 × 5 人应为 15 条，实际 %+v", resp)
	}
	if env.attendance.count() != 15 {
		t.Fatalf("存储中应有 15 条记录，实际 %d", env.attendance.count())
	}
	for _, date := range []string{"2024-03-15", "2024-03-16", "2024-03-17"} {
		for _, id := range ids {
			rec := env.attendance.get(id, date)
			if rec == nil || rec.Status != model.StatusPresent {
				t.Errorf("%s@%s 应为 present，实际 %+v", id, date, rec)
			}
		}
	}
	if rec := env.attendance.get("00000000-0000-0000-0000-999999999999", "2024-03-15"); rec != nil {
		t.Error("停用成员不应进入批量名单")
	}

	// 重复执行仍是 15 条（upsert 而非追加）
	if _, err := svc.BulkMark(context.Background(), admin, &dto.BulkMarkRequest{Start: "2024-03-15", End: "2024-03-17", Status: "absent"}); err != nil {
		t.Fatalf("重复 BulkMark 应成功: %v", err)
	}
	if env.attendance.count() != 15 {
		t.Errorf("重复批量后仍应为 15 条，实际 %d", env.attendance.count())
	}
}

func TestBulkMark_SubjectDefaults(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name        string
		status      string
		reason      string
		wantSubject string
		wantNote    string // 空表示无备注
	}{
		{"holiday 无原因", "holiday", "", "Holiday", "Holiday"},
		{"holiday 有原因", "holiday", "Diwali", "Diwali", "Diwali"},
		{"week_off", "week_off", "", "Weekend", ""},
		{"其他状态无原因", "absent", "", "Bulk Mark", ""},
		{"其他状态有原因", "absent", "Office closed", "Office closed", "Office closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, env, ids := setupBulkService(model.ProfileIT, 1)
			_, err := svc.BulkMark(context.Background(), admin, &dto.BulkMarkRequest{
				Date:   "2024-03-20",
				Status: tt.status,
				Reason: tt.reason,
			})
			if err != nil {
				t.Fatalf("BulkMark 应成功: %v", err)
			}

			rec := env.attendance.get(ids[0], "2024-03-20")
			if rec.Subject != tt.wantSubject {
				t.Errorf("主题期望 %q，实际 %q", tt.wantSubject, rec.Subject)
			}
			gotNote := ""
			if rec.Note != nil {
				gotNote = *rec.Note
			}
			if gotNote != tt.wantNote {
				t.Errorf("备注期望 %q，实际 %q", tt.wantNote, gotNote)
			}
		})
	}
}

func TestBulkMark_ChildPastDatesPartial(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, env, _ := setupBulkService(model.ProfileIT, 3)

	resp, err := svc.BulkMark(context.Background(), child, &dto.BulkMarkRequest{
		Start:  "2024-03-14",
		End:    "2024-03-16",
		Status: "week_off",
	})

	var partial *pkgerrors.PartialBatchError
	if !errors.As(err, &partial) {
		t.Fatalf("期望 PartialBatchError，实际: %v", err)
	}
	if !errors.Is(err, ErrPastDateLocked) {
		t.Error("失败原因应包含 ErrPastDateLocked")
	}
	if resp == nil || resp.Failed != 3 || resp.Succeeded != 6 {
		t.Fatalf("昨天 3 人失败、其余 6 对成功，实际 %+v", resp)
	}
	for _, f := range resp.Failures {
		if f.Date != "2024-03-14" {
			t.Errorf("只有过去日期应失败，实际 %s", f.Date)
		}
	}
	if env.attendance.count() != 6 {
		t.Errorf("应写入 6 条记录，实际 %d", env.attendance.count())
	}
}

func TestBulkMark_StoreFailureIsPartial(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, env, ids := setupBulkService(model.ProfileIT, 4)
	env.attendance.failFor[ids[2]] = true

	resp, err := svc.BulkMark(context.Background(), admin, &dto.BulkMarkRequest{Start: "2024-03-15", End: "2024-03-16", Status: "present"})

	var partial *pkgerrors.PartialBatchError
	if !errors.As(err, &partial) {
		t.Fatalf("期望 PartialBatchError，实际: %v", err)
	}
	if len(partial.Failures) != 2 || partial.Total != 8 {
		t.Errorf("期望 8 对中 2 对失败，实际 %d/%d", len(partial.Failures), partial.Total)
	}
	if !errors.Is(err, pkgerrors.ErrPersistence) {
		t.Error("失败原因应为存储错误")
	}
	for _, f := range resp.Failures {
		if f.MemberID != ids[2] {
			t.Errorf("只有成员 %s 应失败，实际 %s", ids[2], f.MemberID)
		}
	}
}

func TestBulkMark_ChildAllPastDatesRejected(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, env, _ := setupBulkService(model.ProfileIT, 3)

	for _, req := range []*dto.BulkMarkRequest{
		{Date: "2024-03-14", Status: "week_off"},
		{Start: "2024-03-10", End: "2024-03-14", Status: "present"},
	} {
		resp, err := svc.BulkMark(context.Background(), child, req)
		if !errors.Is(err, ErrPastDateLocked) || !errors.Is(err, pkgerrors.ErrForbidden) {
			t.Fatalf("全部为过去日期应整体拒绝，实际: %v", err)
		}
		var partial *pkgerrors.PartialBatchError
		if errors.As(err, &partial) {
			t.Error("整体拒绝不应归为部分失败")
		}
		if resp != nil {
			t.Errorf("整体拒绝不应返回结果，实际 %+v", resp)
		}
	}

	if n := env.members.listCalls.Load(); n != 0 {
		t.Errorf("拒绝应发生在加载名册之前，实际查询 %d 次", n)
	}
	if n := env.attendance.calls.Load(); n != 0 {
		t.Errorf("拒绝时不应访问考勤存储，实际 %d 次", n)
	}
}

func TestBulkMark_StoreDownForAllPairs(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, env, _ := setupBulkService(model.ProfileIT, 3)
	env.attendance.failAll = true

	resp, err := svc.BulkMark(context.Background(), admin, &dto.BulkMarkRequest{Start: "2024-03-15", End: "2024-03-16", Status: "present"})
	if !errors.Is(err, pkgerrors.ErrPersistence) {
		t.Fatalf("全部写入失败应返回存储错误，实际: %v", err)
	}
	var partial *pkgerrors.PartialBatchError
	if errors.As(err, &partial) {
		t.Error("没有任何成功时不应归为部分失败")
	}
	if resp == nil || resp.Total != 6 || resp.Succeeded != 0 || resp.Failed != 6 {
		t.Errorf("结果仍应列出 6 对失败明细，实际 %+v", resp)
	}
}

func TestBulkMark_HugeRangeRejectedBeforeExpansion(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, env, _ := setupBulkService(model.ProfileIT, 2)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := svc.BulkMark(context.Background(), admin, &dto.BulkMarkRequest{Start: "0001-01-01", End: "9999-12-31", Status: "present"})
	runtime.ReadMemStats(&after)

	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("超大区间应被拒绝，实际: %v", err)
	}
	// 展开 365 万个日期约需 88MB
	if n := after.TotalAlloc - before.TotalAlloc; n > 1<<20 {
		t.Errorf("超大区间应在展开日期前被拒绝，实际分配 %d 字节", n)
	}
	if env.members.listCalls.Load() != 0 || env.attendance.calls.Load() != 0 {
		t.Error("区间被拒绝时不应访问存储")
	}
}

func TestBulkMark_ExplicitMembers(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, env, ids := setupBulkService(model.ProfileIT, 3)
	unknown := "44444444-4444-4444-4444-444444444444"

	resp, err := svc.BulkMark(context.Background(), admin, &dto.BulkMarkRequest{
		MemberIDs: []string{ids[0], unknown},
		Date:      "2024-03-15",
		Status:    "holiday",
	})
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("未知成员应作为失败项返回，实际: %v", err)
	}
	if resp.Total != 2 || resp.Succeeded != 1 || resp.Failures[0].MemberID != unknown {
		t.Errorf("结果错误: %+v", resp)
	}
	if env.attendance.count() != 1 {
		t.Errorf("只应写入指定成员，实际 %d 条", env.attendance.count())
	}
}

func TestBulkMark_Recurrence(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, env, ids := setupBulkService(model.ProfileIT, 1)

	resp, err := svc.BulkMark(context.Background(), admin, &dto.BulkMarkRequest{
		Start:      "2024-03-01",
		End:        "2024-03-10",
		Status:     "week_off",
		Recurrence: "FREQ=WEEKLY;BYDAY=SA,SU",
	})
	if err != nil {
		t.Fatalf("BulkMark 应成功: %v", err)
	}

	want := "2024-03-02,2024-03-03,2024-03-09,2024-03-10"
	if got := strings.Join(resp.Dates, ","); got != want {
		t.Errorf("期望周末 %s，实际 %s", want, got)
	}
	if env.attendance.get(ids[0], "2024-03-04") != nil {
		t.Error("工作日不应被标记")
	}
}

func TestBulkMark_Rejections(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name    string
		profile model.Profile
		members int
		req     *dto.BulkMarkRequest
		want    error
	}{
		{"通用版未开启批量", model.ProfileGeneral, 2, &dto.BulkMarkRequest{Date: "2024-03-15", Status: "present"}, ErrBulkDisabled},
		{"名册为空", model.ProfileIT, 0, &dto.BulkMarkRequest{Date: "2024-03-15", Status: "present"}, ErrEmptyRoster},
		{"区间缺少结束日期", model.ProfileIT, 2, &dto.BulkMarkRequest{Start: "2024-03-15", Status: "present"}, ErrInvalidDateRange},
		{"date 与区间同时提供", model.ProfileIT, 2, &dto.BulkMarkRequest{Date: "2024-03-15", Start: "2024-03-15", End: "2024-03-16", Status: "present"}, ErrInvalidDateRange},
		{"超过最大天数", model.ProfileIT, 2, &dto.BulkMarkRequest{Start: "2024-01-01", End: "2024-03-01", Status: "present"}, ErrInvalidDateRange},
		{"重复规则非法", model.ProfileIT, 2, &dto.BulkMarkRequest{Start: "2024-03-01", End: "2024-03-10", Status: "present", Recurrence: "FREQ=SOMETIMES"}, ErrInvalidRecurrence},
		{"未知状态", model.ProfileIT, 2, &dto.BulkMarkRequest{Date: "2024-03-15", Status: "overtime"}, pkgerrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, env, _ := setupBulkService(tt.profile, tt.members)
			resp, err := svc.BulkMark(context.Background(), admin, tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("期望 %v，实际: %v", tt.want, err)
			}
			if !errors.Is(err, pkgerrors.ErrValidation) {
				t.Error("整体拒绝应属于校验错误")
			}
			if resp != nil {
				t.Error("整体拒绝不应返回结果")
			}
			if env.attendance.count() != 0 {
				t.Errorf("整体拒绝不应写入，实际 %d 条", env.attendance.count())
			}
		})
	}
}
