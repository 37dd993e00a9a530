package model

import (
	"fmt"
	"strings"
)

// Status 考勤状态（封闭枚举）
// 加班不是状态：它是与状态正交的附加属性，见 AttendanceRecord.OvertimeDuration
type Status string

const (
	StatusPresent    Status = "present"
	StatusAbsent     Status = "absent"
	StatusLate       Status = "late"
	StatusHalfDay    Status = "half-day"
	StatusPermission Status = "permission"
	StatusWeekOff    Status = "week_off"
	StatusHoliday    Status = "holiday"
)

var allStatuses = []Status{
	StatusPresent, StatusAbsent, StatusLate, StatusHalfDay,
	StatusPermission, StatusWeekOff, StatusHoliday,
}

// ParseStatus 解析状态字符串，兼容 half_day 写法
func ParseStatus(s string) (Status, error) {
	v := Status(strings.ToLower(strings.TrimSpace(s)))
	if v == "half_day" {
		v = StatusHalfDay
	}
	if !v.Valid() {
		return "", fmt.Errorf("未知考勤状态 %q", s)
	}
	return v, nil
}

// Valid 是否属于封闭枚举
func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ── 行业配置 ──

// Profile 考勤能力集：通用版与 IT 版共用同一引擎，只在允许的状态与功能上不同
type Profile struct {
	Name     string
	Statuses []Status
	Overtime bool // 是否允许登记加班
	BulkMark bool // 是否允许批量标记
}

var (
	ProfileGeneral = Profile{
		Name:     "general",
		Statuses: []Status{StatusPresent, StatusAbsent, StatusLate, StatusHalfDay, StatusPermission},
	}
	ProfileIT = Profile{
		Name:     "it",
		Statuses: allStatuses,
		Overtime: true,
		BulkMark: true,
	}
)

// ProfileByName 按名称查找能力集
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case ProfileGeneral.Name:
		return ProfileGeneral, true
	case ProfileIT.Name:
		return ProfileIT, true
	}
	return Profile{}, false
}

// Allows 该配置是否允许此状态
func (p Profile) Allows(s Status) bool {
	for _, v := range p.Statuses {
		if v == s {
			return true
		}
	}
	return false
}
