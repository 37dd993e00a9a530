package service

import (
	"time"

	"organizerpro/backend/pkg/jwt"
	"organizerpro/backend/pkg/period"
)

// Actor 发起操作的账号，由 Handler 从认证上下文显式传入
type Actor struct {
	UserID string
	Role   string
}

// Restricted 受限子账号不能修改今天之前的记录
func (a Actor) Restricted() bool {
	return a.Role == jwt.RoleChild
}

// CanEdit 该账号能否修改 date 当天的记录
func (a Actor) CanEdit(date, today time.Time) bool {
	if !a.Restricted() {
		return true
	}
	return !date.Before(today)
}

// Clock 提供"现在"与判定"今天"的时区，测试中可固定
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// Today 当前时区下的日期（UTC 零点）
func (c Clock) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return period.Today(now(), c.Location)
}
