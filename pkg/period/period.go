// Package period 将用户选择的统计周期（日/月/年/区间）解析为
// 日常表操作使用的目标日期，以及用于筛选与汇总的日期谓词。
//
// 所有日期在比较前统一规范化为 YYYY-MM-DD 字符串，
// 数据库中的时间戳、带时区的 RFC3339 字符串与纯日期可以混用。
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout 规范日期格式
const DateLayout = "2006-01-02"

// Mode 周期模式
type Mode string

const (
	ModeDay   Mode = "day"
	ModeMonth Mode = "month"
	ModeYear  Mode = "year"
	ModeRange Mode = "range"
)

// ErrInvalid 周期参数无法解析（如区间端点为空）
var ErrInvalid = errors.New("周期参数无效")

// Query 未解析的周期输入
type Query struct {
	Mode   Mode
	Anchor string // day: YYYY-MM-DD | month: YYYY-MM | year: YYYY
	Start  string // range 模式
	End    string // range 模式
}

// Period 已解析的周期，Start/End 为闭区间边界（UTC 零点）
type Period struct {
	Mode   Mode
	Anchor string
	Start  time.Time
	End    time.Time
}

// Resolve 严格解析周期；任一边界缺失或格式错误都返回 ErrInvalid，
// 调用方应据此跳过查询而不是发起请求
func Resolve(q Query) (Period, error) {
	switch q.Mode {
	case ModeDay:
		d, err := ParseDate(q.Anchor)
		if err != nil {
			return Period{}, fmt.Errorf("%w: day 模式需要 YYYY-MM-DD", ErrInvalid)
		}
		return Period{Mode: ModeDay, Anchor: FormatDate(d), Start: d, End: d}, nil

	case ModeMonth:
		first, err := time.Parse("2006-01", strings.TrimSpace(q.Anchor))
		if err != nil {
			return Period{}, fmt.Errorf("%w: month 模式需要 YYYY-MM", ErrInvalid)
		}
		return Period{
			Mode:   ModeMonth,
			Anchor: first.Format("2006-01"),
			Start:  first,
			End:    first.AddDate(0, 1, -1),
		}, nil

	case ModeYear:
		first, err := time.Parse("2006", strings.TrimSpace(q.Anchor))
		if err != nil {
			return Period{}, fmt.Errorf("%w: year 模式需要 YYYY", ErrInvalid)
		}
		return Period{
			Mode:   ModeYear,
			Anchor: first.Format("2006"),
			Start:  first,
			End:    time.Date(first.Year(), time.December, 31, 0, 0, 0, 0, time.UTC),
		}, nil

	case ModeRange:
		if strings.TrimSpace(q.Start) == "" || strings.TrimSpace(q.End) == "" {
			return Period{}, fmt.Errorf("%w: range 模式需要起止日期", ErrInvalid)
		}
		start, err := ParseDate(q.Start)
		if err != nil {
			return Period{}, fmt.Errorf("%w: 起始日期格式错误", ErrInvalid)
		}
		end, err := ParseDate(q.End)
		if err != nil {
			return Period{}, fmt.Errorf("%w: 结束日期格式错误", ErrInvalid)
		}
		if end.Before(start) {
			return Period{}, fmt.Errorf("%w: 结束日期早于起始日期", ErrInvalid)
		}
		return Period{Mode: ModeRange, Start: start, End: end}, nil
	}

	return Period{}, fmt.Errorf("%w: 未知模式 %q", ErrInvalid, q.Mode)
}

// TargetDate 计算日常表快捷操作的目标日期。
// 与 Resolve 不同，这里容忍不完整的输入并回退到 today：
//   - day   → 锚点日期
//   - range → 结束日期，未设置时为 today
//   - month/year → today 落在锚点周期内时取 today，否则取该周期第一天
func TargetDate(q Query, today time.Time) time.Time {
	today = truncate(today)

	switch q.Mode {
	case ModeDay:
		if d, err := ParseDate(q.Anchor); err == nil {
			return d
		}
	case ModeRange:
		if d, err := ParseDate(q.End); err == nil {
			return d
		}
	case ModeMonth, ModeYear:
		p, err := Resolve(Query{Mode: q.Mode, Anchor: q.Anchor})
		if err != nil {
			break
		}
		if p.Contains(today) {
			return today
		}
		return p.Start
	}

	return today
}

// Contains 日期是否落在闭区间内
func (p Period) Contains(d time.Time) bool {
	d = truncate(d)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Matches 日期谓词：先把 raw 规范化为 YYYY-MM-DD 再比较。
// day 精确相等；range 闭区间；month/year 按锚点前缀匹配
func (p Period) Matches(raw string) bool {
	d, ok := Normalize(raw)
	if !ok {
		return false
	}

	switch p.Mode {
	case ModeDay:
		return d == FormatDate(p.Start)
	case ModeRange:
		return d >= FormatDate(p.Start) && d <= FormatDate(p.End)
	case ModeMonth, ModeYear:
		return strings.HasPrefix(d, p.Anchor+"-")
	}
	return false
}

// MatchesTime 与 Matches 相同，入参为时间值（取其自身时区下的年月日）
func (p Period) MatchesTime(t time.Time) bool {
	return p.Matches(FormatDate(t))
}

// Len 周期内的天数（含首尾），不展开日期
// 按 Unix 秒计算，跨度超过 time.Duration 上限时仍然准确
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return int((p.End.Unix()-p.Start.Unix())/86400) + 1
}

// Days 返回周期内的全部日期（含首尾）
func (p Period) Days() []time.Time {
	days := make([]time.Time, 0, p.Len())
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// String 便于日志输出
func (p Period) String() string {
	return fmt.Sprintf("%s[%s, %s]", p.Mode, FormatDate(p.Start), FormatDate(p.End))
}

// ── 日期规范化 ──

// ParseDate 解析 YYYY-MM-DD 或可规范化的时间戳，返回 UTC 零点
func ParseDate(raw string) (time.Time, error) {
	s, ok := Normalize(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: 无法识别的日期 %q", ErrInvalid, raw)
	}
	return time.Parse(DateLayout, s)
}

// FormatDate 按年月日（不做时区换算）格式化为 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// Normalize 将异构日期表示提取为补零的 YYYY-MM-DD。
// 支持纯日期、RFC3339（含偏移）、"2006-01-02 15:04:05..." 形式的数据库时间戳
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	layouts := []string{
		DateLayout,
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-1-2",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FormatDate(t), true
		}
	}
	return "", false
}

// Today 返回 now 在给定时区下的日期（UTC 零点表示）
func Today(now time.Time, loc *time.Location) time.Time {
	if loc != nil {
		now = now.In(loc)
	}
	return truncate(now)
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
