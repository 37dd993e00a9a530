package service

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"organizerpro/backend/pkg/period"
)

// ── 节假日日历解析 ──────────────────────────────────────────
//
// 将 iCalendar (RFC 5545) 中的 VEVENT 展开为节假日日期：
//   - 全天事件的 DTEND 为开区间；带时刻的事件覆盖起止所在的每一天
//   - RRULE 以事件首日为 DTSTART 展开，EXDATE 剔除
//   - 只保留导入窗口内的日期；没有日期的事件丢弃
// ─────────────────────────────────────────────────────────────

const icsMaxFileSize = 5 * 1024 * 1024 // 5MB

// HolidayEvent 一个节假日事件及其在窗口内的日期
type HolidayEvent struct {
	Summary string
	Dates   []time.Time
}

// ParseHolidayCalendar 解析日历，loc 用于把带时区的时刻换算为本地日期
func ParseHolidayCalendar(r io.Reader, window period.Period, loc *time.Location) ([]HolidayEvent, error) {
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ics.ParseCalendar(io.LimitReader(r, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}

	var events []HolidayEvent
	for _, evt := range cal.Events() {
		he, err := parseHolidayEvent(evt, window, loc)
		if err != nil {
			return nil, err
		}
		if len(he.Dates) > 0 {
			events = append(events, he)
		}
	}
	return events, nil
}

func parseHolidayEvent(evt *ics.VEvent, window period.Period, loc *time.Location) (HolidayEvent, error) {
	summary := "Holiday"
	if p := evt.GetProperty(ics.ComponentPropertySummary); p != nil && strings.TrimSpace(p.Value) != "" {
		summary = strings.TrimSpace(p.Value)
	}

	start, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return HolidayEvent{}, fmt.Errorf("%w: 事件 %q 缺少有效的 DTSTART", ErrInvalidCalendar, summary)
	}
	firstDay := localDate(start)
	span := eventSpan(evt, start, allDay, loc)

	var firstDays []time.Time
	if prop := evt.GetProperty(ics.ComponentPropertyRrule); prop != nil {
		opt, err := rrule.StrToROption(prop.Value)
		if err != nil {
			return HolidayEvent{}, fmt.Errorf("%w: 事件 %q 的 RRULE 无效: %v", ErrInvalidCalendar, summary, err)
		}
		opt.Dtstart = firstDay
		rr, err := rrule.NewRRule(*opt)
		if err != nil {
			return HolidayEvent{}, fmt.Errorf("%w: 事件 %q 的 RRULE 无效: %v", ErrInvalidCalendar, summary, err)
		}

		set := rrule.Set{}
		set.RRule(rr)
		for _, ex := range parseExDates(evt, loc) {
			set.ExDate(ex)
		}
		// 多日事件的起点可能早于窗口
		from := window.Start.AddDate(0, 0, -(span - 1))
		firstDays = set.Between(from, window.End.Add(24*time.Hour-time.Nanosecond), true)
	} else {
		firstDays = []time.Time{firstDay}
	}

	seen := make(map[string]bool)
	var dates []time.Time
	for _, d := range firstDays {
		for i := 0; i < span; i++ {
			day := d.AddDate(0, 0, i)
			key := period.FormatDate(day)
			if seen[key] || !window.Contains(day) {
				continue
			}
			seen[key] = true
			dates = append(dates, day)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	return HolidayEvent{Summary: summary, Dates: dates}, nil
}

// eventSpan 事件覆盖的天数，至少 1 天
func eventSpan(evt *ics.VEvent, start time.Time, allDay bool, loc *time.Location) int {
	end, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil || !end.After(start) {
		return 1
	}

	last := localDate(end)
	// 全天事件 DTEND 为开区间；带时刻的事件恰好在零点结束时同理
	if allDay || (end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0) {
		last = last.AddDate(0, 0, -1)
	}
	days := int(last.Sub(localDate(start)).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// parseExDates 解析事件中所有 EXDATE（可能为逗号分隔的多个值）
func parseExDates(evt *ics.VEvent, loc *time.Location) []time.Time {
	var out []time.Time
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, v := range strings.Split(prop.Value, ",") {
			if t, _, err := parseICSValue(strings.TrimSpace(v), tzidOf(prop.ICalParameters), loc); err == nil {
				out = append(out, localDate(t))
			}
		}
	}
	return out
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性，返回是否为纯日期值
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", propName)
	}
	return parseICSValue(prop.Value, tzidOf(prop.ICalParameters), loc)
}

func parseICSValue(val, tzid string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse("20060102", val); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true, nil
	}
	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.Parse("20060102T150405", val); err == nil {
		src := loc
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				src = tzLoc
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, src).In(loc), false, nil
	}
	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}

func tzidOf(params map[string][]string) string {
	for k, v := range params {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// localDate 取 t 自身时区下的年月日，以 UTC 零点表示
func localDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
