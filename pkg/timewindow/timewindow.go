// Package timewindow 编解码请假/加班时段字符串。
//
// 规范格式："{h}:{mm} {AM|PM} - {h}:{mm} {AM|PM}"，例如 "9:05 AM - 1:30 PM"。
// 时段只用于存储与展示，不折算为时长。
package timewindow

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Meridiem 上午/下午
type Meridiem string

const (
	AM Meridiem = "AM"
	PM Meridiem = "PM"
)

const separator = " - "

var (
	ErrInvalidClock = errors.New("时刻无效")

	clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])$`)
)

// Clock 12 小时制时刻
type Clock struct {
	Hour     int      `json:"hour"`   // 1-12
	Minute   int      `json:"minute"` // 0-59
	Meridiem Meridiem `json:"meridiem"`
}

// Window 起止时段
type Window struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// 解析失败时使用的默认时段：09:00 AM - 10:00 AM
var (
	DefaultStart  = Clock{Hour: 9, Minute: 0, Meridiem: AM}
	DefaultEnd    = Clock{Hour: 10, Minute: 0, Meridiem: AM}
	DefaultWindow = Window{Start: DefaultStart, End: DefaultEnd}
)

// Validate 校验时刻取值范围
func (c Clock) Validate() error {
	if c.Hour < 1 || c.Hour > 12 {
		return fmt.Errorf("%w: 小时须在 1-12 之间，实际 %d", ErrInvalidClock, c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: 分钟须在 0-59 之间，实际 %d", ErrInvalidClock, c.Minute)
	}
	if c.Meridiem != AM && c.Meridiem != PM {
		return fmt.Errorf("%w: 上下午标记须为 AM 或 PM，实际 %q", ErrInvalidClock, c.Meridiem)
	}
	return nil
}

// String 输出 "{h}:{mm} {AM|PM}"，小时不补零
func (c Clock) String() string {
	return fmt.Sprintf("%d:%02d %s", c.Hour, c.Minute, c.Meridiem)
}

// Validate 校验起止时刻
func (w Window) Validate() error {
	if err := w.Start.Validate(); err != nil {
		return fmt.Errorf("开始%w", err)
	}
	if err := w.End.Validate(); err != nil {
		return fmt.Errorf("结束%w", err)
	}
	return nil
}

// String 输出规范字符串，不做校验
func (w Window) String() string {
	return w.Start.String() + separator + w.End.String()
}

// Format 校验后编码为规范字符串
func Format(w Window) (string, error) {
	if err := w.Validate(); err != nil {
		return "", err
	}
	return w.String(), nil
}

// Parse 防御式解码：按 " - " 切分，任一侧缺失或格式错误时
// 分别替换为默认开始 09:00 AM / 默认结束 10:00 AM，从不返回错误
func Parse(s string) Window {
	w := DefaultWindow

	parts := strings.SplitN(s, separator, 2)
	if c, ok := ParseClock(parts[0]); ok {
		w.Start = c
	}
	if len(parts) == 2 {
		if c, ok := ParseClock(parts[1]); ok {
			w.End = c
		}
	}
	return w
}

// ParseClock 解析单个 "H:MM AM" 时刻，接受补零小时与小写上下午标记
func ParseClock(s string) (Clock, bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Clock{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	c := Clock{Hour: hour, Minute: minute, Meridiem: Meridiem(strings.ToUpper(m[3]))}
	if c.Validate() != nil {
		return Clock{}, false
	}
	return c, true
}
