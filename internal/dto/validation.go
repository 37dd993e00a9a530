package dto

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"organizerpro/backend/internal/model"
	"organizerpro/backend/pkg/period"
)

var registerOnce sync.Once

// RegisterValidators 在 gin 的校验引擎上注册考勤相关的自定义标签
//   - ymd: YYYY-MM-DD 日期（允许可规范化的时间戳）
//   - period_mode: day | month | year | range
//   - attendance_status: 封闭的考勤状态枚举
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin 校验引擎不是 validator/v10")
			return
		}
		for tag, fn := range map[string]validator.Func{
			"ymd":               validateYMD,
			"period_mode":       validatePeriodMode,
			"attendance_status": validateStatus,
		} {
			if err = v.RegisterValidation(tag, fn); err != nil {
				return
			}
		}
	})
	return err
}

func validateYMD(fl validator.FieldLevel) bool {
	_, ok := period.Normalize(fl.Field().String())
	return ok
}

func validatePeriodMode(fl validator.FieldLevel) bool {
	switch period.Mode(fl.Field().String()) {
	case period.ModeDay, period.ModeMonth, period.ModeYear, period.ModeRange:
		return true
	}
	return false
}

func validateStatus(fl validator.FieldLevel) bool {
	_, err := model.ParseStatus(fl.Field().String())
	return err == nil
}

// FieldError 单个字段的校验失败信息
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Msg   string `json:"message"`
}

// ValidationMessages 将绑定错误展开为逐字段说明；非校验类错误返回 nil
func ValidationMessages(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		e := FieldError{Field: fe.Field(), Tag: fe.Tag()}
		switch fe.Tag() {
		case "required":
			e.Msg = fmt.Sprintf("字段 '%s' 不能为空", e.Field)
		case "ymd":
			e.Msg = fmt.Sprintf("字段 '%s' 须为 YYYY-MM-DD 日期", e.Field)
		case "period_mode":
			e.Msg = "周期模式须为 day、month、year 或 range"
		case "attendance_status":
			e.Msg = fmt.Sprintf("未知考勤状态 '%v'", fe.Value())
		case "uuid":
			e.Msg = fmt.Sprintf("字段 '%s' 须为 UUID", e.Field)
		case "oneof":
			e.Msg = fmt.Sprintf("字段 '%s' 须为以下之一: %s", e.Field, fe.Param())
		case "max":
			e.Msg = fmt.Sprintf("字段 '%s' 不能超过 %s", e.Field, fe.Param())
		default:
			e.Msg = fmt.Sprintf("字段 '%s' 未通过 '%s' 校验", e.Field, e.Tag)
		}
		out = append(out, e)
	}
	return out
}

// JoinMessages 拼接为单行，用于响应的 details 字段
func JoinMessages(errs []FieldError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Msg)
	}
	return strings.Join(msgs, "; ")
}
