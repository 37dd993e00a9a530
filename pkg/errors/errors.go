package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ── 错误类别 ──
// 各业务模块的哨兵错误通过 %w 包装以下类别，Handler 层据此映射 HTTP 状态码

var (
	// ErrValidation 参数或周期不合法，调用方应跳过本次操作
	ErrValidation = errors.New("参数校验失败")
	// ErrForbidden 当前账号无权执行该变更
	ErrForbidden = errors.New("无权限执行该操作")
	// ErrNotFound 引用的成员或记录不存在
	ErrNotFound = errors.New("资源不存在")
	// ErrPersistence 存储不可用或拒绝写入
	ErrPersistence = errors.New("数据存储不可用")
)

// Persistence 包装存储层错误，同时保留类别与原始原因
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// BatchFailure 批量操作中单个 (成员, 日期) 的失败原因
type BatchFailure struct {
	MemberID string
	Date     string
	Err      error
}

// PartialBatchError 批量操作部分失败
// 调用方必须据此展示失败明细，不能视为整体成功
type PartialBatchError struct {
	Total    int
	Failures []BatchFailure
}

func (e *PartialBatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "批量操作部分失败: %d/%d", len(e.Failures), e.Total)
	for i, f := range e.Failures {
		if i == 3 {
			fmt.Fprintf(&b, "; ...")
			break
		}
		fmt.Fprintf(&b, "; %s@%s: %v", f.MemberID, f.Date, f.Err)
	}
	return b.String()
}

// Unwrap 暴露每个失败项的原因，便于 errors.Is 判断是否含权限/存储错误
func (e *PartialBatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// BatchResult 按失败数归类批量结果
//   - 无失败: nil
//   - 部分失败: *PartialBatchError
//   - 全部失败: 不再视为部分成功，返回失败项的错误类别（存储 > 权限 > 不存在 > 校验）
func BatchResult(total int, failures []BatchFailure) error {
	switch {
	case len(failures) == 0:
		return nil
	case len(failures) < total:
		return &PartialBatchError{Total: total, Failures: failures}
	}
	return fmt.Errorf("批量操作全部失败 %d/%d: %w", len(failures), total, representative(failures))
}

// representative 取优先级最高类别的首个失败原因
func representative(failures []BatchFailure) error {
	for _, category := range []error{ErrPersistence, ErrForbidden, ErrNotFound, ErrValidation} {
		for _, f := range failures {
			if errors.Is(f.Err, category) {
				return f.Err
			}
		}
	}
	return failures[0].Err
}
