package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"organizerpro/backend/internal/dto"
	"organizerpro/backend/internal/service"
	pkgerrors "organizerpro/backend/pkg/errors"
	"organizerpro/backend/pkg/response"
)

// AttendanceHandler 考勤模块 HTTP 处理器
type AttendanceHandler struct {
	attendance service.AttendanceService
	bulk       service.BulkMarkService
	summary    service.SummaryService
	sheet      service.DailySheetService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(
	attendance service.AttendanceService,
	bulk service.BulkMarkService,
	summary service.SummaryService,
	sheet service.DailySheetService,
) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, bulk: bulk, summary: summary, sheet: sheet}
}

// QuickMark 快捷标记（创建或合并更新）
// PUT /api/v1/attendance/quick-mark
func (h *AttendanceHandler) QuickMark(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.QuickMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	rec, err := h.attendance.QuickMark(c.Request.Context(), actor, &req)
	if err != nil {
		handleAttendanceError(c, err)
		return
	}

	h.sheet.Invalidate(c.Request.Context(), rec.Date)
	response.OK(c, rec)
}

// BulkMark 批量标记
// POST /api/v1/attendance/bulk-mark
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.BulkMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.bulk.BulkMark(c.Request.Context(), actor, &req)
	if resp == nil {
		handleAttendanceError(c, err)
		return
	}
	h.sheet.Invalidate(c.Request.Context(), resp.Dates...)
	if err != nil {
		handleBatchError(c, err, resp)
		return
	}
	response.OK(c, resp)
}

// ImportHolidays 上传节假日日历并批量标记为 holiday
// POST /api/v1/attendance/holidays/import (multipart, field="file")
func (h *AttendanceHandler) ImportHolidays(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.HolidayImportRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, 17001, "请上传日历文件")
		return
	}
	defer file.Close()

	resp, err := h.bulk.ImportHolidays(c.Request.Context(), actor, file, &req)
	if resp == nil {
		handleAttendanceError(c, err)
		return
	}
	for _, r := range resp.Result {
		h.sheet.Invalidate(c.Request.Context(), r.Dates...)
	}
	if err != nil {
		handleBatchError(c, err, resp)
		return
	}
	response.Created(c, resp)
}

// ListRecords 按周期分页查询考勤记录
// GET /api/v1/attendance/records
func (h *AttendanceHandler) ListRecords(c *gin.Context) {
	var req dto.RecordListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	records, total, err := h.attendance.List(c.Request.Context(), &req)
	if err != nil {
		handleAttendanceError(c, err)
		return
	}

	response.OKPage(c, records, total, req.GetPage(), req.GetPageSize())
}

// DeleteRecord 删除考勤记录
// DELETE /api/v1/attendance/records/:id
func (h *AttendanceHandler) DeleteRecord(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 17001, "记录ID不能为空")
		return
	}

	rec, err := h.attendance.Delete(c.Request.Context(), actor, id)
	if err != nil {
		handleAttendanceError(c, err)
		return
	}

	h.sheet.Invalidate(c.Request.Context(), rec.Date)
	response.OK(c, nil)
}

// Stats 周期内状态分布
// GET /api/v1/attendance/stats
func (h *AttendanceHandler) Stats(c *gin.Context) {
	var req dto.StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.attendance.Stats(c.Request.Context(), &req)
	if err != nil {
		handleAttendanceError(c, err)
		return
	}
	response.OK(c, resp)
}

// Summary 成员汇总
// GET /api/v1/attendance/summary
func (h *AttendanceHandler) Summary(c *gin.Context) {
	var req dto.SummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.summary.Summarize(c.Request.Context(), &req)
	if err != nil {
		if resp != nil {
			renderError(c, err, resp)
			return
		}
		handleAttendanceError(c, err)
		return
	}
	response.OK(c, resp)
}

// DailySheet 日常表
// GET /api/v1/attendance/daily-sheet
func (h *AttendanceHandler) DailySheet(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.DailySheetRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.sheet.Get(c.Request.Context(), actor, &req)
	if err != nil {
		if resp != nil {
			renderError(c, err, resp)
			return
		}
		handleAttendanceError(c, err)
		return
	}
	response.OK(c, resp)
}

// ── 错误映射 ──

// bindError 请求绑定失败：展开逐字段说明
func bindError(c *gin.Context, err error) {
	if fields := dto.ValidationMessages(err); len(fields) > 0 {
		response.ErrorWithDetails(c, http.StatusBadRequest, 17001, "参数校验失败", dto.JoinMessages(fields))
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 17001, "请求格式错误", err.Error())
}

// handleBatchError 批量操作部分失败时返回 207 与明细；全部失败时按类别映射并附带明细
func handleBatchError(c *gin.Context, err error, data interface{}) {
	var partial *pkgerrors.PartialBatchError
	if errors.As(err, &partial) {
		response.MultiStatus(c, 17010, partial.Error(), data)
		return
	}
	renderError(c, err, data)
}

// handleAttendanceError 统一考勤模块错误映射
func handleAttendanceError(c *gin.Context, err error) {
	renderError(c, err, nil)
}

// renderError 按错误类别映射状态码；data 非空时一并返回已取得的部分结果
func renderError(c *gin.Context, err error, data interface{}) {
	switch {
	case errors.Is(err, pkgerrors.ErrValidation):
		response.ErrorWithData(c, http.StatusBadRequest, 17001, "参数校验失败", err.Error(), data)
	case errors.Is(err, pkgerrors.ErrForbidden):
		response.ErrorWithData(c, http.StatusForbidden, 17003, "无权限执行该操作", err.Error(), data)
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.ErrorWithData(c, http.StatusNotFound, 17004, err.Error(), "", data)
	case errors.Is(err, pkgerrors.ErrPersistence):
		response.ErrorWithData(c, http.StatusServiceUnavailable, 17500, "数据存储暂不可用，请稍后重试", "", data)
	default:
		response.ErrorWithData(c, http.StatusInternalServerError, 50000, "服务器内部错误", "", data)
	}
}
