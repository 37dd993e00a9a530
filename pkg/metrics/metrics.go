// Package metrics 考勤引擎的 Prometheus 指标。
// 所有方法对 nil *Metrics 安全，测试中可直接传 nil。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 考勤相关计数器
type Metrics struct {
	marks           *prometheus.CounterVec
	markRejections  *prometheus.CounterVec
	bulkPairs       *prometheus.CounterVec
	holidayImports  prometheus.Counter
	dailySheetCache *prometheus.CounterVec
}

// New 在给定 registry 上注册全部指标
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		marks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "organizerpro_attendance_marks_total",
			Help: "Total number of attendance upserts by status and origin",
		}, []string{"status", "origin"}),
		markRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "organizerpro_attendance_mark_rejections_total",
			Help: "Total number of attendance mutations rejected before reaching the store",
		}, []string{"reason"}),
		bulkPairs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "organizerpro_attendance_bulk_pairs_total",
			Help: "Total number of (member, date) pairs processed by bulk mark",
		}, []string{"result"}),
		holidayImports: factory.NewCounter(prometheus.CounterOpts{
			Name: "organizerpro_attendance_holiday_imports_total",
			Help: "Total number of holiday calendar imports",
		}),
		dailySheetCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "organizerpro_attendance_daily_sheet_cache_total",
			Help: "Daily sheet cache lookups by result",
		}, []string{"result"}),
	}
}

// Handler 暴露 /metrics
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Mark 记录一次成功写入；origin 为 quick 或 bulk
func (m *Metrics) Mark(status, origin string) {
	if m == nil {
		return
	}
	m.marks.WithLabelValues(status, origin).Inc()
}

// Rejected 记录一次写入前被拒绝的变更
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.markRejections.WithLabelValues(reason).Inc()
}

// BulkPairs 记录批量标记的成功与失败数量
func (m *Metrics) BulkPairs(succeeded, failed int) {
	if m == nil {
		return
	}
	m.bulkPairs.WithLabelValues("succeeded").Add(float64(succeeded))
	m.bulkPairs.WithLabelValues("failed").Add(float64(failed))
}

// HolidayImport 记录一次节假日导入
func (m *Metrics) HolidayImport() {
	if m == nil {
		return
	}
	m.holidayImports.Inc()
}

// DailySheetCache 记录日常表缓存命中或未命中
func (m *Metrics) DailySheetCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.dailySheetCache.WithLabelValues(result).Inc()
}
