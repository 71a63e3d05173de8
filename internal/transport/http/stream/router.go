package streamhttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"orderflow/internal/logger"
	"orderflow/internal/pipeline"
	"orderflow/internal/store/journal"
	"orderflow/internal/stream"
	"orderflow/internal/types"

	"github.com/gin-gonic/gin"
)

const (
	maxEventBytes    = 4 << 20
	defaultListLimit = 50
	maxListLimit     = 500
)

// BatchRunner 执行一个已解码的批次，由 pipeline.Driver 实现。
type BatchRunner interface {
	Run(ctx context.Context, batch types.Batch) pipeline.Result
}

// ReportStore 提供历史报告查询，由 journal.Journal 实现。
type ReportStore interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
	Get(ctx context.Context, batchID string) (types.BatchReport, bool, error)
}

// Router 暴露变更流接入与报告查询接口。
type Router struct {
	runner  BatchRunner
	reports ReportStore

	mu       sync.RWMutex
	lifetime context.Context
}

func NewRouter(runner BatchRunner, reports ReportStore) *Router {
	return &Router{runner: runner, reports: reports, lifetime: context.Background()}
}

// Bind 设置批次执行的生命周期；客户端断开不会中断已接收的批次，只有 ctx 结束才会。
func (r *Router) Bind(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	r.lifetime = ctx
	r.mu.Unlock()
}

func (r *Router) batchContext(req context.Context) (context.Context, context.CancelFunc) {
	r.mu.RLock()
	lifetime := r.lifetime
	r.mu.RUnlock()
	ctx, cancel := context.WithCancel(context.WithoutCancel(req))
	stop := context.AfterFunc(lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/stream/events", r.handleEvent)
	group.GET("/reports", r.handleReports)
	group.GET("/reports/:id", r.handleReportByID)
}

// EventResponse 与原处理函数的 {"State": "OK"|"ERROR"} 响应保持一致，并附带批次摘要。
type EventResponse struct {
	State      string              `json:"State"`
	BatchID    string              `json:"batch_id,omitempty"`
	BatchState string              `json:"batch_state,omitempty"`
	Ignored    int                 `json:"ignored"`
	Counts     *types.ReportCounts `json:"counts,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func (r *Router) handleEvent(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, EventResponse{State: "ERROR", Error: err.Error()})
		return
	}
	batch, err := stream.Decode(raw)
	if err != nil {
		logger.Warnf("[api] stream event rejected ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, EventResponse{State: "ERROR", Error: err.Error()})
		return
	}
	ctx, cancel := r.batchContext(c.Request.Context())
	defer cancel()
	res := r.runner.Run(ctx, batch)
	resp := NewEventResponse(batch, res)
	if res.Err != nil {
		c.JSON(statusFor(res.Err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// NewEventResponse 把批次执行结果转换为接口响应。
func NewEventResponse(batch types.Batch, res pipeline.Result) EventResponse {
	resp := EventResponse{
		State:      "OK",
		BatchID:    res.BatchID,
		BatchState: res.State.String(),
		Ignored:    batch.Ignored,
	}
	if res.Report != nil {
		counts := res.Report.Counts()
		resp.Counts = &counts
	}
	if res.Err != nil {
		resp.State = "ERROR"
		resp.Error = res.Err.Error()
	}
	return resp
}

func statusFor(err error) int {
	switch {
	case types.IsAuthError(err):
		return http.StatusBadGateway
	case types.IsLookupError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) handleReports(c *gin.Context) {
	if r.reports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report journal disabled"})
		return
	}
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxListLimit)
	}
	entries, err := r.reports.List(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] list reports failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": entries})
}

func (r *Router) handleReportByID(c *gin.Context) {
	if r.reports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report journal disabled"})
		return
	}
	id := c.Param("id")
	report, ok, err := r.reports.Get(c.Request.Context(), id)
	if err != nil {
		logger.Errorf("[api] get report %s failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, report)
}
