package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/clmops/approval-engine/internal/service"
	"github.com/gin-gonic/gin"
)

// RequestController 审批请求控制器
type RequestController struct {
	workflowService service.WorkflowService
	queryService    service.QueryService
	auditLogService service.AuditLogService
}

// NewRequestController 创建请求控制器
func NewRequestController(workflowService service.WorkflowService, queryService service.QueryService, auditLogService service.AuditLogService) *RequestController {
	return &RequestController{
		workflowService: workflowService,
		queryService:    queryService,
		auditLogService: auditLogService,
	}
}

// Create 创建审批请求
func (c *RequestController) Create(ctx *gin.Context) {
	var req service.CreateApprovalRequestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	request, sent, err := c.workflowService.CreateRequest(ctx.Request.Context(), &req)
	if err != nil {
		HandleEngineError(ctx, err)
		return
	}

	Success(ctx, gin.H{
		"request":           request,
		"notification_sent": sent,
	})
}

// List 列出审批请求
func (c *RequestController) List(ctx *gin.Context) {
	filter := &service.ListRequestsFilter{
		SortBy: ctx.Query("sort_by"),
		Order:  ctx.Query("order"),
	}

	if state := ctx.Query("state"); state != "" {
		filter.State = &state
	}
	if entityType := ctx.Query("entity_type"); entityType != "" {
		filter.EntityType = &entityType
	}
	if approver := ctx.Query("approver"); approver != "" {
		filter.Approver = &approver
	}
	if requester := ctx.Query("requester"); requester != "" {
		filter.Requester = &requester
	}
	if start := ctx.Query("start_time"); start != "" {
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			filter.StartTime = &t
		}
	}
	if end := ctx.Query("end_time"); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			filter.EndTime = &t
		}
	}

	filter.Page, _ = strconv.Atoi(ctx.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(ctx.DefaultQuery("page_size", "20"))

	requests, total, err := c.queryService.ListRequests(filter)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "failed to list requests", err.Error())
		return
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	totalPage := int((total + int64(pageSize) - 1) / int64(pageSize))

	Paginated(ctx, requests, PaginationInfo{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// Get 获取审批请求详情
func (c *RequestController) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	request, err := c.workflowService.GetRequest(id)
	if err != nil {
		HandleEngineError(ctx, err)
		return
	}

	Success(ctx, request)
}

// Approve 审批通过当前阶段
func (c *RequestController) Approve(ctx *gin.Context) {
	id := ctx.Param("id")

	var req service.DecisionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	ok, message, err := c.workflowService.Approve(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleEngineError(ctx, err)
		return
	}

	Success(ctx, gin.H{
		"success": ok,
		"message": message,
	})
}

// Reject 拒绝审批请求
func (c *RequestController) Reject(ctx *gin.Context) {
	id := ctx.Param("id")

	var req service.DecisionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	ok, message, err := c.workflowService.Reject(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleEngineError(ctx, err)
		return
	}

	Success(ctx, gin.H{
		"success": ok,
		"message": message,
	})
}

// ListPending 列出待审批请求,按超时期限升序
func (c *RequestController) ListPending(ctx *gin.Context) {
	requests, err := c.workflowService.ListPending()
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to list pending requests", err.Error())
		return
	}

	Success(ctx, requests)
}

// GetHistory 获取请求的状态历史
func (c *RequestController) GetHistory(ctx *gin.Context) {
	id := ctx.Param("id")

	history, err := c.queryService.GetHistory(id)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to get history", err.Error())
		return
	}

	Success(ctx, history)
}

// GetAuditTrail 获取请求的审计轨迹
func (c *RequestController) GetAuditTrail(ctx *gin.Context) {
	id := ctx.Param("id")

	entries, err := c.auditLogService.GetTrail("request", id)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to get audit trail", err.Error())
		return
	}

	Success(ctx, entries)
}

// SweepEscalations 扫描超期请求并执行升级
func (c *RequestController) SweepEscalations(ctx *gin.Context) {
	count, err := c.workflowService.SweepEscalations(ctx.Request.Context())
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to sweep escalations", err.Error())
		return
	}

	Success(ctx, gin.H{
		"escalated": count,
	})
}
