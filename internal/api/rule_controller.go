package api

import (
	"net/http"

	"github.com/clmops/approval-engine/internal/service"
	"github.com/gin-gonic/gin"
)

// RuleController 审批规则控制器
type RuleController struct {
	workflowService service.WorkflowService
}

// NewRuleController 创建规则控制器
func NewRuleController(workflowService service.WorkflowService) *RuleController {
	return &RuleController{
		workflowService: workflowService,
	}
}

// Create 创建审批规则
func (c *RuleController) Create(ctx *gin.Context) {
	var req service.CreateRuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	rule, err := c.workflowService.CreateRule(ctx.Request.Context(), &req)
	if err != nil {
		HandleEngineError(ctx, err)
		return
	}

	Success(ctx, rule)
}

// List 列出全部规则
func (c *RuleController) List(ctx *gin.Context) {
	rules, err := c.workflowService.ListRules()
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to list rules", err.Error())
		return
	}

	Success(ctx, rules)
}

// Deactivate 停用规则
func (c *RuleController) Deactivate(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.workflowService.DeactivateRule(ctx.Request.Context(), id); err != nil {
		HandleEngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}
