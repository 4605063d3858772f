package controller

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/pffigueiredo/daily-step-tracker/internal/service"
	"github.com/pffigueiredo/daily-step-tracker/internal/util"
)

type DailyStepsController struct {
	DailyStepsService *service.DailyStepsService
}

func NewDailyStepsController(dailyStepsService *service.DailyStepsService) *DailyStepsController {
	util.RegisterValidators()
	return &DailyStepsController{DailyStepsService: dailyStepsService}
}

// @Summary 记录每日步数
// @Description 同一用户同一天已存在记录时覆盖步数，否则新建
// @Tags 步数
// @Accept json
// @Produce json
// @Param body body service.CreateDailyStepsRequest true "步数信息"
// @Success 200 {object} util.Response{data=model.DailyStepRecord}
// @Failure 400 {object} util.Response
// @Router /steps [post]
func (c *DailyStepsController) CreateOrUpdate(ctx *gin.Context) {
	var req service.CreateDailyStepsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.DailyStepsService.CreateOrUpdate(ctx.Request.Context(), req)
	if err != nil {
		c.handleError(ctx, err)
		return
	}

	util.Success(ctx, record)
}

// @Summary 获取用户步数列表
// @Description 按日期倒序返回，startDate/endDate 为可选闭区间
// @Tags 步数
// @Produce json
// @Param userId query string true "用户标识"
// @Param startDate query string false "开始日期 YYYY-MM-DD"
// @Param endDate query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} util.Response{data=[]model.DailyStepRecord}
// @Failure 400 {object} util.Response
// @Router /steps [get]
func (c *DailyStepsController) ListUserSteps(ctx *gin.Context) {
	var req service.ListUserStepsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	records, err := c.DailyStepsService.ListUserSteps(ctx.Request.Context(), req)
	if err != nil {
		c.handleError(ctx, err)
		return
	}

	util.Success(ctx, records)
}

// @Summary 获取指定日期的步数
// @Description 不存在时 data 为 null
// @Tags 步数
// @Produce json
// @Param userId query string true "用户标识"
// @Param date query string true "日期 YYYY-MM-DD"
// @Success 200 {object} util.Response{data=model.DailyStepRecord}
// @Failure 400 {object} util.Response
// @Router /steps/by-date [get]
func (c *DailyStepsController) GetStepsByDate(ctx *gin.Context) {
	var req service.GetStepsByDateRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.DailyStepsService.GetStepsByDate(ctx.Request.Context(), req.UserID, req.Date)
	if err != nil {
		c.handleError(ctx, err)
		return
	}

	// record 为 nil 时输出 "data": null
	util.Success(ctx, record)
}

// @Summary 修改步数
// @Description 只修改步数，记录不存在返回 404
// @Tags 步数
// @Accept json
// @Produce json
// @Param id path int true "记录ID"
// @Param body body service.UpdateDailyStepsRequest true "新步数"
// @Success 200 {object} util.Response{data=model.DailyStepRecord}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /steps/{id} [patch]
func (c *DailyStepsController) UpdateSteps(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "Invalid record ID")
		return
	}

	var req service.UpdateDailyStepsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.DailyStepsService.UpdateSteps(ctx.Request.Context(), id, *req.Steps)
	if err != nil {
		c.handleError(ctx, err)
		return
	}

	util.Success(ctx, record)
}

// @Summary 删除步数记录
// @Description 记录不存在时 deleted 为 false
// @Tags 步数
// @Produce json
// @Param id path int true "记录ID"
// @Success 200 {object} util.Response{data=map[string]bool}
// @Failure 400 {object} util.Response
// @Router /steps/{id} [delete]
func (c *DailyStepsController) DeleteSteps(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "Invalid record ID")
		return
	}

	deleted, err := c.DailyStepsService.DeleteSteps(ctx.Request.Context(), id)
	if err != nil {
		c.handleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"deleted": deleted})
}

func (c *DailyStepsController) handleError(ctx *gin.Context, err error) {
	switch {
	case util.IsValidationError(err):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrStepsNotFound):
		util.NotFound(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
