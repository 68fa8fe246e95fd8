package controller

import (
	"strconv"

	"exam_backend/internal/service"
	"exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{UserService: userService}
}

// ListUsers godoc
// @Summary 用户列表
// @Description 按角色过滤，分页返回
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   role query string false "角色(student/admin)"
// @Param   page query int false "页码"
// @Param   pageSize query int false "每页数量"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/admin/users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("pageSize", "20"))

	users, total, err := c.UserService.ListUsers(ctx.Query("role"), page, pageSize)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"users": users, "total": total, "page": page, "pageSize": pageSize})
}

// GetUser godoc
// @Summary 用户详情
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "用户ID"
// @Success 200 {object} util.Response{data=model.User} "成功"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/admin/users/{id} [get]
func (c *UserController) GetUser(ctx *gin.Context) {
	user, err := c.UserService.GetUser(ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// swagger:model SetDisabledRequest
type SetDisabledRequest struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

// SetDisabled godoc
// @Summary 禁用或启用账号
// @Description 禁用后该账号无法登录
// @Tags 用户管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "用户ID"
// @Param   body body SetDisabledRequest true "禁用状态"
// @Success 200 {object} util.Response{data=model.User} "成功"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/admin/users/{id}/disable [put]
func (c *UserController) SetDisabled(ctx *gin.Context) {
	var req SetDisabledRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.UserService.SetDisabled(ctx.Param("id"), *req.Disabled)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, user)
}
