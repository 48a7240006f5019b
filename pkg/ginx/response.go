package ginx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Response 看板 API 统一响应
type Response struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data,omitempty"`
}

// Meta code 与 HTTP 状态码一致
type Meta struct {
	Code    int           `json:"code" example:"200"`
	Message string        `json:"message" example:"OK"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail 字段级校验错误
type ErrorDetail struct {
	Path string `json:"path" example:"status"`
	Info string `json:"info" example:"status must be one of RECEIVED PREPARING READY"`
}

func render(c *gin.Context, code int, message string, data interface{}, details []ErrorDetail) {
	c.JSON(code, Response{
		Meta: Meta{Code: code, Message: message, Details: details},
		Data: data,
	})
}

// Success 200
func Success(c *gin.Context, data interface{}) {
	render(c, http.StatusOK, "OK", data, nil)
}

// Accepted 202，流转请求已受理
func Accepted(c *gin.Context, data interface{}) {
	render(c, http.StatusAccepted, "Accepted", data, nil)
}

// Error 任意状态码的错误响应
func Error(c *gin.Context, code int, message string) {
	render(c, code, message, nil, nil)
}

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// BadRequestWithValidation 400；validator 错误展开为字段详情，其它错误（如 JSON 格式错误）原样返回
func BadRequestWithValidation(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		BadRequest(c, err.Error())
		return
	}

	details := make([]ErrorDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, ErrorDetail{Path: fe.Field(), Info: validationMessage(fe)})
	}
	render(c, http.StatusBadRequest, "Validation failed", nil, details)
}

// NotFound 404，订单不在看板上
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// Conflict 409，订单当前状态不提供该动作
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// BadGateway 502，订单服务调用失败
func BadGateway(c *gin.Context, message string) {
	Error(c, http.StatusBadGateway, message)
}

// InternalError 500
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

func validationMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return field + " must be one of " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	}
	return field + " is invalid"
}
