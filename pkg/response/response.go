package response

import (
	"net/http"

	"coinpulse/internal/consts"

	"github.com/gin-gonic/gin"
)

// 代表响应给客户端的的一个消息结构，包括错误码，错误信息，响应数据
type ApiResponse struct {
	RequestId string      `json:"request_id"` // 请求的唯一ID
	Code      int         `json:"code"`       // 错误码 0表示无错误
	Message   string      `json:"message"`    // 提示信息
	Data      interface{} `json:"data"`       // 响应数据
}

const (
	CodeSuccess    = 0
	CodeBadRequest = 10400
	CodeUnauth     = 10401
	CodeTooMany    = 10429
	CodeInternal   = 10500
)

// OK 发送成功响应
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
	})
}

// Err 发送失败响应
// 如果code != 0, 失败的话 返回http状态码400（一般也可以全部返回200）
// 返回400 更严谨一些
func Err(c *gin.Context, code int, message string) {
	httpStatus := http.StatusBadRequest
	switch code {
	case CodeUnauth:
		httpStatus = http.StatusUnauthorized
	case CodeTooMany:
		httpStatus = http.StatusTooManyRequests
	case CodeInternal:
		httpStatus = http.StatusInternalServerError
	}
	c.JSON(httpStatus, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      code,
		Message:   message,
		Data:      nil,
	})
}

// 请求频繁，返回429
func TooManyRequests(c *gin.Context) {
	Err(c, CodeTooMany, "The request is too frequent. Please try again later.")
}
