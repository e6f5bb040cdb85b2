package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response 所有 JSON 接口的统一信封
type Response struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, httpStatus int, status string, message string, data interface{}) {
	c.JSON(httpStatus, Response{Status: status, Msg: message, Data: data})
}

func RespondSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, StatusSuccess, "", data)
}

func RespondSuccessMessage(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusOK, StatusSuccess, message, data)
}

// RespondCreated 201，新建资源
func RespondCreated(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusCreated, StatusSuccess, message, data)
}

func RespondError(c *gin.Context, httpStatus int, message string) {
	Respond(c, httpStatus, StatusError, message, nil)
}

// RespondErrorAbort 写出错误并终止后续中间件
func RespondErrorAbort(c *gin.Context, httpStatus int, message string) {
	RespondError(c, httpStatus, message)
	c.Abort()
}
