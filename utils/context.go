package utils

import (
	"context"
	"errors"
	"strings"
	"syscall"
)

// IsContextCanceled 上下文被取消，兼容 %v 包装后丢失错误链的情况
func IsContextCanceled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || strings.Contains(err.Error(), context.Canceled.Error())
}

// IsClientDisconnect 客户端中途断开：请求上下文取消或写入时连接被对端关闭
func IsClientDisconnect(err error) bool {
	if IsContextCanceled(err) {
		return true
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
