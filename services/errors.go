package services

import "errors"

// 业务错误分类，controller 和 ws 命令分发按这些哨兵错误映射给调用方
var (
	// ErrInvalidArgument 参数非法：空内容、超长内容、自聊、负数分页
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrForbidden 已登录但不是会话成员
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound 实体不存在，或故意不区分"不存在"和"不是发给你的"
	ErrNotFound = errors.New("not found")
)
