package services

import "errors"

// 业务校验错误，消息直接返回给前端
var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrEmailTaken         = errors.New("该邮箱已被注册")
	ErrMissingFields      = errors.New("请填写所有必填字段")
	ErrMissingLogin       = errors.New("请填写邮箱和密码")
	ErrInvalidEmail       = errors.New("邮箱格式不正确")
	ErrPasswordTooShort   = errors.New("密码至少需要6个字符")

	ErrMissingPracticeFields = errors.New("缺少必填字段")
	ErrInvalidPracticeType   = errors.New("无效的练习类型")

	ErrISENotConfigured = errors.New("讯飞评测服务未配置")
)
