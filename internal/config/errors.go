package config

import "errors"

// 配置相关错误
var (
	ErrEmptyAppID     = errors.New("科大讯飞AppID不能为空")
	ErrEmptyAPIKey    = errors.New("科大讯飞APIKey不能为空")
	ErrEmptyAPISecret = errors.New("科大讯飞APISecret不能为空")
	ErrEmptyJWTSecret = errors.New("JWT密钥不能为空")
	ErrEmptyDSN       = errors.New("数据库连接串不能为空")
	ErrUnknownDriver  = errors.New("不支持的数据库类型")
	ErrInvalidPort    = errors.New("服务器端口无效")
)
