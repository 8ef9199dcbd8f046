package xfyun

import (
	"errors"
	"fmt"
)

// ErrorKind 评测错误分类
type ErrorKind int

const (
	KindConfiguration ErrorKind = iota + 1
	KindAuthentication
	KindTransport
	KindProtocol
	KindDecode
	KindTimeout
)

// String 错误分类名
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// 会话操作错误
var (
	ErrInvalidState = errors.New("评测会话状态无效")
	ErrCancelled    = errors.New("评测已取消")
)

// Error 评测会话的终止错误
type Error struct {
	Kind    ErrorKind
	Code    int    // 服务端返回的错误码，仅协议错误有
	Message string // 服务端或本地的错误描述
	SID     string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code=%d)", msg, e.Code)
	}
	if e.SID != "" {
		msg = fmt.Sprintf("%s sid=%s", msg, e.SID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf 返回错误分类，非评测错误返回0
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
