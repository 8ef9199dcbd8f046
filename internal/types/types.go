// Package types 定义浏览器评测通道的消息类型
package types

import "voice_eval/internal/models"

// ClientMessageType 浏览器发来的命令
type ClientMessageType string

const (
	ClientStart  ClientMessageType = "start"
	ClientStop   ClientMessageType = "stop"
	ClientCancel ClientMessageType = "cancel"
)

// ClientMessage 浏览器文本消息，音频以二进制消息单独发送
type ClientMessage struct {
	Type       ClientMessageType `json:"type"`
	Category   string            `json:"category,omitempty"`
	Text       string            `json:"text,omitempty"`
	Language   string            `json:"language,omitempty"`
	SampleRate int               `json:"sampleRate,omitempty"` // 浏览器采集采样率，缺省为16k
}

// ServerMessageType 服务端推送的消息类型
type ServerMessageType string

const (
	ServerReady    ServerMessageType = "ready"
	ServerProgress ServerMessageType = "progress"
	ServerResult   ServerMessageType = "result"
	ServerError    ServerMessageType = "error"
)

// ServerMessage 服务端推送给浏览器的消息
type ServerMessage struct {
	Type       ServerMessageType        `json:"type"`
	SessionID  string                   `json:"sessionId,omitempty"`
	Status     BridgeStatus             `json:"status,omitempty"`
	Result     *models.EvaluationResult `json:"result,omitempty"`
	Level      *models.ScoreLevel       `json:"level,omitempty"`
	PracticeID string                   `json:"practiceId,omitempty"`
	Kind       string                   `json:"kind,omitempty"`
	Message    string                   `json:"message,omitempty"`
	Code       int                      `json:"code,omitempty"`
}

// BridgeStatus 评测通道状态
type BridgeStatus string

const (
	BridgeIdle       BridgeStatus = "idle"
	BridgeConnecting BridgeStatus = "connecting"
	BridgeRecording  BridgeStatus = "recording"
	BridgeEvaluating BridgeStatus = "evaluating"
	BridgeCompleted  BridgeStatus = "completed"
	BridgeFailed     BridgeStatus = "failed"
	BridgeCancelled  BridgeStatus = "cancelled"
)

// ReadyMessage 会话已建立
func ReadyMessage(sessionID string) ServerMessage {
	return ServerMessage{Type: ServerReady, SessionID: sessionID}
}

// ProgressMessage 状态变化
func ProgressMessage(status BridgeStatus) ServerMessage {
	return ServerMessage{Type: ServerProgress, Status: status}
}

// ResultMessage 最终结果
func ResultMessage(result *models.EvaluationResult, practiceID string) ServerMessage {
	level := models.LevelFor(result.TotalScore)
	return ServerMessage{Type: ServerResult, Result: result, Level: &level, PracticeID: practiceID}
}

// ErrorMessage 错误
func ErrorMessage(kind, message string, code int) ServerMessage {
	return ServerMessage{Type: ServerError, Kind: kind, Message: message, Code: code}
}
