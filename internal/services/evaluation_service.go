package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"voice_eval/internal/clients/xfyun"
	"voice_eval/internal/config"
	"voice_eval/internal/models"
)

// 评测计数事件
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventCancelled = "cancelled"
)

// EvaluationMetrics 评测计数
type EvaluationMetrics interface {
	IncrementEvaluation(ctx context.Context, event string) error
}

// EvaluationService 创建讯飞评测会话
type EvaluationService struct {
	config    config.ISEConfig
	client    *xfyun.Client
	clientErr error
	metrics   EvaluationMetrics
	logger    *zap.Logger
}

// NewEvaluationService 创建评测服务，凭证缺失时服务仍可创建，新建会话会返回配置错误
func NewEvaluationService(cfg config.ISEConfig, metrics EvaluationMetrics, logger *zap.Logger) *EvaluationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EvaluationService{config: cfg, metrics: metrics, logger: logger}
	s.client, s.clientErr = xfyun.NewClient(xfyun.Config{
		AppID:          cfg.AppID,
		APIKey:         cfg.APIKey,
		APISecret:      cfg.APISecret,
		ServerURL:      cfg.ServerURL,
		ConnectTimeout: cfg.ConnectTimeout,
		ResultTimeout:  cfg.ResultTimeout,
		SampleRate:     cfg.SampleRate,
	}, logger)
	if s.clientErr != nil {
		logger.Warn("讯飞评测服务未配置", zap.Error(s.clientErr))
	}
	return s
}

// Configured 凭证是否齐全
func (s *EvaluationService) Configured() bool {
	return s.client != nil
}

// Request 构造评测请求，未指定的语种和附加能力使用配置值
func (s *EvaluationService) Request(category, text, language string) (models.EvaluationRequest, error) {
	c, err := models.ParseCategory(category)
	if err != nil {
		return models.EvaluationRequest{}, err
	}
	if language == "" {
		language = s.config.Language
	}
	return models.EvaluationRequest{
		Category:      c,
		ReferenceText: text,
		Language:      language,
		ExtraAbility:  s.config.ExtraAbility,
	}.Normalize()
}

// NewSession 创建评测会话
func (s *EvaluationService) NewSession(req models.EvaluationRequest, opts ...xfyun.SessionOption) (*xfyun.Session, error) {
	if s.client == nil {
		return nil, s.clientErr
	}
	return s.client.NewSession(req, opts...)
}

// Evaluate 评测一段完整的PCM音频
func (s *EvaluationService) Evaluate(ctx context.Context, req models.EvaluationRequest, pcm io.Reader) (*models.EvaluationResult, error) {
	if s.client == nil {
		return nil, s.clientErr
	}

	s.Record(ctx, EventStarted)
	result, err := s.client.Evaluate(ctx, req, pcm)
	s.RecordOutcome(ctx, err)
	return result, err
}

// RecordOutcome 按会话结果计数
func (s *EvaluationService) RecordOutcome(ctx context.Context, err error) {
	switch {
	case err == nil:
		s.Record(ctx, EventCompleted)
	case errors.Is(err, xfyun.ErrCancelled):
		s.Record(ctx, EventCancelled)
	default:
		s.Record(ctx, EventFailed)
	}
}

// Record 记录评测事件，计数失败只记日志
func (s *EvaluationService) Record(ctx context.Context, event string) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.IncrementEvaluation(ctx, event); err != nil {
		s.logger.Warn("记录评测计数失败", zap.String("event", event), zap.Error(err))
	}
}

func marshalWords(result *models.EvaluationResult) (models.JSONText, error) {
	words := result.Words()
	if words == nil {
		words = []models.WordScore{}
	}
	data, err := json.Marshal(words)
	if err != nil {
		return nil, fmt.Errorf("序列化单词详情失败: %w", err)
	}
	return models.JSONText(data), nil
}
