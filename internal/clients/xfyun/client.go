// Package xfyun 实现科大讯飞语音评测(ISE)流式接口客户端
package xfyun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voice_eval/internal/audio"
	"voice_eval/internal/models"
)

const (
	DefaultServerURL      = "wss://ise-api.xfyun.cn/v2/open-ise"
	DefaultConnectTimeout = 10 * time.Second
	DefaultResultTimeout  = 30 * time.Second
)

// Config 讯飞评测客户端配置
type Config struct {
	AppID          string
	APIKey         string
	APISecret      string
	ServerURL      string
	ConnectTimeout time.Duration // 建立连接超时
	ResultTimeout  time.Duration // 发送最后一帧后等待最终结果的超时
	SampleRate     int
}

// Client 创建评测会话，本身不持有连接
type Client struct {
	config Config
	signer *Signer
	dialer *websocket.Dialer
	logger *zap.Logger
	now    func() time.Time
}

// NewClient 创建客户端，凭证缺失时返回配置错误
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.AppID == "" {
		return nil, newError(KindConfiguration, "AppID未配置", nil)
	}
	if config.APIKey == "" || config.APISecret == "" {
		return nil, newError(KindConfiguration, "APIKey或APISecret未配置", nil)
	}
	if config.ServerURL == "" {
		config.ServerURL = DefaultServerURL
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.ResultTimeout <= 0 {
		config.ResultTimeout = DefaultResultTimeout
	}
	if config.SampleRate <= 0 {
		config.SampleRate = audio.SampleRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config: config,
		signer: NewSigner(config.APIKey, config.APISecret),
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.ConnectTimeout,
		},
		logger: logger,
		now:    time.Now,
	}, nil
}

// Config 返回生效的配置
func (c *Client) Config() Config {
	return c.config
}

// NewSession 创建一个评测会话
func (c *Client) NewSession(req models.EvaluationRequest, opts ...SessionOption) (*Session, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	s := &Session{
		client: c,
		req:    req,
		logger: c.logger.With(zap.String("category", string(req.Category))),
		state:  StateIdle,
		done:   make(chan Outcome, 1),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Evaluate 一次性评测一段16k/16bit/单声道PCM，按40ms分帧发送
func (c *Client) Evaluate(ctx context.Context, req models.EvaluationRequest, pcm io.Reader, opts ...SessionOption) (*models.EvaluationResult, error) {
	s, err := c.NewSession(req, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	buf := make([]byte, audio.FrameBytes)
	for {
		if ctx.Err() != nil {
			s.Cancel()
			return nil, ctx.Err()
		}
		n, err := io.ReadFull(pcm, buf)
		if n > 0 {
			if err := s.SubmitAudio(audio.BytesToInt16(buf[:n])); err != nil {
				return s.Wait(ctx)
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			s.Cancel()
			return nil, fmt.Errorf("读取音频失败: %w", err)
		}
	}

	if err := s.Finish(); err != nil {
		c.logger.Debug("结束音频发送失败", zap.Error(err))
	}
	result, err := s.Wait(ctx)
	if ctx.Err() != nil {
		s.Cancel()
	}
	return result, err
}

// dialError 区分鉴权失败和网络错误
func dialError(err error, resp *http.Response) error {
	if resp != nil {
		body := readResp(resp)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return &Error{
				Kind:    KindAuthentication,
				Code:    resp.StatusCode,
				Message: fmt.Sprintf("鉴权失败: %s", body),
				Err:     err,
			}
		}
		return &Error{
			Kind:    KindTransport,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("握手失败: %s", body),
			Err:     err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout") {
		return newError(KindTransport, "连接超时", err)
	}
	return newError(KindTransport, "连接讯飞评测服务失败", err)
}

// readResp 读取握手失败时的响应内容
func readResp(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
