package xfyun

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voice_eval/internal/audio"
	"voice_eval/internal/models"
)

// Progress 中间结果通知
type Progress struct {
	Status int
	SID    string
}

// Outcome 会话终止结果，Result 和 Err 只有一个非空
type Outcome struct {
	Result *models.EvaluationResult
	Err    error
	SID    string
}

// SessionOption 会话选项
type SessionOption func(*Session)

// WithProgress 设置中间结果回调，在读取协程中调用
func WithProgress(fn func(Progress)) SessionOption {
	return func(s *Session) {
		s.onProgress = fn
	}
}

// WithStateListener 设置状态变化回调
func WithStateListener(fn func(StateChange)) SessionOption {
	return func(s *Session) {
		s.onState = fn
	}
}

// Session 一次评测会话，独占一条连接。
// Completed 和 Failed 各自只通知一次，Cancelled 不通知。
type Session struct {
	client *Client
	req    models.EvaluationRequest
	logger *zap.Logger

	mu      sync.Mutex // 保护 state/conn/sid/timer/outcome
	state   State
	conn    *websocket.Conn
	sid     string
	timer   *time.Timer
	outcome *Outcome

	sendMu  sync.Mutex // 音频帧按提交顺序发送
	writeMu sync.Mutex // 连接写入
	sent    int        // 已发送的音频帧数，受 sendMu 保护

	onProgress func(Progress)
	onState    func(StateChange)

	done   chan Outcome
	closed chan struct{}
}

// Request 会话的评测参数
func (s *Session) Request() models.EvaluationRequest {
	return s.req
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SID 服务端会话ID，收到第一条响应前为空
func (s *Session) SID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

// Done 在 Completed 或 Failed 时收到唯一一次结果
func (s *Session) Done() <-chan Outcome {
	return s.done
}

// Closed 进入任一终止状态后关闭
func (s *Session) Closed() <-chan struct{} {
	return s.closed
}

// Start 签名并建立连接，发送评测参数后进入 Streaming
func (s *Session) Start(ctx context.Context) error {
	if err := s.transition(StateIdle, StateConnecting); err != nil {
		return err
	}

	cfg := s.client.config
	authURL, err := s.client.signer.BuildURL(cfg.ServerURL, s.client.now())
	if err != nil {
		s.fail(err)
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, resp, err := s.client.dialer.DialContext(dialCtx, authURL, nil)
	if err != nil {
		e := dialError(err, resp)
		s.logger.Warn("连接讯飞评测服务失败", zap.Error(e))
		s.fail(e)
		return e
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		conn.Close()
		return ErrCancelled
	}
	s.conn = conn
	s.mu.Unlock()

	params := newParamsFrame(cfg.AppID, cfg.SampleRate, s.req)
	if err := s.write(params); err != nil {
		return s.writeFailed("发送评测参数失败", err)
	}

	if err := s.transition(StateConnecting, StateStreaming); err != nil {
		if s.State() == StateCancelled {
			return ErrCancelled
		}
		return err
	}
	go s.readLoop(conn)

	s.logger.Info("评测会话已建立")
	return nil
}

// SubmitAudio 发送一帧16bit PCM，第一帧标记为 first，之后为 middle
func (s *Session) SubmitAudio(samples []int16) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if err := s.require(StateStreaming); err != nil {
		return err
	}

	aus := AudioMiddle
	if s.sent == 0 {
		aus = AudioFirst
	}
	if err := s.write(newAudioFrame(aus, audio.Int16ToBytes(samples))); err != nil {
		return s.writeFailed("发送音频失败", err)
	}
	s.sent++
	return nil
}

// SubmitFloat32 转换[-1,1]浮点采样后发送
func (s *Session) SubmitFloat32(samples []float32) error {
	return s.SubmitAudio(audio.Float32ToInt16(samples))
}

// Finish 发送最后一帧并开始等待最终结果。
// 没有提交过音频时先补发一个空的 first 帧。
func (s *Session) Finish() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if err := s.require(StateStreaming); err != nil {
		return err
	}

	if s.sent == 0 {
		if err := s.write(newAudioFrame(AudioFirst, nil)); err != nil {
			return s.writeFailed("发送音频失败", err)
		}
		s.sent++
	}

	if err := s.transition(StateStreaming, StateAwaitingResult); err != nil {
		// 最终结果可能已经先到达
		return err
	}
	if err := s.write(newAudioFrame(AudioLast, nil)); err != nil {
		return s.writeFailed("发送结束帧失败", err)
	}
	s.sent++

	s.mu.Lock()
	if s.state == StateAwaitingResult {
		s.timer = time.AfterFunc(s.client.config.ResultTimeout, s.resultTimeout)
	}
	s.mu.Unlock()

	s.logger.Debug("已发送结束帧", zap.Int("frames", s.sent))
	return nil
}

// Cancel 关闭连接并丢弃未发送的音频，不产生通知。可重复调用。
func (s *Session) Cancel() {
	if s.terminate(StateCancelled, Outcome{}) {
		s.logger.Info("评测已取消")
	}
}

// Wait 等待会话结束
func (s *Session) Wait(ctx context.Context) (*models.EvaluationResult, error) {
	select {
	case <-s.closed:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	out := s.outcome
	s.mu.Unlock()
	if out == nil {
		return nil, ErrCancelled
	}
	return out.Result, out.Err
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.logger.Debug("readLoop退出")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.State().Terminal() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("读取评测结果失败", zap.Error(err))
			}
			s.fail(newError(KindTransport, "评测连接中断", err))
			return
		}

		var resp Response
		if err := json.Unmarshal(message, &resp); err != nil {
			s.fail(newError(KindProtocol, "解析评测响应失败", err))
			return
		}
		if resp.SID != "" {
			s.mu.Lock()
			s.sid = resp.SID
			s.mu.Unlock()
		}

		if resp.Code != 0 {
			s.logger.Warn("讯飞返回错误",
				zap.Int("code", resp.Code),
				zap.String("message", resp.Message),
				zap.String("sid", resp.SID))
			s.fail(&Error{Kind: KindProtocol, Code: resp.Code, Message: resp.Message, SID: resp.SID})
			return
		}
		if resp.Data == nil {
			continue
		}

		if resp.Data.Status != ResultFinal {
			if s.onProgress != nil {
				s.onProgress(Progress{Status: resp.Data.Status, SID: resp.SID})
			}
			continue
		}

		result, err := DecodeResult(resp.Data.Data)
		if err != nil {
			if e, ok := err.(*Error); ok {
				e.SID = resp.SID
			}
			s.logger.Warn("评测结果解析失败", zap.Error(err), zap.String("sid", resp.SID))
			s.fail(err)
			return
		}
		Aggregate(result)
		s.complete(result)
		return
	}
}

func (s *Session) resultTimeout() {
	if s.fail(newError(KindTimeout, "等待评测结果超时", nil)) {
		s.logger.Warn("等待评测结果超时", zap.Duration("timeout", s.client.config.ResultTimeout))
	}
}

func (s *Session) write(v interface{}) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrInvalidState
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// writeFailed 写入失败时会话进入 Failed；已取消的会话只返回错误
func (s *Session) writeFailed(message string, err error) error {
	e := newError(KindTransport, message, err)
	if !s.fail(e) && s.State() == StateCancelled {
		return ErrCancelled
	}
	return e
}

func (s *Session) require(want State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != want {
		return fmt.Errorf("%w: 当前状态 %s", ErrInvalidState, s.state)
	}
	return nil
}

func (s *Session) transition(from, to State) error {
	s.mu.Lock()
	if s.state != from || !transitionValid(from, to) {
		cur := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: 当前状态 %s", ErrInvalidState, cur)
	}
	s.state = to
	s.mu.Unlock()

	s.notifyState(from, to)
	return nil
}

func (s *Session) complete(result *models.EvaluationResult) bool {
	ok := s.terminate(StateCompleted, Outcome{Result: result})
	if ok {
		s.logger.Info("评测完成", zap.Float64("total_score", result.TotalScore), zap.String("sid", s.SID()))
	}
	return ok
}

func (s *Session) fail(err error) bool {
	return s.terminate(StateFailed, Outcome{Err: err})
}

// terminate 进入终止状态，只有第一次调用生效
func (s *Session) terminate(to State, out Outcome) bool {
	s.mu.Lock()
	from := s.state
	if from.Terminal() || !transitionValid(from, to) {
		s.mu.Unlock()
		return false
	}
	s.state = to
	if s.timer != nil {
		s.timer.Stop()
	}
	conn := s.conn
	out.SID = s.sid
	if to != StateCancelled {
		s.outcome = &out
	}
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	// 先通知状态变化，再投递结果
	s.notifyState(from, to)
	if to != StateCancelled {
		s.done <- out
	}
	close(s.closed)
	return true
}

func (s *Session) notifyState(from, to State) {
	if s.onState != nil {
		s.onState(StateChange{From: from, To: to})
	}
}
