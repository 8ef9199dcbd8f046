package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voice_eval/internal/audio"
	"voice_eval/internal/clients/xfyun"
	"voice_eval/internal/config"
	"voice_eval/internal/middleware"
	"voice_eval/internal/services"
	"voice_eval/internal/types"
)

// EvaluateHandler 浏览器评测通道，浏览器发送麦克风音频，服务端持有讯飞凭证和会话
type EvaluateHandler struct {
	evaluations *services.EvaluationService
	practices   *services.PracticeService
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewEvaluateHandler 创建评测通道处理器
func NewEvaluateHandler(evaluations *services.EvaluationService, practices *services.PracticeService, cfg config.WebSocketConfig, logger *zap.Logger) *EvaluateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluateHandler{
		evaluations: evaluations,
		practices:   practices,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// HandleWebSocket 处理评测通道连接
func (h *EvaluateHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("升级 WebSocket 连接失败", zap.Error(err))
		return
	}

	var userID string
	if claims, ok := middleware.Claims(c); ok {
		userID = claims.UserID
	}

	b := &bridge{
		handler: h,
		conn:    conn,
		userID:  userID,
		logger:  h.logger.With(zap.String("remote", c.ClientIP()), zap.String("user_id", userID)),
	}
	b.run(c.Request.Context())
}

// bridge 一条浏览器连接，同一时间只运行一个评测
type bridge struct {
	handler *EvaluateHandler
	conn    *websocket.Conn
	userID  string
	logger  *zap.Logger

	writeMu sync.Mutex
	wg      sync.WaitGroup

	mu         sync.Mutex
	session    *xfyun.Session
	sessionID  string
	sampleRate int
	startedAt  time.Time
	finishedAt time.Time
}

func (b *bridge) run(ctx context.Context) {
	defer func() {
		b.cancel()
		b.wg.Wait()
		b.conn.Close()
	}()

	for {
		messageType, message, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Info("读取 WebSocket 消息错误", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			b.handleAudio(message)
		case websocket.TextMessage:
			b.handleCommand(ctx, message)
		}
	}
}

func (b *bridge) handleCommand(ctx context.Context, message []byte) {
	var msg types.ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		b.sendError("request", "消息格式错误", 0)
		return
	}

	switch msg.Type {
	case types.ClientStart:
		b.start(ctx, msg)
	case types.ClientStop:
		b.stop()
	case types.ClientCancel:
		b.cancel()
	default:
		b.sendError("request", "不支持的命令: "+string(msg.Type), 0)
	}
}

func (b *bridge) start(ctx context.Context, msg types.ClientMessage) {
	if s := b.current(); s != nil && !s.State().Terminal() {
		b.sendError("request", "已有进行中的评测", 0)
		return
	}

	evals := b.handler.evaluations
	req, err := evals.Request(msg.Category, msg.Text, msg.Language)
	if err != nil {
		b.sendError("request", err.Error(), 0)
		return
	}

	session, err := evals.NewSession(req, xfyun.WithStateListener(b.onState))
	if err != nil {
		b.sendSessionError(err)
		return
	}

	sessionID := uuid.NewString()
	b.mu.Lock()
	b.session = session
	b.sessionID = sessionID
	b.sampleRate = msg.SampleRate
	b.startedAt = time.Now()
	b.finishedAt = time.Time{}
	b.mu.Unlock()

	evals.Record(ctx, services.EventStarted)
	if err := session.Start(ctx); err != nil {
		evals.RecordOutcome(context.Background(), err)
		b.sendSessionError(err)
		return
	}

	b.logger.Info("评测开始", zap.String("session_id", sessionID), zap.String("category", string(req.Category)))
	b.send(types.ReadyMessage(sessionID))

	b.wg.Add(1)
	go b.await(session)
}

func (b *bridge) stop() {
	s := b.current()
	if s == nil {
		b.sendError("request", "没有进行中的评测", 0)
		return
	}

	b.mu.Lock()
	b.finishedAt = time.Now()
	b.mu.Unlock()

	if err := s.Finish(); err != nil && !errors.Is(err, xfyun.ErrCancelled) {
		b.sendSessionError(err)
	}
}

func (b *bridge) cancel() {
	if s := b.current(); s != nil {
		s.Cancel()
	}
}

// handleAudio 浏览器音频重采样到16k后按40ms切帧提交
func (b *bridge) handleAudio(data []byte) {
	s := b.current()
	if s == nil {
		b.sendError("request", "请先发送start命令", 0)
		return
	}

	b.mu.Lock()
	rate := b.sampleRate
	b.mu.Unlock()

	samples := audio.Resample(audio.BytesToFloat32(data), rate, audio.SampleRate)
	for _, frame := range audio.Chunk(audio.Float32ToInt16(samples), audio.FrameSamples) {
		if err := s.SubmitAudio(frame); err != nil {
			if errors.Is(err, xfyun.ErrInvalidState) || errors.Is(err, xfyun.ErrCancelled) {
				return
			}
			b.sendSessionError(err)
			return
		}
	}
}

// await 等待会话结束，完成后自动保存练习记录
func (b *bridge) await(s *xfyun.Session) {
	defer b.wg.Done()

	result, err := s.Wait(context.Background())
	ctx := context.Background()
	evals := b.handler.evaluations
	evals.RecordOutcome(ctx, err)

	if err != nil {
		if !errors.Is(err, xfyun.ErrCancelled) {
			b.sendSessionError(err)
		}
		return
	}

	var practiceID string
	if b.userID != "" && b.handler.practices != nil {
		raw, _ := json.Marshal(result)
		p, err := b.handler.practices.SaveResult(ctx, b.userID, s.Request(), result, b.duration(), raw)
		if err != nil {
			b.logger.Warn("自动保存练习记录失败", zap.Error(err))
		} else {
			practiceID = p.ID
		}
	}
	b.send(types.ResultMessage(result, practiceID))
}

func (b *bridge) onState(change xfyun.StateChange) {
	status, ok := bridgeStatus[change.To]
	if !ok {
		return
	}
	b.send(types.ProgressMessage(status))
}

var bridgeStatus = map[xfyun.State]types.BridgeStatus{
	xfyun.StateConnecting:     types.BridgeConnecting,
	xfyun.StateStreaming:      types.BridgeRecording,
	xfyun.StateAwaitingResult: types.BridgeEvaluating,
	xfyun.StateCompleted:      types.BridgeCompleted,
	xfyun.StateFailed:         types.BridgeFailed,
	xfyun.StateCancelled:      types.BridgeCancelled,
}

func (b *bridge) current() *xfyun.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

func (b *bridge) duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := b.finishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(b.startedAt)
}

func (b *bridge) sendSessionError(err error) {
	var e *xfyun.Error
	if errors.As(err, &e) {
		b.sendError(e.Kind.String(), e.Message, e.Code)
		return
	}
	b.sendError("request", err.Error(), 0)
}

func (b *bridge) sendError(kind, message string, code int) {
	b.send(types.ErrorMessage(kind, message, code))
}

func (b *bridge) send(msg types.ServerMessage) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteJSON(msg); err != nil {
		b.logger.Debug("发送消息失败", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}
