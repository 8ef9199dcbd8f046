package handlers

import (
	"context"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice_eval/internal/config"
	"voice_eval/internal/models"
	"voice_eval/internal/types"
)

func dialBridge(t *testing.T, env *testEnv, cookie *http.Cookie) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.String())
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/evaluate"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil 读取消息直到出现指定类型
func readUntil(t *testing.T, conn *websocket.Conn, want types.ServerMessageType) (types.ServerMessage, []types.ServerMessage) {
	t.Helper()
	var seen []types.ServerMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg types.ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		seen = append(seen, msg)
		if msg.Type == want {
			return msg, seen
		}
	}
}

func float32Frame(n int) []byte {
	buf := make([]byte, n*4)
	for i := 0; i < n; i++ {
		v := float32(math.Sin(float64(i) / 10))
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func TestEvaluateBridgeSavesPractice(t *testing.T) {
	env := newTestEnv(t, iseConfig(newFakeISE(t, 0)))
	user, cookie := env.register(t, "alice@example.com")
	conn := dialBridge(t, env, cookie)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStart, Category: "sentence", Text: "hello world"}))
	ready, seen := readUntil(t, conn, types.ServerReady)
	assert.NotEmpty(t, ready.SessionID)
	assert.Contains(t, seen, types.ProgressMessage(types.BridgeConnecting))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, float32Frame(640)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, float32Frame(640)))
	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStop}))

	result, seen := readUntil(t, conn, types.ServerResult)
	assert.Contains(t, seen, types.ProgressMessage(types.BridgeCompleted))
	require.NotNil(t, result.Result)
	assert.Equal(t, 85.5, result.Result.TotalScore)
	require.NotNil(t, result.Level)
	assert.Equal(t, "good", result.Level.Level)
	assert.NotEmpty(t, result.PracticeID)

	list, total, err := env.practices.List(context.Background(), user.ID, models.PracticeFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, result.PracticeID, list[0].ID)
	assert.Equal(t, models.PracticeSentence, list[0].Type)
	assert.Equal(t, "hello world", list[0].Content)
	assert.Equal(t, 85.5, list[0].TotalScore)
	assert.Contains(t, string(list[0].RawResult), `"totalScore":85.5`)
}

func TestEvaluateBridgeResamplesAndFrames(t *testing.T) {
	var (
		mu    sync.Mutex
		marks []int
		sizes []int
	)
	ise := newRecordingISE(t, 0, func(aus int, pcm []byte) {
		mu.Lock()
		defer mu.Unlock()
		marks = append(marks, aus)
		sizes = append(sizes, len(pcm))
	})
	env := newTestEnv(t, iseConfig(ise))
	conn := dialBridge(t, env, nil)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStart, Category: "sentence", Text: "hello world", SampleRate: 48000}))
	readUntil(t, conn, types.ServerReady)

	// 100ms@48k -> 1600个16k采样 -> 640+640+320
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, float32Frame(4800)))
	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStop}))
	readUntil(t, conn, types.ServerResult)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 2, 4}, marks)
	assert.Equal(t, []int{1280, 1280, 640, 0}, sizes)
}

func TestEvaluateBridgeAnonymous(t *testing.T) {
	env := newTestEnv(t, iseConfig(newFakeISE(t, 0)))
	conn := dialBridge(t, env, nil)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStart, Category: "read_sentence", Text: "hello world"}))
	readUntil(t, conn, types.ServerReady)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStart, Category: "sentence", Text: "again"}))
	busy, _ := readUntil(t, conn, types.ServerError)
	assert.Equal(t, "已有进行中的评测", busy.Message)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStop}))
	result, _ := readUntil(t, conn, types.ServerResult)
	assert.Empty(t, result.PracticeID)
}

func TestEvaluateBridgeServiceError(t *testing.T) {
	env := newTestEnv(t, iseConfig(newFakeISE(t, 10163)))
	conn := dialBridge(t, env, nil)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStart, Category: "word", Text: "apple"}))
	readUntil(t, conn, types.ServerReady)
	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStop}))

	msg, _ := readUntil(t, conn, types.ServerError)
	assert.Equal(t, "protocol", msg.Kind)
	assert.Equal(t, 10163, msg.Code)
}

func TestEvaluateBridgeCancel(t *testing.T) {
	env := newTestEnv(t, iseConfig(newFakeISE(t, 0)))
	conn := dialBridge(t, env, nil)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStart, Category: "word", Text: "apple"}))
	readUntil(t, conn, types.ServerReady)
	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientCancel}))

	msg, _ := readUntil(t, conn, types.ServerProgress)
	for msg.Status != types.BridgeCancelled {
		msg, _ = readUntil(t, conn, types.ServerProgress)
	}
	assert.Equal(t, types.BridgeCancelled, msg.Status)
}

func TestEvaluateBridgeRequestErrors(t *testing.T) {
	env := newTestEnv(t, config.ISEConfig{})
	conn := dialBridge(t, env, nil)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, float32Frame(10)))
	msg, _ := readUntil(t, conn, types.ServerError)
	assert.Equal(t, "request", msg.Kind)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg, _ = readUntil(t, conn, types.ServerError)
	assert.Equal(t, "消息格式错误", msg.Message)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStart, Category: "poem", Text: "x"}))
	msg, _ = readUntil(t, conn, types.ServerError)
	assert.Equal(t, "request", msg.Kind)

	require.NoError(t, conn.WriteJSON(types.ClientMessage{Type: types.ClientStart, Category: "word", Text: "apple"}))
	msg, _ = readUntil(t, conn, types.ServerError)
	assert.Equal(t, "configuration", msg.Kind)
}
