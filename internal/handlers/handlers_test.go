package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"voice_eval/internal/auth"
	"voice_eval/internal/config"
	"voice_eval/internal/middleware"
	"voice_eval/internal/models"
	"voice_eval/internal/services"
	"voice_eval/internal/store"
)

const cookieName = "auth-token"

type testEnv struct {
	router    *gin.Engine
	config    *config.Config
	tokens    *auth.TokenManager
	users     *services.UserService
	practices *services.PracticeService
}

func newTestEnv(t *testing.T, ise config.ISEConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:  config.EnvDevelopment,
		ISE:  ise,
		Auth: config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour, CookieName: cookieName},
	}
	mem := store.NewMemoryStore()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	users := services.NewUserService(mem, tokens, nil)
	practices := services.NewPracticeService(mem.Practices(), nil, nil)
	evaluations := services.NewEvaluationService(ise, nil, nil)

	authHandler := NewAuthHandler(users, tokens, cfg.Auth)
	practiceHandler := NewPracticeHandler(practices)
	debugHandler := NewDebugHandler(users, cfg, false)
	evaluateHandler := NewEvaluateHandler(evaluations, practices, cfg.WebSocket, nil)

	r := gin.New()
	r.GET("/health", Health)
	r.POST("/api/auth/register", authHandler.Register)
	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/auth/logout", authHandler.Logout)
	r.GET("/api/auth/me", middleware.OptionalAuth(tokens, cookieName), authHandler.Me)

	practice := r.Group("/api/practice", middleware.Auth(tokens, cookieName))
	practice.POST("", practiceHandler.Create)
	practice.GET("", practiceHandler.List)
	practice.GET("/stats", practiceHandler.Stats)

	r.GET("/api/debug/users", debugHandler.Users)
	r.GET("/api/test-env", debugHandler.TestEnv)
	r.GET("/ws/evaluate", middleware.OptionalAuth(tokens, cookieName), evaluateHandler.HandleWebSocket)

	return &testEnv{router: r, config: cfg, tokens: tokens, users: users, practices: practices}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// register 注册用户并返回登录cookie
func (e *testEnv) register(t *testing.T, email string) (*models.User, *http.Cookie) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", gin.H{"email": email, "password": "secret1", "name": "Tester"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp.User, authCookie(t, w)
}

func authCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatalf("响应中没有 %s cookie", cookieName)
	return nil
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const bridgeXML = `<xml_result><read_sentence lan="en"><rec_paper>` +
	`<read_sentence total_score="85.5" accuracy_score="80" fluency_score="90" standard_score="88">` +
	`<sentence content="hello world" total_score="85.5">` +
	`<word content="hello" total_score="90" dp_message="0"/>` +
	`<word content="world" total_score="81" dp_message="16"/>` +
	`</sentence></read_sentence></rec_paper></read_sentence></xml_result>`

// newFakeISE 模拟讯飞评测服务，收到最后一帧后返回最终结果
func newFakeISE(t *testing.T, code int) string {
	t.Helper()
	return newRecordingISE(t, code, nil)
}

// newRecordingISE 模拟评测服务，onAudio 收到每个音频帧的 aus 和解码后的PCM
func newRecordingISE(t *testing.T, code int, onAudio func(aus int, pcm []byte)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame struct {
				Business struct {
					Cmd string `json:"cmd"`
					Aus int    `json:"aus"`
				} `json:"business"`
				Data struct {
					Data string `json:"data"`
				} `json:"data"`
			}
			if err := json.Unmarshal(msg, &frame); err != nil {
				return
			}
			if onAudio != nil && frame.Business.Cmd == "auw" {
				pcm, _ := base64.StdEncoding.DecodeString(frame.Data.Data)
				onAudio(frame.Business.Aus, pcm)
			}
			if frame.Business.Aus != 4 {
				continue
			}
			if code != 0 {
				_ = conn.WriteJSON(gin.H{"code": code, "message": "invalid audio", "sid": "ise-test"})
				continue
			}
			_ = conn.WriteJSON(gin.H{
				"code": 0,
				"sid":  "ise-test",
				"data": gin.H{"status": 2, "data": base64.StdEncoding.EncodeToString([]byte(bridgeXML))},
			})
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v2/open-ise"
}

func iseConfig(serverURL string) config.ISEConfig {
	return config.ISEConfig{
		AppID:          "app12345",
		APIKey:         "key67890",
		APISecret:      "secret",
		ServerURL:      serverURL,
		ConnectTimeout: 2 * time.Second,
		ResultTimeout:  2 * time.Second,
		Language:       models.LanguageEnglish,
		ExtraAbility:   models.DefaultExtraAbility,
		SampleRate:     16000,
	}
}
