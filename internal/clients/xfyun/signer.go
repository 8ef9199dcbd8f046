package xfyun

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SignParams 签名输入
type SignParams struct {
	Host   string
	Path   string
	Method string // 默认 GET
	Date   time.Time
}

// Authorization 签名结果，三个字段都需要放入连接URL
type Authorization struct {
	Token string // base64编码的authorization
	Date  string // RFC1123 GMT 格式，与签名时使用的一致
	Host  string
}

// Query 编码为URL查询参数
func (a Authorization) Query() string {
	v := url.Values{}
	v.Set("authorization", a.Token)
	v.Set("date", a.Date)
	v.Set("host", a.Host)
	return v.Encode()
}

// Signer 讯飞 hmac-sha256 鉴权签名
type Signer struct {
	APIKey    string
	APISecret string
}

// NewSigner 创建签名器
func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{APIKey: apiKey, APISecret: apiSecret}
}

// FormatDate 按 RFC1123 输出GMT时间
func FormatDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// Sign 计算鉴权参数
func (s *Signer) Sign(p SignParams) (Authorization, error) {
	if s.APIKey == "" || s.APISecret == "" {
		return Authorization{}, newError(KindConfiguration, "APIKey或APISecret未配置", nil)
	}
	if p.Host == "" {
		return Authorization{}, newError(KindConfiguration, "服务地址缺少host", nil)
	}

	method := p.Method
	if method == "" {
		method = http.MethodGet
	}
	path := p.Path
	if path == "" {
		path = "/"
	}
	date := FormatDate(p.Date)

	signString := strings.Join([]string{
		"host: " + p.Host,
		"date: " + date,
		fmt.Sprintf("%s %s HTTP/1.1", method, path),
	}, "\n")

	mac := hmac.New(sha256.New, []byte(s.APISecret))
	mac.Write([]byte(signString))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	credential := fmt.Sprintf(
		"api_key=\"%s\", algorithm=\"hmac-sha256\", headers=\"host date request-line\", signature=\"%s\"",
		s.APIKey, signature)

	return Authorization{
		Token: base64.StdEncoding.EncodeToString([]byte(credential)),
		Date:  date,
		Host:  p.Host,
	}, nil
}

// BuildURL 生成带鉴权参数的连接地址
func (s *Signer) BuildURL(serverURL string, now time.Time) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", newError(KindConfiguration, "解析服务地址失败", err)
	}

	auth, err := s.Sign(SignParams{
		Host:   u.Host,
		Path:   u.Path,
		Method: http.MethodGet,
		Date:   now,
	})
	if err != nil {
		return "", err
	}

	if u.RawQuery != "" {
		return serverURL + "&" + auth.Query(), nil
	}
	return serverURL + "?" + auth.Query(), nil
}
