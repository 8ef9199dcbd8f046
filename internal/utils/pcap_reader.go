// Package utils 提供离线抓包分析工具，用于排查评测连接问题
package utils

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"voice_eval/internal/clients/xfyun"
)

// PCAPReader 用于读取和解析PCAP文件
type PCAPReader struct {
	filename string
}

// NewPCAPReader 创建新的PCAP读取器
func NewPCAPReader(filename string) (*PCAPReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("打开PCAP文件失败: %w", err)
	}
	f.Close()
	return &PCAPReader{filename: filename}, nil
}

// Segment 一个TCP负载
type Segment struct {
	Timestamp time.Time
	SrcPort   uint16
	DstPort   uint16
	Payload   []byte
}

// Segments 按顺序读取所有非空TCP负载
func (r *PCAPReader) Segments() ([]Segment, error) {
	f, err := os.Open(r.filename)
	if err != nil {
		return nil, fmt.Errorf("打开PCAP文件失败: %w", err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("读取PCAP文件头失败: %w", err)
	}

	var segments []Segment
	packetSource := gopacket.NewPacketSource(reader, reader.LinkType())
	for packet := range packetSource.Packets() {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, ok := tcpLayer.(*layers.TCP)
		if !ok || len(tcp.Payload) == 0 {
			continue
		}
		segments = append(segments, Segment{
			Timestamp: packet.Metadata().Timestamp,
			SrcPort:   uint16(tcp.SrcPort),
			DstPort:   uint16(tcp.DstPort),
			Payload:   tcp.Payload,
		})
	}
	return segments, nil
}

// ExtractWebSocketHandshake 提取WebSocket握手信息，没有握手时返回nil
func (r *PCAPReader) ExtractWebSocketHandshake() (*WebSocketHandshake, error) {
	segments, err := r.Segments()
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		if !isHandshake(seg.Payload) {
			continue
		}
		if handshake, err := parseWebSocketHandshake(string(seg.Payload)); err == nil {
			return handshake, nil
		}
	}
	return nil, nil
}

// ReadWebSocketFrames 读取WebSocket数据帧
func (r *PCAPReader) ReadWebSocketFrames() ([]Frame, error) {
	segments, err := r.Segments()
	if err != nil {
		return nil, err
	}
	var frames []Frame
	for _, seg := range segments {
		if isHandshake(seg.Payload) || bytes.HasPrefix(seg.Payload, []byte("HTTP/1.1")) {
			continue
		}
		frames = append(frames, ScanWebSocketFrames(seg.Payload)...)
	}
	return frames, nil
}

// Inspect 分析一次评测会话的抓包
func (r *PCAPReader) Inspect() (*CaptureReport, error) {
	handshake, err := r.ExtractWebSocketHandshake()
	if err != nil {
		return nil, err
	}
	frames, err := r.ReadWebSocketFrames()
	if err != nil {
		return nil, err
	}

	report := &CaptureReport{Handshake: handshake}
	if handshake != nil {
		auth, err := ParseISEAuth(handshake)
		if err != nil {
			report.AuthError = err.Error()
		} else {
			report.Auth = auth
		}
	}
	for _, f := range frames {
		report.Frames = append(report.Frames, SummarizeFrame(f))
	}
	return report, nil
}

// CaptureReport 抓包分析结果
type CaptureReport struct {
	Handshake *WebSocketHandshake
	Auth      *ISEAuth
	AuthError string
	Frames    []FrameSummary
}

// Frame 一个WebSocket数据帧，客户端发出的帧带掩码
type Frame struct {
	Outbound bool
	Opcode   byte
	Payload  []byte
}

// ScanWebSocketFrames 在TCP负载中查找文本和二进制帧
func ScanWebSocketFrames(data []byte) []Frame {
	var frames []Frame
	for i := 0; i < len(data)-2; i++ {
		// FIN=1，RSV1-3=0，opcode为文本或二进制
		if data[i]&0x80 == 0 || data[i]&0x70 != 0 {
			continue
		}
		opcode := data[i] & 0x0F
		if opcode != 0x1 && opcode != 0x2 {
			continue
		}

		payloadLen := int(data[i+1] & 0x7F)
		headerLen := 2
		switch payloadLen {
		case 126:
			if len(data) < i+4 {
				continue
			}
			payloadLen = int(data[i+2])<<8 | int(data[i+3])
			headerLen += 2
		case 127:
			if len(data) < i+10 {
				continue
			}
			payloadLen = 0
			for j := 0; j < 8; j++ {
				payloadLen = payloadLen<<8 | int(data[i+2+j])
			}
			headerLen += 8
		}
		if payloadLen <= 0 || payloadLen > 1<<20 {
			continue
		}

		masked := data[i+1]&0x80 != 0
		if masked {
			headerLen += 4
		}
		if len(data) < i+headerLen+payloadLen {
			continue
		}

		payload := make([]byte, payloadLen)
		copy(payload, data[i+headerLen:i+headerLen+payloadLen])
		if masked {
			maskKey := data[i+headerLen-4 : i+headerLen]
			for j := range payload {
				payload[j] ^= maskKey[j%4]
			}
		}

		if opcode == 0x1 && !utf8.Valid(payload) {
			continue
		}

		frames = append(frames, Frame{Outbound: masked, Opcode: opcode, Payload: payload})
		i += headerLen + payloadLen - 1
	}
	return frames
}

// WebSocketHandshake WebSocket握手信息
type WebSocketHandshake struct {
	Path     string
	Headers  map[string]string
	Protocol string
	Key      string
	Version  string
}

func isHandshake(payload []byte) bool {
	s := string(payload)
	return strings.HasPrefix(s, "GET ") &&
		strings.Contains(s, "HTTP/1.1") &&
		strings.Contains(strings.ToLower(s), "upgrade: websocket")
}

// parseWebSocketHandshake 解析WebSocket握手信息
func parseWebSocketHandshake(data string) (*WebSocketHandshake, error) {
	lines := strings.Split(data, "\r\n")

	// 解析请求行
	requestLine := strings.Split(lines[0], " ")
	if len(requestLine) != 3 || requestLine[0] != "GET" {
		return nil, fmt.Errorf("无效的HTTP请求行")
	}

	handshake := &WebSocketHandshake{
		Path:    requestLine[1],
		Headers: make(map[string]string),
	}

	// 解析请求头
	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) != 2 {
			continue
		}
		key := http.CanonicalHeaderKey(parts[0])
		value := parts[1]
		handshake.Headers[key] = value

		switch key {
		case "Sec-Websocket-Protocol":
			handshake.Protocol = value
		case "Sec-Websocket-Key":
			handshake.Key = value
		case "Sec-Websocket-Version":
			handshake.Version = value
		}
	}

	return handshake, nil
}

// ISEAuth 连接URL中的鉴权参数
type ISEAuth struct {
	Path      string
	Host      string
	Date      string
	Time      time.Time
	APIKey    string
	Algorithm string
	Headers   string
	Signature string
}

var credentialField = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseISEAuth 从握手请求中解析鉴权参数
func ParseISEAuth(h *WebSocketHandshake) (*ISEAuth, error) {
	u, err := url.Parse(h.Path)
	if err != nil {
		return nil, fmt.Errorf("解析请求路径失败: %w", err)
	}
	q := u.Query()

	a := &ISEAuth{Path: u.Path, Host: q.Get("host"), Date: q.Get("date")}
	if a.Host == "" || a.Date == "" || q.Get("authorization") == "" {
		return nil, fmt.Errorf("缺少鉴权参数")
	}

	a.Time, err = http.ParseTime(a.Date)
	if err != nil {
		return nil, fmt.Errorf("date格式错误: %w", err)
	}

	if err := a.parseCredential(q.Get("authorization")); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *ISEAuth) parseCredential(token string) error {
	credential, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return fmt.Errorf("authorization不是base64: %w", err)
	}
	for _, m := range credentialField.FindAllStringSubmatch(string(credential), -1) {
		switch m[1] {
		case "api_key":
			a.APIKey = m[2]
		case "algorithm":
			a.Algorithm = m[2]
		case "headers":
			a.Headers = m[2]
		case "signature":
			a.Signature = m[2]
		}
	}
	if a.APIKey == "" || a.Signature == "" {
		return fmt.Errorf("authorization缺少api_key或signature")
	}
	return nil
}

// Verify 用APISecret重新签名并比较
func (a *ISEAuth) Verify(apiSecret string) (bool, error) {
	signed, err := xfyun.NewSigner(a.APIKey, apiSecret).Sign(xfyun.SignParams{
		Host: a.Host,
		Path: a.Path,
		Date: a.Time,
	})
	if err != nil {
		return false, err
	}
	var expected ISEAuth
	if err := expected.parseCredential(signed.Token); err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected.Signature), []byte(a.Signature)), nil
}

// FrameSummary 评测帧摘要
type FrameSummary struct {
	Outbound     bool
	Cmd          string
	Aus          int
	Status       int
	Category     string
	Text         string
	AudioBytes   int
	Code         int
	Message      string
	SID          string
	ResultStatus int
	TotalScore   *float64
	Err          string
}

type capturedFrame struct {
	Business *struct {
		Cmd      string `json:"cmd"`
		Aus      int    `json:"aus"`
		Category string `json:"category"`
		Text     string `json:"text"`
	} `json:"business"`
	Data *struct {
		Status int    `json:"status"`
		Data   string `json:"data"`
	} `json:"data"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	SID     string `json:"sid"`
}

// SummarizeFrame 解析抓到的评测JSON帧
func SummarizeFrame(f Frame) FrameSummary {
	s := FrameSummary{Outbound: f.Outbound}

	var cf capturedFrame
	if err := json.Unmarshal(f.Payload, &cf); err != nil {
		s.Err = fmt.Sprintf("非JSON帧: %v", err)
		return s
	}

	if f.Outbound {
		if cf.Business != nil {
			s.Cmd = cf.Business.Cmd
			s.Aus = cf.Business.Aus
			s.Category = cf.Business.Category
			s.Text = cf.Business.Text
		}
		if cf.Data != nil {
			s.Status = cf.Data.Status
			if raw, err := base64.StdEncoding.DecodeString(cf.Data.Data); err == nil {
				s.AudioBytes = len(raw)
			}
		}
		return s
	}

	s.Code = cf.Code
	s.Message = cf.Message
	s.SID = cf.SID
	if cf.Data == nil {
		return s
	}
	s.ResultStatus = cf.Data.Status
	if cf.Data.Status == xfyun.ResultFinal && cf.Data.Data != "" {
		result, err := xfyun.DecodeResult(cf.Data.Data)
		if err != nil {
			s.Err = err.Error()
			return s
		}
		score := result.TotalScore
		s.TotalScore = &score
	}
	return s
}
