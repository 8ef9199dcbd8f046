package utils

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice_eval/internal/clients/xfyun"
)

// wsFrame 构造WebSocket文本帧，客户端帧带掩码
func wsFrame(payload []byte, masked bool) []byte {
	frame := []byte{0x81}
	maskBit := byte(0)
	if masked {
		maskBit = 0x80
	}
	switch n := len(payload); {
	case n < 126:
		frame = append(frame, maskBit|byte(n))
	default:
		frame = append(frame, maskBit|126, byte(n>>8), byte(n))
	}
	if !masked {
		return append(frame, payload...)
	}
	key := []byte{0x11, 0x22, 0x33, 0x44}
	frame = append(frame, key...)
	for i, b := range payload {
		frame = append(frame, b^key[i%4])
	}
	return frame
}

type captureWriter struct {
	t   *testing.T
	w   *pcapgo.Writer
	ts  time.Time
	seq uint32
}

func (c *captureWriter) write(payload []byte, outbound bool) {
	c.t.Helper()
	client, server := net.IP{10, 0, 0, 2}, net.IP{10, 0, 0, 1}
	srcPort, dstPort := layers.TCPPort(50000), layers.TCPPort(443)
	if !outbound {
		client, server = server, client
		srcPort, dstPort = dstPort, srcPort
	}

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: client, DstIP: server}
	tcp := &layers.TCP{SrcPort: srcPort, DstPort: dstPort, Seq: c.seq, ACK: true, PSH: true, Window: 65535}
	require.NoError(c.t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(c.t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))

	data := buf.Bytes()
	c.ts = c.ts.Add(40 * time.Millisecond)
	c.seq += uint32(len(payload))
	require.NoError(c.t, c.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     c.ts,
		CaptureLength: len(data),
		Length:        len(data),
	}, data))
}

const captureXML = `<xml_result><read_word><rec_paper><read_word total_score="76.4">` +
	`<sentence content="apple" total_score="76.4"><word content="apple" total_score="76.4" dp_message="0"/></sentence>` +
	`</read_word></rec_paper></read_word></xml_result>`

func writeCapture(t *testing.T, signedAt time.Time) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ise.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	cw := &captureWriter{t: t, w: w, ts: signedAt, seq: 1}

	authURL, err := xfyun.NewSigner("key123", "secret456").BuildURL("ws://ise-api.xfyun.cn/v2/open-ise", signedAt)
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)

	cw.write([]byte(fmt.Sprintf("GET %s HTTP/1.1\r\nHost: ise-api.xfyun.cn\r\nUpgrade: websocket\r\n"+
		"Connection: Upgrade\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\nSec-WebSocket-Version: 13\r\n\r\n",
		u.RequestURI())), true)
	cw.write([]byte("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\n\r\n"), false)

	params, _ := json.Marshal(map[string]interface{}{
		"common":   map[string]string{"app_id": "app"},
		"business": map[string]interface{}{"cmd": "ssb", "category": "read_word", "text": "apple"},
		"data":     map[string]int{"status": 0},
	})
	cw.write(wsFrame(params, true), true)

	audio, _ := json.Marshal(map[string]interface{}{
		"business": map[string]interface{}{"cmd": "auw", "aus": 4},
		"data":     map[string]interface{}{"status": 2, "data": base64.StdEncoding.EncodeToString(make([]byte, 100))},
	})
	cw.write(wsFrame(audio, true), true)

	result, _ := json.Marshal(map[string]interface{}{
		"code": 0, "message": "success", "sid": "ise-abc",
		"data": map[string]interface{}{"status": 2, "data": base64.StdEncoding.EncodeToString([]byte(captureXML))},
	})
	cw.write(wsFrame(result, false), false)
	return path
}

func TestInspectCapture(t *testing.T) {
	signedAt := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	reader, err := NewPCAPReader(writeCapture(t, signedAt))
	require.NoError(t, err)

	report, err := reader.Inspect()
	require.NoError(t, err)

	require.NotNil(t, report.Handshake)
	assert.Equal(t, "13", report.Handshake.Version)
	assert.Equal(t, "dGhlIHNhbXBsZSBub25jZQ==", report.Handshake.Key)

	require.NotNil(t, report.Auth, report.AuthError)
	assert.Equal(t, "ise-api.xfyun.cn", report.Auth.Host)
	assert.Equal(t, "/v2/open-ise", report.Auth.Path)
	assert.Equal(t, "key123", report.Auth.APIKey)
	assert.Equal(t, "hmac-sha256", report.Auth.Algorithm)
	assert.Equal(t, "host date request-line", report.Auth.Headers)
	assert.True(t, report.Auth.Time.Equal(signedAt))

	ok, err := report.Auth.Verify("secret456")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = report.Auth.Verify("wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, report.Frames, 3)
	assert.True(t, report.Frames[0].Outbound)
	assert.Equal(t, "ssb", report.Frames[0].Cmd)
	assert.Equal(t, "read_word", report.Frames[0].Category)
	assert.Equal(t, "apple", report.Frames[0].Text)

	assert.Equal(t, "auw", report.Frames[1].Cmd)
	assert.Equal(t, 4, report.Frames[1].Aus)
	assert.Equal(t, 2, report.Frames[1].Status)
	assert.Equal(t, 100, report.Frames[1].AudioBytes)

	assert.False(t, report.Frames[2].Outbound)
	assert.Equal(t, "ise-abc", report.Frames[2].SID)
	assert.Equal(t, 2, report.Frames[2].ResultStatus)
	require.NotNil(t, report.Frames[2].TotalScore)
	assert.Equal(t, 76.4, *report.Frames[2].TotalScore)
	assert.Empty(t, report.Frames[2].Err)
}

func TestScanWebSocketFrames(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a' + byte(i%26)
	}
	data := append(wsFrame([]byte(`{"a":1}`), true), wsFrame(long, false)...)

	frames := ScanWebSocketFrames(data)
	require.Len(t, frames, 2)
	assert.True(t, frames[0].Outbound)
	assert.Equal(t, `{"a":1}`, string(frames[0].Payload))
	assert.False(t, frames[1].Outbound)
	assert.Equal(t, long, frames[1].Payload)

	assert.Empty(t, ScanWebSocketFrames([]byte{0x00, 0x01, 0x02}))
}

func TestParseISEAuthErrors(t *testing.T) {
	_, err := ParseISEAuth(&WebSocketHandshake{Path: "/v2/open-ise"})
	assert.Error(t, err)

	_, err = ParseISEAuth(&WebSocketHandshake{Path: "/v2/open-ise?host=h&date=bad&authorization=x"})
	assert.Error(t, err)

	_, err = ParseISEAuth(&WebSocketHandshake{Path: "/v2/open-ise?host=h&date=Sun,%2001%20Mar%202026%2008:30:00%20GMT&authorization=!!"})
	assert.Error(t, err)
}

func TestSummarizeFrameErrors(t *testing.T) {
	s := SummarizeFrame(Frame{Payload: []byte("not json")})
	assert.NotEmpty(t, s.Err)

	s = SummarizeFrame(Frame{Payload: []byte(`{"code":10163,"message":"param error","sid":"x"}`)})
	assert.Equal(t, 10163, s.Code)
	assert.Equal(t, "param error", s.Message)
	assert.Nil(t, s.TotalScore)

	s = SummarizeFrame(Frame{Payload: []byte(`{"code":0,"data":{"status":2,"data":"@@@"}}`)})
	assert.NotEmpty(t, s.Err)
}

func TestNewPCAPReaderMissingFile(t *testing.T) {
	_, err := NewPCAPReader(filepath.Join(t.TempDir(), "none.pcap"))
	assert.Error(t, err)
}
