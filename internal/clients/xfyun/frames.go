package xfyun

import (
	"encoding/base64"
	"fmt"

	"voice_eval/internal/models"
)

// 音频帧在会话中的位置 (aus)
const (
	AudioFirst  = 1
	AudioMiddle = 2
	AudioLast   = 4
)

// data.status
const (
	StatusFirstFrame    = 0
	StatusContinueFrame = 1
	StatusLastFrame     = 2
)

// 结果消息 data.status
const (
	ResultInitial = 0
	ResultInterim = 1
	ResultFinal   = 2
)

const (
	cmdSessionBegin = "ssb"
	cmdAudioWrite   = "auw"
)

// ParamsFrame 建立连接后的第一条消息，携带评测参数
type ParamsFrame struct {
	Common   Common         `json:"common"`
	Business ParamsBusiness `json:"business"`
	Data     ParamsData     `json:"data"`
}

// ParamsData 参数帧只携带状态
type ParamsData struct {
	Status int `json:"status"`
}

// Common 公共参数
type Common struct {
	AppID string `json:"app_id"`
}

// ParamsBusiness 评测业务参数
type ParamsBusiness struct {
	Aue          string `json:"aue"`
	Auf          string `json:"auf"`
	Category     string `json:"category"`
	Cmd          string `json:"cmd"`
	Ent          string `json:"ent"`
	Sub          string `json:"sub"`
	Text         string `json:"text"`
	TTPSkip      bool   `json:"ttp_skip"`
	Rst          string `json:"rst"`
	ISEUnite     string `json:"ise_unite"`
	ExtraAbility string `json:"extra_ability,omitempty"`
}

// AudioFrame 音频上传帧
type AudioFrame struct {
	Business AudioBusiness `json:"business"`
	Data     FrameData     `json:"data"`
}

// AudioBusiness 音频帧业务参数
type AudioBusiness struct {
	Cmd string `json:"cmd"`
	Aus int    `json:"aus"`
}

// FrameData 帧数据
type FrameData struct {
	Status int    `json:"status"`
	Data   string `json:"data"`
}

// Response 服务端返回
type Response struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	SID     string        `json:"sid"`
	Data    *ResponseData `json:"data,omitempty"`
}

// ResponseData 返回数据，Data 为base64编码的xml
type ResponseData struct {
	Status int    `json:"status"`
	Data   string `json:"data"`
}

func newParamsFrame(appID string, sampleRate int, req models.EvaluationRequest) ParamsFrame {
	return ParamsFrame{
		Common: Common{AppID: appID},
		Business: ParamsBusiness{
			Aue:          "raw",
			Auf:          fmt.Sprintf("audio/L16;rate=%d", sampleRate),
			Category:     req.Category.ISECategory(),
			Cmd:          cmdSessionBegin,
			Ent:          req.Language,
			Sub:          "ise",
			Text:         req.ReferenceText,
			TTPSkip:      true,
			Rst:          "entirety",
			ISEUnite:     "1",
			ExtraAbility: req.ExtraAbility,
		},
		Data: ParamsData{Status: StatusFirstFrame},
	}
}

func newAudioFrame(aus int, pcm []byte) AudioFrame {
	status := StatusContinueFrame
	if aus == AudioLast {
		status = StatusLastFrame
	}
	return AudioFrame{
		Business: AudioBusiness{Cmd: cmdAudioWrite, Aus: aus},
		Data: FrameData{
			Status: status,
			Data:   base64.StdEncoding.EncodeToString(pcm),
		},
	}
}
