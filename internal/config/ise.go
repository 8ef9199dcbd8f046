package config

import "time"

// ISEConfig 科大讯飞语音评测配置
type ISEConfig struct {
	AppID          string        `yaml:"app_id"`          // 应用ID
	APIKey         string        `yaml:"api_key"`         // API Key
	APISecret      string        `yaml:"api_secret"`      // API Secret
	ServerURL      string        `yaml:"server_url"`      // 服务地址
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // 建立连接超时
	ResultTimeout  time.Duration `yaml:"result_timeout"`  // 等待最终结果超时
	Language       string        `yaml:"language"`        // 默认语种 en_vip/cn_vip
	ExtraAbility   string        `yaml:"extra_ability"`   // 附加能力
	SampleRate     int           `yaml:"sample_rate"`     // 采样率
}

func (c *ISEConfig) setDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "wss://ise-api.xfyun.cn/v2/open-ise"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ResultTimeout == 0 {
		c.ResultTimeout = 30 * time.Second
	}
	if c.Language == "" {
		c.Language = "en_vip"
	}
	if c.ExtraAbility == "" {
		c.ExtraAbility = "multi_dimension"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000 // 默认16kHz
	}
}

// Validate 验证评测凭证
func (c *ISEConfig) Validate() error {
	if c.AppID == "" {
		return ErrEmptyAppID
	}
	if c.APIKey == "" {
		return ErrEmptyAPIKey
	}
	if c.APISecret == "" {
		return ErrEmptyAPISecret
	}
	return nil
}

// Configured 凭证是否齐全
func (c *ISEConfig) Configured() bool {
	return c.Validate() == nil
}
