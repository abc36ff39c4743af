package speech

import "time"

// TranscribeResponse 语音识别响应
type TranscribeResponse struct {
	Text      string    `json:"text"`
	Format    string    `json:"format"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// SynthesizeRequest 语音合成请求
type SynthesizeRequest struct {
	Text    string `json:"text"`
	Voice   string `json:"voice"`    // 声音类型，留空时使用角色声音
	AgentID string `json:"agent_id"` // 可选角色 ID
}

// Status 语音服务状态
type Status struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Transcriber string `json:"transcriber"`
	Synthesizer string `json:"synthesizer"`
}
