package server

type ResponseModel struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CheckpointModel is one stored watermark.
type CheckpointModel struct {
	Key       string `json:"key"`
	Watermark string `json:"watermark"`
}
