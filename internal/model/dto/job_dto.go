package dto

// JobInfo 音频任务
type JobInfo struct {
	ID            int64  `json:"id"`
	OriginalName  string `json:"original_name"`
	InputPath     string `json:"input_path"`
	VocalsPath    string `json:"vocals_path,omitempty"`
	BacksoundPath string `json:"backsound_path,omitempty"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message,omitempty"`
	CreatedAt     string `json:"created_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}
