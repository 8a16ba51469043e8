package suggest

// SuggestRequest is the request body for the next-edit endpoint.
type SuggestRequest struct {
	DebugInfo           string      `json:"debug_info"`
	RepoName            string      `json:"repo_name"`
	FilePath            string      `json:"file_path"`
	FileContents        string      `json:"file_contents"`
	RecentChanges       string      `json:"recent_changes"`
	CursorPosition      int         `json:"cursor_position"`
	RetrievalChunks     []FileChunk `json:"retrieval_chunks"`
	MultipleSuggestions bool        `json:"multiple_suggestions"`
	UseBytes            bool        `json:"use_bytes"`
}

// FileChunk is a chunk of file content sent as context.
type FileChunk struct {
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Content   string  `json:"content"`
	Timestamp *uint64 `json:"timestamp,omitempty"`
}

// SuggestResponse is the next-edit endpoint response. The primary candidate
// sits at the top level; Completions carries any further candidates in
// service order.
type SuggestResponse struct {
	SuggestionID  string          `json:"suggestion_id"`
	StartIndex    int             `json:"start_index"`
	EndIndex      int             `json:"end_index"`
	Completion    string          `json:"completion"`
	Confidence    float64         `json:"confidence"`
	FinishReason  *string         `json:"finish_reason,omitempty"`
	ElapsedTimeMs int             `json:"elapsed_time_ms"`
	Completions   []SuggestChoice `json:"completions,omitempty"`
}

// SuggestChoice is one additional candidate beyond the primary.
type SuggestChoice struct {
	SuggestionID string  `json:"suggestion_id"`
	StartIndex   int     `json:"start_index"`
	EndIndex     int     `json:"end_index"`
	Completion   string  `json:"completion"`
	Confidence   float64 `json:"confidence"`
}

// MetricsRequest is the body for the metrics endpoint.
type MetricsRequest struct {
	EventType    string `json:"event_type"`
	SuggestionID string `json:"suggestion_id"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	DeviceID     string `json:"device_id"`
}
