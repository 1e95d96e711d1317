package models

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message of a chat transcript. Turns are immutable once
// appended to a session.
type ChatTurn struct {
	Role            Role   `json:"role"`
	Content         string `json:"content"`
	FileName        string `json:"file_name,omitempty"`
	IsImageRequest  bool   `json:"is_image_request,omitempty"`
	IsImageResponse bool   `json:"is_image_response,omitempty"`
}

// ChatRequest carries the form fields of POST /api/chat.
type ChatRequest struct {
	Message        string
	Model          string
	SessionID      string
	FileContent    string // base64 encoded attachment
	FileName       string
	IsImageRequest bool
}

// HasFile reports whether the request carries an attachment.
func (r ChatRequest) HasFile() bool {
	return r.FileContent != "" && r.FileName != ""
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Content         string `json:"content"`
	FileName        string `json:"file_name,omitempty"`
	IsImageResponse bool   `json:"is_image_response,omitempty"`
	Cached          bool   `json:"-"`
}

// ChatErrorResponse is the failure body of POST /api/chat.
type ChatErrorResponse struct {
	Error    string `json:"error"`
	FileName string `json:"file_name,omitempty"`
}

// ChatHistoryResponse is the body of GET /api/chat-history/{session_id}.
type ChatHistoryResponse struct {
	Messages []ChatTurn `json:"messages"`
}

// UploadedFile describes an attachment returned by POST /api/upload-file.
// ContentB64 is sent back unchanged as the file_content field of /api/chat.
type UploadedFile struct {
	FileName    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	ContentB64  string `json:"content_b64"`
}

// UploadResponse is the body of POST /api/upload-file.
type UploadResponse struct {
	Success  bool         `json:"success"`
	FileInfo UploadedFile `json:"file_info"`
	Message  string       `json:"message"`
}
