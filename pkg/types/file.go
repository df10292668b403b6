package types

import "time"

// FileStatus tracks the ingestion batch for an uploaded document.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// IsTerminal reports whether no further status transitions are expected.
func (s FileStatus) IsTerminal() bool {
	return s == FileStatusCompleted || s == FileStatusFailed
}

// FileInfo describes an uploaded document.
type FileInfo struct {
	ID        string     `json:"id" yaml:"id"`
	UserID    string     `json:"userId" yaml:"user_id"`
	FileName  string     `json:"fileName" yaml:"file_name"`
	FileType  string     `json:"fileType" yaml:"file_type"`
	Size      int64      `json:"size" yaml:"size"`
	Path      string     `json:"-" yaml:"-"`
	Status    FileStatus `json:"status" yaml:"status"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" yaml:"updated_at"`
}

// Validate checks if the FileInfo has all required fields set.
func (f *FileInfo) Validate() error {
	if f.ID == "" {
		return ErrEmptyID
	}
	if f.UserID == "" {
		return ErrEmptyUserID
	}
	if f.FileName == "" {
		return ErrEmptyName
	}
	return nil
}
