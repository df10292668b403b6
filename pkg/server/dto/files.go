package dto

import "github.com/soundprediction/conceptgraph/pkg/types"

// UploadResponse acknowledges a stored upload. Processing continues in the background.
type UploadResponse struct {
	Message  string          `json:"message"`
	FileInfo *types.FileInfo `json:"fileInfo"`
}

// FilesResponse lists a user's uploads.
type FilesResponse struct {
	Message string            `json:"message"`
	Files   []*types.FileInfo `json:"files"`
}

// UploadUsage describes how to call the upload endpoint.
type UploadUsage struct {
	Message string `json:"message"`
	Method  string `json:"method"`
	Field   string `json:"field"`
	Path    string `json:"path"`
}
