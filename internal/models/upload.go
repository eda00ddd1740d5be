// Wallwatch - Video Wall Console Synchronization Core
// Copyright 2026 Wallwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wallwatch/wallwatch

package models

import "time"

// UploadStatus is the lifecycle state of one file transfer.
type UploadStatus string

const (
	UploadQueued     UploadStatus = "queued"
	UploadUploading  UploadStatus = "uploading"
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s UploadStatus) Terminal() bool {
	return s == UploadCompleted || s == UploadFailed
}

// UploadTask tracks one file's transfer within a sequential batch.
type UploadTask struct {
	ID       string       `json:"id"`
	FileName string       `json:"file_name"`
	Size     int64        `json:"size"`
	Progress float64      `json:"progress"`
	Status   UploadStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
	// Active marks the task currently being transferred; at most one task
	// per batch is active at any time.
	Active   bool          `json:"active"`
	Duration time.Duration `json:"duration_ms"`
}
