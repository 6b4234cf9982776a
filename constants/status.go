package constants

// BatchStatus is the lifecycle state of a submitted batch.
type BatchStatus string

// Stable values (these exact strings appear in snapshots and API responses).
const (
	BatchQueued     BatchStatus = "queued"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed" // terminal
	BatchFailed     BatchStatus = "failed"    // terminal
)

// Terminal reports whether no further transition is allowed from s.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// FileStatus is the state of one file within a batch. Files move from queued
// through processing straight to a terminal state, exactly once.
type FileStatus string

const (
	FileQueued     FileStatus = "queued"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
	FileFailed     FileStatus = "failed"
)

// Terminal reports whether the file outcome has been recorded.
func (s FileStatus) Terminal() bool {
	return s == FileCompleted || s == FileFailed
}
