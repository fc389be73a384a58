package common

// Reasons recorded on a FileStatus.
const (
	ReasonGood        = "good"
	ReasonLocked      = "Locked"
	ReasonLookInto    = "look_into"
	ReasonUnsupported = "unsupported"
	ReasonFailed      = "failed"
	// ReasonDuplicate marks a file whose series was already read.
	ReasonDuplicate   = "duplicate"
)

// FileStatus records whether an extractor could process one remote file
// (or one sheet of it). Fetch failures end up here instead of aborting a
// build.
type FileStatus struct {
	ProjectID   string
	FileID      string
	FilePath    string
	Sheet       string
	Processable bool
	Reason      string
}
