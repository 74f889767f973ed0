package dispatcher

import "fmt"

// DownloadError wraps a failure to fetch a blob named by a gossiped
// ticket into the sync folder.
type DownloadError struct {
	RelativePath string
	Err          error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("dispatcher: download %s: %v", e.RelativePath, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
