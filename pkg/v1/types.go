package v1

import "fmt"

// BlameLine attributes one line of the requested file to the commit, path
// and line number it originally came from.
type BlameLine struct {
	OriginalCommit     string `json:"original_commit"`
	OriginalFilePath   string `json:"original_file_path"`
	OriginalLineNumber int    `json:"original_line_number"`
}

// BlameResult is the answer to a blame request. Lines[i] describes line i+1
// of the file.
type BlameResult struct {
	CacheHit bool        `json:"cache_hit"`
	Lines    []BlameLine `json:"lines"`
}

type blameRequest struct {
	RepoID   string `json:"repo_id"`
	Commit   string `json:"commit"`
	FilePath string `json:"file_path"`
}

// APIError is returned for any non-200 response.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("blamed: %d %s (request %s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("blamed: %d %s", e.StatusCode, e.Message)
}
