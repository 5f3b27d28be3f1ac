package deploy

// Action is what happened to one workflow file.
type Action string

const (
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionWouldCreate Action = "would-create"
	ActionWouldUpdate Action = "would-update"
	ActionFailed      Action = "failed"
)

// FileError records why one file could not be deployed.
type FileError struct {
	File    string `json:"file"`
	Message string `json:"error"`
}

// Results accumulates the outcome of a single run. Each slice keeps the
// order in which files were listed.
type Results struct {
	Created []string    `json:"created"`
	Updated []string    `json:"updated"`
	Errors  []FileError `json:"errors"`

	// Planned holds dry-run outcomes keyed by action.
	Planned map[Action][]string `json:"planned,omitempty"`
}

// NewResults returns an empty result set.
func NewResults() *Results {
	return &Results{
		Created: []string{},
		Updated: []string{},
		Errors:  []FileError{},
	}
}

// Add records the outcome for file.
func (r *Results) Add(file string, action Action, err error) {
	if err != nil {
		r.Errors = append(r.Errors, FileError{File: file, Message: err.Error()})
		return
	}

	switch action {
	case ActionCreated:
		r.Created = append(r.Created, file)
	case ActionUpdated:
		r.Updated = append(r.Updated, file)
	case ActionWouldCreate, ActionWouldUpdate:
		if r.Planned == nil {
			r.Planned = make(map[Action][]string)
		}
		r.Planned[action] = append(r.Planned[action], file)
	}
}

// HasErrors reports whether any file failed.
func (r *Results) HasErrors() bool {
	return len(r.Errors) > 0
}

// Total is the number of files that produced an outcome.
func (r *Results) Total() int {
	n := len(r.Created) + len(r.Updated) + len(r.Errors)
	for _, files := range r.Planned {
		n += len(files)
	}
	return n
}
