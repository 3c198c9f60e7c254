package git

import (
	"errors"
	"fmt"
)

var (
	// ErrRepositoryAccess matches errors for paths that are not usable repositories.
	ErrRepositoryAccess = errors.New("repository access error")
	// ErrBackendOperation matches errors from git commands against a valid repository.
	ErrBackendOperation = errors.New("backend operation error")
)

// AccessError reports a path that is not a valid repository or cannot be opened.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("not a git repository: %s: %v", e.Path, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

func (e *AccessError) Is(target error) bool { return target == ErrRepositoryAccess }

// OperationError reports a failed git command.
type OperationError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *OperationError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", e.Op, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Is(target error) bool { return target == ErrBackendOperation }
