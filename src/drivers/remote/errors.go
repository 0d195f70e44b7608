package remote

import "fmt"

// DirectoryError reports the exact segment that could be neither entered
// nor created while walking a path.
type DirectoryError struct {
	Segment string
	Err     error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory segment %q: enter and create both failed: %v", e.Segment, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// TreeDeleteError reports a listing or removal failure partway through a
// recursive delete. Partial deletion may have happened; the operation is
// safe to retry as a whole.
type TreeDeleteError struct {
	Tenant string
	Op     string
	Err    error
}

func (e *TreeDeleteError) Error() string {
	return fmt.Sprintf("delete tree %s/%s: %s: %v", Namespace, e.Tenant, e.Op, e.Err)
}

func (e *TreeDeleteError) Unwrap() error { return e.Err }
