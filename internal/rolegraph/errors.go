package rolegraph

import "fmt"

// UnknownRoleError reports a reference to a role key absent from the graph,
// either in an assignment or in an implication edge.
type UnknownRoleError struct {
	Role string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("rolegraph: unknown role %q", e.Role)
}

// InvalidPartitionOrderError reports a priority order that omits a partition
// present in the conflict being resolved.
type InvalidPartitionOrderError struct {
	Partition string
}

func (e *InvalidPartitionOrderError) Error() string {
	return fmt.Sprintf("rolegraph: priority order omits partition %q", e.Partition)
}

// CycleDepthExceededError reports a traversal that ran past the configured
// depth cap.
type CycleDepthExceededError struct {
	Limit int
}

func (e *CycleDepthExceededError) Error() string {
	return fmt.Sprintf("rolegraph: implication depth exceeds limit %d", e.Limit)
}
