package graph

import "fmt"

// IndeterminateSystemError is raised when a linearization's information
// matrix is rank-deficient or non-positive-definite at the current point
// (§7 taxonomy item 1). NearKey is the smoother's best guess at which
// variable's block is responsible — the one with the smallest diagonal
// entry in the assembled information matrix — so recovery can redirect
// V/B/E keys to their owning submap's X key per §4.5.
type IndeterminateSystemError struct {
	NearKey Key
}

func (e *IndeterminateSystemError) Error() string {
	return fmt.Sprintf("graph: indeterminate linear system near key %s", e.NearKey)
}
