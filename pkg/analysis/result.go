package analysis

import (
	"github.com/ohmlab/gospice/pkg/solver"
)

// DCResult is the outcome of one operating-point analysis. It is built once
// per Analyze call and never mutated afterwards. Converged=false marks every
// result the caller must not trust, always with a human-readable
// FailureReason.
type DCResult struct {
	Converged         bool
	NodeVoltages      map[string]float64
	BranchCurrents    map[string]float64
	Power             map[string]float64
	Iterations        int
	FinalResidualNorm float64
	ConditionEstimate float64
	FailureReason     string

	// Path holds the homotopy continuation history when that strategy ran,
	// for diagnostics and plotting.
	Path []solver.PathPoint
}
