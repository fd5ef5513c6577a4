package activities

import "context"

// GetWorkflowConfig returns the current loop bounds and profiling knobs.
// The workflow fetches this once at session start; a hot-reloaded config
// applies to the next session, keeping routing deterministic within one.
func (a *Activities) GetWorkflowConfig(ctx context.Context) (WorkflowConfig, error) {
	cfg := a.cfg()
	return WorkflowConfig{
		MaxAlignmentIterations: cfg.Loops.MaxAlignmentIterations,
		MaxCodeAttempts:        cfg.Loops.MaxCodeAttempts,
		MaxTotalRemediations:   cfg.Loops.MaxTotalRemediations,
		CompactThreshold:       cfg.Profiler.CompactThreshold,
		MaxDetailed:            cfg.Profiler.MaxDetailed,
		SandboxBudgetSeconds:   cfg.Sandbox.BudgetSeconds,
	}, nil
}
