//go:build !unix

package merge

// FanoutBudget falls back to DefaultFanout on platforms without a
// queryable open-file rlimit.
func FanoutBudget(reserve int) int { return DefaultFanout }
