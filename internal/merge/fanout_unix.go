//go:build unix

package merge

import "golang.org/x/sys/unix"

// FanoutBudget derives a default Fmax from the process's open-file rlimit,
// reserving headroom for the destination file, stdio, and whatever else the
// host process already has open. Fmax is a discovered resource budget, not a
// fixed constant; on unix the rlimit is the one concrete signal available.
func FanoutBudget(reserve int) int {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return DefaultFanout
	}
	budget := int(rlim.Cur) - reserve
	if budget < 2 {
		return 2
	}
	if budget > MaxFanout {
		return MaxFanout
	}
	return budget
}
