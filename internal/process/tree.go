package process

import (
	"errors"
	"fmt"

	ps "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// Descendants returns the PIDs of all live descendants of pid, children
// before grandchildren. It walks a snapshot of the process table, so
// processes that fork while it runs may be missed.
func Descendants(pid int32) []int32 {
	procs, err := ps.Processes()
	if err != nil {
		return nil
	}

	children := make(map[int32][]int32)
	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], proc.Pid)
	}

	var result []int32
	seen := map[int32]bool{pid: true}
	queue := []int32{pid}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range children[parent] {
			if seen[child] {
				continue
			}
			seen[child] = true
			result = append(result, child)
			queue = append(queue, child)
		}
	}
	return result
}

// KillTree sends SIGKILL to every pid. Processes that are already gone are
// not an error.
func KillTree(pids []int32) error {
	var errs []error
	for _, pid := range pids {
		if err := unix.Kill(int(pid), unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			errs = append(errs, fmt.Errorf("kill descendant %d: %w", pid, err))
		}
	}
	return errors.Join(errs...)
}

// Alive reports whether a process with pid exists and is not a zombie.
func Alive(pid int32) bool {
	if err := unix.Kill(int(pid), 0); errors.Is(err, unix.ESRCH) {
		return false
	}
	proc, err := ps.NewProcess(pid)
	if err != nil {
		return false
	}
	status, err := proc.Status()
	if err != nil {
		return true
	}
	for _, s := range status {
		if s == "zombie" {
			return false
		}
	}
	return true
}
