package losslessscaling

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// DetectWindow is how long Detect observes new processes before picking a
// winner.
const DetectWindow = 10 * time.Second

// systemPathFragments penalize candidates that live under common Windows
// system directories rather than a game's own install tree.
var systemPathFragments = []string{
	`\windows\`, `\program files\windowsapps\`, `\programdata\`,
}

// SnapshotPIDs returns the set of currently-running PIDs, taken
// immediately before launching the app, to be passed to Detect.
func SnapshotPIDs() map[int32]bool {
	out := map[int32]bool{}
	pids, err := process.Pids()
	if err != nil {
		return out
	}
	for _, p := range pids {
		out[p] = true
	}
	return out
}

// Detect watches for processes absent from baseline for DetectWindow, then
// returns the single highest-scoring candidate (weighted CPU+memory,
// preferring paths under installDir, penalizing Windows system paths), or
// false if nothing new was observed.
func Detect(ctx context.Context, baseline map[int32]bool, installDir string) (Candidate, bool) {
	deadline := time.Now().Add(DetectWindow)
	best := Candidate{}
	found := false

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return best, found
		case <-ticker.C:
		}

		pids, err := process.Pids()
		if err != nil {
			continue
		}
		for _, pid := range pids {
			if baseline[pid] {
				continue
			}
			p, err := process.NewProcess(pid)
			if err != nil {
				continue
			}
			exe, _ := p.Exe()
			name, _ := p.Name()
			cpu, _ := p.CPUPercent()
			mem, _ := p.MemoryPercent()

			score := score(exe, installDir, cpu, float64(mem))
			if !found || score > best.Score {
				best = Candidate{PID: pid, Name: name, ExePath: exe, CPUPercent: cpu, MemPercent: mem, Score: score}
				found = true
			}
		}
	}
	return best, found
}

// score weights CPU and memory usage, adding a bonus for paths under the
// install directory and a penalty for common Windows system paths.
func score(exePath, installDir string, cpu, mem float64) float64 {
	s := cpu + mem
	lower := strings.ToLower(exePath)
	if installDir != "" && strings.HasPrefix(lower, strings.ToLower(installDir)) {
		s += 50
	}
	for _, frag := range systemPathFragments {
		if strings.Contains(lower, frag) {
			s -= 100
			break
		}
	}
	return s
}
