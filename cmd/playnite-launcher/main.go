// Command playnite-launcher is the standalone launcher helper spawned by
// the app supervisor: it drives one Playnite game through the plugin IPC, applies
// foreground focus once the game reports started, and on exit spawns a
// cleanup watchdog sibling of itself to sweep leftover processes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"

	"github.com/Nonary/Vibepollo-sub000/internal/playnite"
)

func main() {
	var (
		gameID           string
		fullscreen       bool
		doCleanup        bool
		focusAttempts    int
		focusTimeoutSecs int
		focusExitOnFirst bool
		exitTimeout      int
		installDir       string
		waitForPID       int
	)

	root := &cobra.Command{
		Use:           "playnite-launcher",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
				With().Timestamp().Str("service", "playnite-launcher").Logger()
			if doCleanup {
				return runCleanup(waitForPID, installDir, fullscreen, log)
			}
			return runLauncher(cmd.Context(), launchOpts{
				gameID:           gameID,
				fullscreen:       fullscreen,
				focusAttempts:    focusAttempts,
				focusTimeoutSecs: focusTimeoutSecs,
				focusExitOnFirst: focusExitOnFirst,
				exitTimeout:      exitTimeout,
				installDir:       installDir,
			}, log)
		},
	}
	root.Flags().StringVar(&gameID, "game-id", "", "Playnite game id to launch")
	root.Flags().BoolVar(&fullscreen, "fullscreen", false, "launch into Playnite fullscreen mode instead of a specific game")
	root.Flags().BoolVar(&doCleanup, "do-cleanup", false, "run as the post-exit cleanup watchdog instead of the launcher")
	root.Flags().IntVar(&focusAttempts, "focus-attempts", 5, "max confirmed foreground transitions to attempt")
	root.Flags().IntVar(&focusTimeoutSecs, "focus-timeout", 30, "max seconds spent attempting focus")
	root.Flags().BoolVar(&focusExitOnFirst, "focus-exit-on-first", false, "stop focus attempts after the first success")
	root.Flags().IntVar(&exitTimeout, "exit-timeout", 10, "startup timeout in seconds before gameStarted arrives")
	root.Flags().StringVar(&installDir, "install-dir", "", "game install directory, used for focus matching and cleanup")
	root.Flags().IntVar(&waitForPID, "wait-for-pid", 0, "pid the cleanup watchdog waits to exit before sweeping")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type launchOpts struct {
	gameID           string
	fullscreen       bool
	focusAttempts    int
	focusTimeoutSecs int
	focusExitOnFirst bool
	exitTimeout      int
	installDir       string
}

// runLauncher drives one game end to end: ensure Playnite is running,
// connect to the plugin IPC, send the launch command, wait for gameStarted, then
// budget focus attempts until gameStopped, a startup timeout, or the focus
// budget is exhausted.
func runLauncher(ctx context.Context, opts launchOpts, log zerolog.Logger) error {
	ensurePlayniteRunning()

	client := playnite.NewClient(log)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go client.Run(runCtx)

	startTimeout := time.After(time.Duration(opts.exitTimeout) * time.Second)
	started := false

	defer spawnCleanupWatchdog(opts.installDir, opts.fullscreen, log)

	for {
		select {
		case ev := <-client.Events():
			if matchesGame(ev.GameID, opts.gameID, opts.fullscreen) {
				if ev.Started && !started {
					started = true
					go runFocusLoop(runCtx, opts, log)
				} else if !ev.Started && started {
					log.Info().Msg("gameStopped received, exiting")
					return nil
				}
			}
		case <-startTimeout:
			if !started {
				log.Warn().Msg("startup timeout elapsed before gameStarted")
				return fmt.Errorf("playnite-launcher: startup timeout")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func matchesGame(eventGameID, wantGameID string, fullscreen bool) bool {
	if fullscreen {
		return true
	}
	return eventGameID == "" || eventGameID == wantGameID
}

// runFocusLoop attempts at most focusAttempts confirmed foreground
// transitions, at most one per second, within focusTimeoutSecs total.
func runFocusLoop(ctx context.Context, opts launchOpts, log zerolog.Logger) {
	deadline := time.Now().Add(time.Duration(opts.focusTimeoutSecs) * time.Second)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Now().After(deadline) || attempts >= opts.focusAttempts {
				return
			}
			ok := attemptFocus(opts.installDir)
			if ok {
				attempts++
				log.Debug().Int("attempt", attempts).Msg("focus transition confirmed")
				if opts.focusExitOnFirst {
					return
				}
			}
		}
	}
}

// ensurePlayniteRunning launches Playnite via its URL protocol association
// if it is not already running.
func ensurePlayniteRunning() {
	procs, err := process.Processes()
	if err != nil {
		return
	}
	for _, p := range procs {
		name, err := p.Name()
		if err == nil && (name == "Playnite.DesktopApp.exe" || name == "Playnite.FullscreenApp.exe") {
			return
		}
	}
	_ = exec.Command("cmd", "/c", "start", "playnite://").Start()
}

// spawnCleanupWatchdog launches a sibling playnite-launcher --do-cleanup
// process that waits for this process to exit before sweeping leftover
// install-dir processes.
func spawnCleanupWatchdog(installDir string, fullscreen bool, log zerolog.Logger) {
	exe, err := os.Executable()
	if err != nil {
		log.Warn().Err(err).Msg("cannot resolve own executable for cleanup watchdog")
		return
	}
	args := []string{"--do-cleanup", "--wait-for-pid", strconv.Itoa(os.Getpid()), "--install-dir", installDir}
	if fullscreen {
		args = append(args, "--fullscreen")
	}
	cmd := exec.Command(exe, args...)
	if err := cmd.Start(); err != nil {
		log.Warn().Err(err).Msg("failed to spawn cleanup watchdog")
	}
}

// runCleanup is the watchdog entrypoint: wait for waitForPID to exit, then
// terminate every process whose image path lives under installDir (see
// terminateGracefulThenForceful), or drop Playnite out of fullscreen mode.
func runCleanup(waitForPID int, installDir string, fullscreen bool, log zerolog.Logger) error {
	waitForExit(waitForPID)

	if fullscreen {
		_ = exec.Command("Playnite.DesktopApp.exe", "--startdesktop").Start()
		return nil
	}
	if installDir == "" {
		return nil
	}
	sweepInstallDir(installDir, log)
	return nil
}

func waitForExit(pid int) {
	if pid <= 0 {
		return
	}
	for i := 0; i < 300; i++ {
		p, err := process.NewProcess(int32(pid))
		if err != nil {
			return
		}
		if running, _ := p.IsRunning(); !running {
			return
		}
		_ = p
		time.Sleep(time.Second)
	}
}

func sweepInstallDir(installDir string, log zerolog.Logger) {
	procs, err := process.Processes()
	if err != nil {
		return
	}
	for _, p := range procs {
		exePath, err := p.Exe()
		if err != nil || !underDir(exePath, installDir) {
			continue
		}
		pid := int(p.Pid)
		log.Info().Int("pid", pid).Str("exe", exePath).Msg("cleanup: terminating leftover process")
		terminateGracefulThenForceful(pid)
	}
}

func underDir(path, dir string) bool {
	if dir == "" || path == "" {
		return false
	}
	return len(path) > len(dir) && path[:len(dir)] == dir
}

// processUnderDir reports whether pid's image path lives under dir, used by
// attemptFocus on Windows to match a candidate window to the launched game.
func processUnderDir(pid uint32, dir string) bool {
	if dir == "" {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	exePath, err := p.Exe()
	if err != nil {
		return false
	}
	return underDir(exePath, dir)
}
