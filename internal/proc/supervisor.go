package proc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/Nonary/Vibepollo-sub000/internal/losslessscaling"
)

// State is the supervisor's per-instance lifecycle state.
type State int

const (
	Idle State = iota
	Preparing
	Launching
	Running
	Placebo
	Terminating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Launching:
		return "launching"
	case Running:
		return "running"
	case Placebo:
		return "placebo"
	case Terminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// ErrNotFound is returned when a launch targets an unknown app uuid,
// surfaced to API callers verbatim as a 400.
var ErrNotFound = errors.New("Cannot find requested application")

// ErrAlreadyRunning is returned by Execute when a session is already active;
// the supervisor runs at most one app at a time.
var ErrAlreadyRunning = errors.New("proc: an app is already running")

// LaunchSession is the ephemeral per-launch state, trimmed to the
// fields the supervisor itself consumes; capture/display-specific fields
// live in their own packages and are passed in as needed.
type LaunchSession struct {
	UniqueID        string
	DeviceName      string
	Width, Height   int
	FPS             int
	EnableHDR       bool
	ClientEnv       map[string]string
	LaunchStartedAt time.Time
}

// PlayniteLauncher abstracts spawning the Playnite launcher helper child
// (cmd/playnite-launcher), so this package doesn't need to know its flags'
// exact formatting beyond what it passes in.
type PlayniteLauncher interface {
	Launch(ctx context.Context, args PlayniteLaunchArgs) (*os.Process, error)
	Stop(gameID string) error
}

// PlayniteLaunchArgs mirrors the launcher child's command-line flags.
type PlayniteLaunchArgs struct {
	GameID           string
	Fullscreen       bool
	ExitTimeout      int
	FocusAttempts    int
	FocusTimeoutSecs int
	FocusExitOnFirst bool
}

// FramegenSidecar is the Lossless-Scaling integration hook: after a
// command launch the supervisor starts RunSidecar in the background to
// detect the game process and swap in the streaming profile; Teardown
// restores the backed-up profile on terminate.
type FramegenSidecar interface {
	RunSidecar(ctx context.Context, installDir string, opts losslessscaling.Options) error
	Teardown() error
}

// Supervisor drives one app's lifecycle at a time, serialized by mu.
type Supervisor struct {
	mu    sync.Mutex
	state State
	log   zerolog.Logger

	store    *Store
	playnite PlayniteLauncher
	sidecar  FramegenSidecar

	cmd           *exec.Cmd
	detachedPIDs  []int
	startedPreps  []PrepCmd
	current       *AppDef
	session       *LaunchSession
	placeboSince  time.Time
}

// NewSupervisor builds a Supervisor bound to an app store and an optional
// Playnite launcher integration.
func NewSupervisor(store *Store, playnite PlayniteLauncher, log zerolog.Logger) *Supervisor {
	return &Supervisor{state: Idle, store: store, playnite: playnite, log: log.With().Str("component", "proc").Logger()}
}

// SetFramegenSidecar installs the Lossless-Scaling integration; nil leaves
// framegen apps launching without profile management.
func (s *Supervisor) SetFramegenSidecar(sc FramegenSidecar) {
	s.mu.Lock()
	s.sidecar = sc
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the app being supervised right now, or nil when Idle.
func (s *Supervisor) Current() *AppDef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Idle {
		return nil
	}
	return s.current
}

// Execute resolves appID, runs prep commands, and launches the app,
// transitioning Idle→Preparing→Launching→{Running,Placebo}.
func (s *Supervisor) Execute(ctx context.Context, appUUID string, session *LaunchSession) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	app, ok := s.store.ByUUID(appUUID)
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.state = Preparing
	s.current = app
	s.session = session
	s.startedPreps = nil
	s.mu.Unlock()

	env := s.buildEnv(app, session)

	if err := s.runPreps(ctx, app, env); err != nil {
		s.mu.Lock()
		s.state = Idle
		s.mu.Unlock()
		return fmt.Errorf("proc: prep commands failed: %w", err)
	}

	s.mu.Lock()
	s.state = Launching
	s.mu.Unlock()

	if err := s.launch(ctx, app, session, env); err != nil {
		s.mu.Lock()
		s.state = Idle
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Supervisor) buildEnv(app *AppDef, session *LaunchSession) map[string]string {
	withoutIdx, _ := CalculateAppID(app.Name, app.ImagePath, 0)
	losslessEnv := map[string]string{}
	if app.LosslessScalingFramegen {
		losslessEnv["framegen"] = "true"
		losslessEnv["target_fps"] = fmt.Sprint(app.LosslessScalingTargetFPS)
	}
	sessionEnv := SessionEnv(withoutIdx, app.Name, session.ClientEnv, losslessEnv, string(app.FrameGenerationProvider))

	merged := s.store.Env()
	for k, v := range sessionEnv {
		merged[k] = v
	}
	return merged
}

// runPreps executes prep_cmds in order; a non-zero exit aborts the launch
// unless it is a "permission denied" failure running against the empty
// (desktop) command, which is tolerated and the loop continues.
func (s *Supervisor) runPreps(ctx context.Context, app *AppDef, env map[string]string) error {
	for _, p := range app.PrepCmds {
		if p.Do == "" {
			continue
		}
		expanded, err := Interpolate(p.Do, env)
		if err != nil {
			return err
		}
		err = runCommand(ctx, expanded, app.WorkingDir, env, p.Elevated)
		s.mu.Lock()
		s.startedPreps = append(s.startedPreps, p)
		s.mu.Unlock()
		if err != nil {
			if app.Cmd == "" && os.IsPermission(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// launch picks one of the four launch paths: Playnite game, Playnite
// fullscreen, placebo desktop, or a plain command, in that precedence.
func (s *Supervisor) launch(ctx context.Context, app *AppDef, session *LaunchSession, env map[string]string) error {
	switch {
	case app.PlayniteID != "" && app.Cmd == "":
		return s.launchPlaynite(ctx, app, false)
	case app.PlayniteFullscreen:
		return s.launchPlaynite(ctx, app, true)
	case app.IsDesktop():
		s.mu.Lock()
		s.state = Placebo
		s.placeboSince = time.Now()
		s.mu.Unlock()
		return nil
	default:
		return s.launchCommand(ctx, app, env)
	}
}

func (s *Supervisor) launchPlaynite(ctx context.Context, app *AppDef, fullscreen bool) error {
	if s.playnite == nil {
		return fmt.Errorf("proc: playnite launch requested but no launcher configured")
	}
	args := PlayniteLaunchArgs{
		GameID:           app.PlayniteID,
		Fullscreen:       fullscreen,
		ExitTimeout:      app.ExitTimeout,
		FocusAttempts:    5,
		FocusTimeoutSecs: 10,
	}
	proc, err := s.playnite.Launch(ctx, args)
	if err != nil {
		return fmt.Errorf("proc: launch playnite helper: %w", err)
	}
	s.mu.Lock()
	s.detachedPIDs = []int{proc.Pid}
	s.state = Running
	s.mu.Unlock()
	return nil
}

func (s *Supervisor) launchCommand(ctx context.Context, app *AppDef, env map[string]string) error {
	expanded, err := Interpolate(app.Cmd, env)
	if err != nil {
		return err
	}
	cmd, err := buildCmd(expanded, app.WorkingDir, env)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("proc: start %q: %w", expanded, err)
	}
	// Reap the child when it exits so liveness polling and termination see
	// the real state instead of a zombie.
	go func() { _ = cmd.Wait() }()

	for _, d := range app.Detached {
		dexp, err := Interpolate(d, env)
		if err != nil {
			return err
		}
		dcmd, err := buildCmd(dexp, app.WorkingDir, env)
		if err != nil {
			return err
		}
		if err := dcmd.Start(); err != nil {
			s.log.Warn().Err(err).Str("cmd", dexp).Msg("detached command failed to start")
			continue
		}
		_ = dcmd.Process.Release()
	}

	s.mu.Lock()
	s.cmd = cmd
	s.state = Running
	sidecar := s.sidecar
	s.mu.Unlock()

	// The Lossless-Scaling sidecar only runs for real launch commands,
	// never for placebo or Playnite-backed apps.
	if sidecar != nil && app.LosslessScalingFramegen && app.FrameGenerationProvider == ProviderLosslessScaling {
		opts := sidecarOptions(app)
		go func() {
			if err := sidecar.RunSidecar(context.Background(), app.WorkingDir, opts); err != nil {
				s.log.Warn().Err(err).Msg("lossless scaling sidecar failed")
			}
		}()
	}
	return nil
}

// sidecarOptions maps the app's active override bundle onto the sidecar's
// profile options; the recommended bundle applies unless the app selects
// the custom one.
func sidecarOptions(app *AppDef) losslessscaling.Options {
	bundle := app.Recommended
	if app.LosslessScalingProfile == "custom" {
		bundle = app.Custom
	}
	return losslessscaling.Options{
		InstallDir:      app.WorkingDir,
		TargetFPS:       app.LosslessScalingTargetFPS,
		PerformanceMode: bundle.PerformanceMode,
		FlowScale:       bundle.FlowScale,
		ResolutionScale: bundle.ResolutionScale,
		ScalingType:     string(bundle.ScalingType),
		Sharpening:      bundle.Sharpening,
		Anime4KSize:     string(bundle.Anime4KSize),
		Anime4KVRS:      bundle.Anime4KVRS,
		RTSSLimit:       app.LosslessScalingRTSSLimit,
	}
}

// buildCmd invokes line through the platform shell so app cmd strings can
// use quoting and redirection, not a naive whitespace split.
func buildCmd(line, dir string, env map[string]string) (*exec.Cmd, error) {
	if strings.TrimSpace(line) == "" {
		return nil, fmt.Errorf("proc: empty command")
	}
	name, args := shellInvocation(line)
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = envSlice(env)
	return cmd, nil
}

func runCommand(ctx context.Context, line, dir string, env map[string]string, elevated bool) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	name, args := shellInvocation(line)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = envSlice(env)
	return cmd.Run()
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env)+len(os.Environ()))
	out = append(out, os.Environ()...)
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// Poll checks liveness at the RTSP tick cadence and auto-flips to Placebo
// when a wait_all=false app exits within 5s with code 0 and auto_detach.
func (s *Supervisor) Poll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running || s.cmd == nil {
		return
	}

	alive := processAlive(s.cmd.Process.Pid)
	if s.current.WaitAll {
		alive = alive || anyGroupAlive(s.detachedPIDs)
	}
	if alive {
		return
	}

	if s.current.AutoDetach && time.Since(s.placeboOrLaunch()) < 5*time.Second {
		s.state = Placebo
		s.placeboSince = time.Now()
		return
	}
	s.state = Idle
}

func (s *Supervisor) placeboOrLaunch() time.Time {
	if !s.placeboSince.IsZero() {
		return s.placeboSince
	}
	return time.Now()
}

func processAlive(pid int) bool {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	return err == nil && running
}

func anyGroupAlive(pids []int) bool {
	for _, pid := range pids {
		if processAlive(pid) {
			return true
		}
	}
	return false
}

// TerminateOptions configures a Terminate call.
type TerminateOptions struct {
	ExitTimeout           time.Duration // default 10s
	VirtualDisplayDetach  func() error
	ConfigRevertOnDisconnect func() error
}

// Terminate implements the escalating teardown: Playnite stop command
// (if applicable), graceful-then-forceful process termination at the
// 0/0.4/0.7/1.0 timing fractions, undo_cmds in reverse, then the optional
// display/revert hooks.
func (s *Supervisor) Terminate(ctx context.Context, opts TerminateOptions) error {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return nil
	}
	app := s.current
	startedPreps := append([]PrepCmd{}, s.startedPreps...)
	groupPIDs := append([]int{}, s.detachedPIDs...)
	if s.cmd != nil && s.cmd.Process != nil {
		groupPIDs = append(groupPIDs, s.cmd.Process.Pid)
	}
	s.state = Terminating
	s.mu.Unlock()

	timeout := opts.ExitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)

	if app != nil && app.PlayniteID != "" && s.playnite != nil {
		_ = s.playnite.Stop(app.PlayniteID)
		waitGroupExit(groupPIDs, deadline)
	}
	// The stop request may have been ignored or missed; the process group
	// is terminated regardless, within whatever budget remains.
	for _, pid := range groupPIDs {
		if processAlive(pid) {
			escalate(pid, time.Until(deadline))
		}
	}

	if app != nil && app.LosslessScalingFramegen {
		s.mu.Lock()
		sidecar := s.sidecar
		s.mu.Unlock()
		if sidecar != nil {
			if err := sidecar.Teardown(); err != nil {
				s.log.Warn().Err(err).Msg("lossless scaling profile restore failed")
			}
		}
	}

	for i := len(startedPreps) - 1; i >= 0; i-- {
		p := startedPreps[i]
		if p.Undo == "" {
			continue
		}
		_ = runCommand(ctx, p.Undo, app.WorkingDir, nil, p.Elevated)
	}

	if app != nil && app.VirtualScreen && opts.VirtualDisplayDetach != nil {
		_ = opts.VirtualDisplayDetach()
	}
	if opts.ConfigRevertOnDisconnect != nil {
		_ = opts.ConfigRevertOnDisconnect()
	}

	s.mu.Lock()
	s.state = Idle
	s.current = nil
	s.cmd = nil
	s.detachedPIDs = nil
	s.startedPreps = nil
	s.mu.Unlock()
	return nil
}

// escalationFractions are the four graceful-then-forceful timing points
// of the timeout budget: request close / end-session / quit / kill.
var escalationFractions = []float64{0, 0.4, 0.7, 1.0}

// escalate polls the process group for the timeout window, signaling
// progressively stronger termination requests at each fraction boundary.
func escalate(pid int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	idx := 0
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return
		}
		elapsed := 1 - time.Until(deadline).Seconds()/timeout.Seconds()
		if idx < len(escalationFractions) && elapsed >= escalationFractions[idx] {
			sendEscalationSignal(pid, idx)
			idx++
		}
		time.Sleep(250 * time.Millisecond)
	}
	if processAlive(pid) {
		killProcess(pid)
	}
}

// waitGroupExit polls until every pid in the group is gone or deadline
// passes; the caller escalates on whatever is still alive.
func waitGroupExit(pids []int, deadline time.Time) {
	for time.Now().Before(deadline) {
		if !anyGroupAlive(pids) {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
}
