package proc

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Nonary/Vibepollo-sub000/internal/losslessscaling"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "apps.json"))
	require.NoError(t, err)
	return NewSupervisor(store, nil, zerolog.Nop())
}

func TestExecuteUnknownAppFails(t *testing.T) {
	sup := newTestSupervisor(t)
	err := sup.Execute(context.Background(), "nonexistent", &LaunchSession{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExecuteDesktopAppEntersPlacebo(t *testing.T) {
	sup := newTestSupervisor(t)
	require.NoError(t, sup.store.Upsert(&AppDef{UUID: "desktop", Name: "Desktop"}))

	err := sup.Execute(context.Background(), "desktop", &LaunchSession{})
	require.NoError(t, err)
	require.Equal(t, Placebo, sup.State())
}

func TestExecuteRejectsConcurrentLaunch(t *testing.T) {
	sup := newTestSupervisor(t)
	require.NoError(t, sup.store.Upsert(&AppDef{UUID: "a", Name: "A"}))
	require.NoError(t, sup.store.Upsert(&AppDef{UUID: "b", Name: "B"}))

	require.NoError(t, sup.Execute(context.Background(), "a", &LaunchSession{}))
	err := sup.Execute(context.Background(), "b", &LaunchSession{})
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestTerminateRunsUndoCmdsInReverse(t *testing.T) {
	sup := newTestSupervisor(t)
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker.txt")

	app := &AppDef{
		UUID: "app",
		Name: "App",
		PrepCmds: []PrepCmd{
			{Do: "true", Undo: "echo first >> " + marker},
			{Do: "true", Undo: "echo second >> " + marker},
		},
	}
	require.NoError(t, sup.store.Upsert(app))

	require.NoError(t, sup.Execute(context.Background(), "app", &LaunchSession{}))
	require.NoError(t, sup.Terminate(context.Background(), TerminateOptions{ExitTimeout: time.Second}))
	require.Equal(t, Idle, sup.State())

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	require.Equal(t, "second\nfirst\n", string(data))
}

// stubbornLauncher spawns a long-running child in place of the Playnite
// helper and ignores Stop, standing in for a game that misses the IPC stop
// command.
type stubbornLauncher struct {
	proc *os.Process
}

func (l *stubbornLauncher) Launch(ctx context.Context, args PlayniteLaunchArgs) (*os.Process, error) {
	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go cmd.Wait()
	l.proc = cmd.Process
	return cmd.Process, nil
}

func (l *stubbornLauncher) Stop(gameID string) error { return nil }

func TestTerminateEscalatesPlayniteGroupAfterIgnoredStop(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "apps.json"))
	require.NoError(t, err)
	launcher := &stubbornLauncher{}
	sup := NewSupervisor(store, launcher, zerolog.Nop())

	require.NoError(t, store.Upsert(&AppDef{UUID: "pn", Name: "Playnite Game", PlayniteID: "game-1"}))
	require.NoError(t, sup.Execute(context.Background(), "pn", &LaunchSession{}))
	require.NotNil(t, launcher.proc)
	require.True(t, processAlive(launcher.proc.Pid))

	start := time.Now()
	require.NoError(t, sup.Terminate(context.Background(), TerminateOptions{ExitTimeout: 2 * time.Second}))
	require.Less(t, time.Since(start), 10*time.Second)

	// The IPC stop was ignored, so the group must have been escalated and
	// killed within the budget.
	deadline := time.Now().Add(2 * time.Second)
	for processAlive(launcher.proc.Pid) && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	require.False(t, processAlive(launcher.proc.Pid))
	require.Equal(t, Idle, sup.State())
}

type fakeSidecar struct {
	mu       sync.Mutex
	ran      chan struct{}
	opts     losslessscaling.Options
	toreDown bool
}

func (f *fakeSidecar) RunSidecar(ctx context.Context, installDir string, opts losslessscaling.Options) error {
	f.mu.Lock()
	f.opts = opts
	f.mu.Unlock()
	f.ran <- struct{}{}
	return nil
}

func (f *fakeSidecar) Teardown() error {
	f.mu.Lock()
	f.toreDown = true
	f.mu.Unlock()
	return nil
}

func TestFramegenSidecarRunsOnLaunchAndTearsDownOnTerminate(t *testing.T) {
	sup := newTestSupervisor(t)
	fs := &fakeSidecar{ran: make(chan struct{}, 1)}
	sup.SetFramegenSidecar(fs)

	app := &AppDef{
		UUID:                    "game",
		Name:                    "Game",
		Cmd:                     "true",
		LosslessScalingFramegen: true,
		FrameGenerationProvider: ProviderLosslessScaling,
		LosslessScalingProfile:  "custom",
		Custom:                  FrameGenOverride{FlowScale: 75, ScalingType: ScalingFSR},
	}
	require.NoError(t, sup.store.Upsert(app))
	require.NoError(t, sup.Execute(context.Background(), "game", &LaunchSession{}))

	select {
	case <-fs.ran:
	case <-time.After(time.Second):
		t.Fatal("sidecar was not started")
	}
	fs.mu.Lock()
	require.Equal(t, 75, fs.opts.FlowScale)
	require.Equal(t, string(ScalingFSR), fs.opts.ScalingType)
	fs.mu.Unlock()

	require.NoError(t, sup.Terminate(context.Background(), TerminateOptions{ExitTimeout: time.Second}))
	fs.mu.Lock()
	require.True(t, fs.toreDown)
	fs.mu.Unlock()
}

func TestFramegenSidecarSkippedForDesktopApps(t *testing.T) {
	sup := newTestSupervisor(t)
	fs := &fakeSidecar{ran: make(chan struct{}, 1)}
	sup.SetFramegenSidecar(fs)

	require.NoError(t, sup.store.Upsert(&AppDef{
		UUID:                    "desktop",
		Name:                    "Desktop",
		LosslessScalingFramegen: true,
		FrameGenerationProvider: ProviderLosslessScaling,
	}))
	require.NoError(t, sup.Execute(context.Background(), "desktop", &LaunchSession{}))
	require.Equal(t, Placebo, sup.State())

	select {
	case <-fs.ran:
		t.Fatal("sidecar must not run for placebo launches")
	case <-time.After(100 * time.Millisecond):
	}
}
