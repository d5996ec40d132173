package losslessscaling

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

const lsProcessName = "LosslessScaling.exe"

// Controller wires process detection and profile apply/restore into the
// sidecar lifecycle: snapshot, detect, stop, apply, restart, and on
// teardown restore the prior settings.
type Controller struct {
	ProfilesPath string
	ExePath      string
	log          zerolog.Logger

	backup  Backup
	applied bool
}

// NewController builds a controller targeting the given profiles.xml and
// LosslessScaling.exe paths.
func NewController(profilesPath, exePath string, log zerolog.Logger) *Controller {
	return &Controller{ProfilesPath: profilesPath, ExePath: exePath, log: log}
}

// RunSidecar snapshots the PIDs running when it is called (it launches
// nothing itself), waits up to DetectWindow for a game candidate among
// processes absent from that snapshot, then stops any running Lossless
// Scaling instances, applies the Vibeshine profile, and restarts the tool
// when ExePath is set. It returns once applied (or once the detection
// window expires with nothing found).
func (c *Controller) RunSidecar(ctx context.Context, installDir string, opts Options) error {
	baseline := SnapshotPIDs()
	candidate, found := Detect(ctx, baseline, installDir)
	if !found {
		c.log.Debug().Msg("losslessscaling: no game candidate detected within window")
		return nil
	}
	c.log.Info().Str("exe", candidate.ExePath).Int32("pid", candidate.PID).Msg("losslessscaling: candidate detected")

	if err := c.stopRunningInstances(); err != nil {
		c.log.Warn().Err(err).Msg("losslessscaling: failed stopping existing instances")
	}

	backup, err := ApplyProfile(c.ProfilesPath, opts)
	if err != nil {
		return fmt.Errorf("losslessscaling: apply profile: %w", err)
	}
	c.backup = backup
	c.applied = true

	if err := c.restart(); err != nil {
		return fmt.Errorf("losslessscaling: restart: %w", err)
	}
	return nil
}

// Teardown restores the backed-up profile values if RunSidecar applied a
// profile.
func (c *Controller) Teardown() error {
	if !c.applied {
		return nil
	}
	c.applied = false
	return RestoreProfile(c.ProfilesPath, c.backup)
}

func (c *Controller) stopRunningInstances() error {
	procs, err := process.Processes()
	if err != nil {
		return err
	}
	var firstErr error
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if !strings.EqualFold(name, lsProcessName) {
			continue
		}
		if err := p.Kill(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Controller) restart() error {
	if c.ExePath == "" {
		return nil
	}
	cmd := exec.Command(c.ExePath)
	return cmd.Start()
}
