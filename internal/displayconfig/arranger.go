package displayconfig

// ArrangementInput carries the flags the session resolver needs to pick an
// Arrangement for one launch.
type ArrangementInput struct {
	VirtualDisplayRequested bool
	IsolatedRequested       bool
	MakePrimary             bool
}

// ResolveArrangement picks the topology for a launch. Isolated arrangements
// require parking the virtual/extended display away from the host's real
// screens so the cursor cannot wander into them.
func ResolveArrangement(in ArrangementInput) Arrangement {
	switch {
	case !in.VirtualDisplayRequested:
		return Exclusive
	case in.IsolatedRequested && in.MakePrimary:
		return ExtendedPrimaryIsolated
	case in.IsolatedRequested:
		return ExtendedIsolated
	case in.MakePrimary:
		return ExtendedPrimary
	default:
		return Extended
	}
}

// IsolationOrigin returns the origin the isolated display should be moved
// to for the given arrangement: the coordinate origin for
// ExtendedPrimaryIsolated (it becomes the primary, so it must sit at 0,0),
// or FarOffset otherwise.
func IsolationOrigin(a Arrangement) Point {
	if a == ExtendedPrimaryIsolated {
		return Point{X: 0, Y: 0}
	}
	return FarOffset
}

// TopologySnapshot captures the pre-move origin of every other display so
// an isolated arrangement can be undone on teardown.
type TopologySnapshot struct {
	Origins map[string]Point
}

// CaptureOrigins snapshots the current positions of all devices except the
// one being isolated, so RestoreOrigins can put them back.
func CaptureOrigins(current map[string]Point, excludeDeviceID string) TopologySnapshot {
	snap := TopologySnapshot{Origins: map[string]Point{}}
	for id, p := range current {
		if id == excludeDeviceID {
			continue
		}
		snap.Origins[id] = p
	}
	return snap
}

// EffectiveVirtualRefresh computes the virtual-display branch's refresh
// rate floor: max(display_fps, 2*fps) when double-refresh or framegen is
// requested, else display_fps unchanged.
func EffectiveVirtualRefresh(displayFPS, sessionFPS int, doubleRefresh bool) int {
	if !doubleRefresh {
		return displayFPS
	}
	if floor := 2 * sessionFPS; floor > displayFPS {
		return floor
	}
	return displayFPS
}
