package capture

// EncoderProbeFunc validates whether a given encoder kind is usable on this
// host. Injected so SelectEncoder is testable without real hardware probes;
// probing real hardware is a platform seam like TextureOpener.
type EncoderProbeFunc func(kind EncoderKind) bool

// SelectEncoder walks preferred (EncoderProbeOrder when empty) and returns
// the first kind probe accepts. Software needs no validation and is the
// guaranteed fallback.
func SelectEncoder(preferred []EncoderKind, probe EncoderProbeFunc) EncoderKind {
	order := EncoderProbeOrder
	if len(preferred) > 0 {
		order = preferred
	}
	for _, kind := range order {
		if kind == EncoderSoftware {
			break
		}
		if probe != nil && probe(kind) {
			return kind
		}
	}
	return EncoderSoftware
}
