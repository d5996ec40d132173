package webrtcsess

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nonary/Vibepollo-sub000/internal/capture"
)

func intPtr(v int) *int { return &v }

func TestNormalizeFillsDefaults(t *testing.T) {
	opts := CreateOptions{Video: true, Audio: true}
	require.NoError(t, opts.Normalize())
	require.Equal(t, "h264", opts.Codec)
	require.Equal(t, "opus", opts.AudioCodec)
	require.Equal(t, 2, opts.AudioChannels)
	require.Equal(t, "balanced", opts.VideoPacingMode)
}

func TestNormalizeResolvesSmoothAlias(t *testing.T) {
	opts := CreateOptions{VideoPacingMode: "smooth"}
	require.NoError(t, opts.Normalize())
	require.Equal(t, "smoothness", opts.VideoPacingMode)
}

func TestNormalizeRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		opts CreateOptions
	}{
		{"bad codec", CreateOptions{Codec: "vp9"}},
		{"bad audio codec", CreateOptions{AudioCodec: "mp3"}},
		{"bad channels", CreateOptions{AudioChannels: 4}},
		{"bad pacing mode", CreateOptions{VideoPacingMode: "fast"}},
		{"slack too large", CreateOptions{VideoPacingSlackMS: intPtr(11)}},
		{"slack negative", CreateOptions{VideoPacingSlackMS: intPtr(-1)}},
		{"frame age too small", CreateOptions{VideoMaxFrameAgeMS: intPtr(4)}},
		{"frame age too large", CreateOptions{VideoMaxFrameAgeMS: intPtr(251)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.opts
			require.Error(t, opts.Normalize())
		})
	}
}

func TestNormalizeAcceptsBoundaryRanges(t *testing.T) {
	opts := CreateOptions{
		Codec:              "AV1",
		AudioCodec:         "AAC",
		AudioChannels:      8,
		VideoPacingMode:    "Latency",
		VideoPacingSlackMS: intPtr(10),
		VideoMaxFrameAgeMS: intPtr(5),
	}
	require.NoError(t, opts.Normalize())
	require.Equal(t, "av1", opts.Codec)
	require.Equal(t, "aac", opts.AudioCodec)
	require.Equal(t, "latency", opts.VideoPacingMode)
}

func TestSnapshotCountsSubmittedPackets(t *testing.T) {
	r := newTestRegistry(t)
	snap := r.CreateSession(CreateOptions{Video: true, Audio: true})
	for i := 0; i < 5; i++ {
		r.SubmitVideoPacket(capture.PacketRaw{Data: []byte{byte(i)}})
	}
	got, ok := r.Snapshot(snap.ID)
	require.True(t, ok)
	require.EqualValues(t, 5, got.VideoPackets)
	require.EqualValues(t, 5-maxVideoFrames, got.VideoDropped)
}
