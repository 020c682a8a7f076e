package speech

import (
	"context"
	"time"
)

// Silent is a Synthesizer for deployments without a voice. It yields no
// audio, so items complete as soon as they are taken.
type Silent struct{}

func (Silent) Synthesize(context.Context, string) ([]byte, error) { return nil, nil }

// PacedPlayer hands audio to a sink (a browser, a speaker process) and
// holds the channel for the audio's estimated duration.
type PacedPlayer struct {
	// BytesPerSecond is the encoded bitrate. Polly MP3 output at 24 kHz is
	// about 6000 bytes per second.
	BytesPerSecond int
	Sink           func(audio []byte)
}

func (p PacedPlayer) Play(ctx context.Context, audio []byte) error {
	if p.Sink != nil {
		p.Sink(audio)
	}
	bps := p.BytesPerSecond
	if bps <= 0 {
		bps = 6000
	}
	d := time.Duration(len(audio)) * time.Second / time.Duration(bps)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
