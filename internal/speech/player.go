package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// AudioSink plays audio. Play blocks until the clip ends, ctx is done or
// Stop is called. A clip whose ctx is already done is not played.
type AudioSink interface {
	Play(ctx context.Context, wav []byte) error
	Stop()
	Pause()
	Resume()
}

var _ AudioSink = (*Player)(nil)

// Player handles audio playback of WAV/PCM data via oto.
type Player struct {
	ctx *oto.Context
	log *logger.Logger

	mu      sync.Mutex
	active  *oto.Player // clip being played, nil when idle
	paused  bool
	stopped bool
}

// NewPlayer creates an audio player. Initializes the system audio context.
// Returns an error if the audio device is unavailable.
func NewPlayer(log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play plays WAV audio data synchronously.
func (p *Player) Play(ctx context.Context, wavData []byte) error {
	pcm, err := extractPCM(wavData)
	if err != nil {
		return err
	}
	return p.PlayPCM(ctx, pcm)
}

// PlayPCM plays raw 16-bit mono PCM synchronously. A paused clip keeps the
// call blocked until Resume, Stop or the end of ctx.
func (p *Player) PlayPCM(ctx context.Context, pcm []byte) error {
	if ctx.Err() != nil {
		p.log.Debug("audio player: clip cancelled before it started")
		return nil
	}
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))

	p.mu.Lock()
	p.active = player
	p.stopped = false
	paused := p.paused
	p.mu.Unlock()

	if !paused {
		player.Play()
	}
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	for {
		time.Sleep(10 * time.Millisecond)
		if ctx.Err() != nil {
			player.Pause()
			break
		}
		p.mu.Lock()
		done := p.stopped || (!p.paused && !player.IsPlaying())
		p.mu.Unlock()
		if done {
			break
		}
	}

	p.mu.Lock()
	if p.active == player {
		p.active = nil
	}
	p.mu.Unlock()

	return player.Close()
}

// PlayTone plays a short PCM clip on its own oto player without touching
// the narration slot, so a chime never cuts off speech.
func (p *Player) PlayTone(pcm []byte) {
	tone := p.ctx.NewPlayer(bytes.NewReader(pcm))
	tone.Play()
	go func() {
		for tone.IsPlaying() {
			time.Sleep(20 * time.Millisecond)
		}
		tone.Close()
	}()
}

// Stop interrupts the current clip, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopped = true
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.log.Debug("audio player: interrupted")
	}
}

// Pause holds the current clip in place. Later clips start paused too.
func (p *Player) Pause() {
	p.mu.Lock()
	p.paused = true
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
	}
}

// Resume continues a paused clip.
func (p *Player) Resume() {
	p.mu.Lock()
	p.paused = false
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Play()
	}
}

// extractPCM strips the WAV/RIFF header and returns raw PCM data.
func extractPCM(wav []byte) ([]byte, error) {
	if len(wav) < 44 {
		return nil, errors.New("wav data too short")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	pos := 12
	for pos < len(wav)-8 {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))

		if chunkID == "data" {
			start := pos + 8
			end := min(start+chunkSize, len(wav))
			return wav[start:end], nil
		}

		pos += 8 + chunkSize
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}
