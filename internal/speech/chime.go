package speech

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/domain"
)

// Chime frequency and length used at phase boundaries.
const (
	ChimeHz       = 660
	ChimeDuration = 300 * time.Millisecond
)

// TonePlayer plays raw PCM without blocking.
type TonePlayer interface {
	PlayTone(pcm []byte)
}

var _ domain.Chimer = (*Chime)(nil)

// Chime plays a short sine tone.
type Chime struct {
	out TonePlayer
	pcm []byte
}

// NewChime renders the tone once and replays it on every Chime call.
func NewChime(out TonePlayer) *Chime {
	return &Chime{out: out, pcm: SineTone(ChimeHz, ChimeDuration, 0.25)}
}

// Chime plays the tone.
func (c *Chime) Chime() {
	c.out.PlayTone(c.pcm)
}

// SineTone renders 16-bit mono PCM at SampleRate with a short linear fade
// at both ends to avoid clicks.
func SineTone(hz float64, d time.Duration, gain float64) []byte {
	n := int(float64(SampleRate) * d.Seconds())
	fade := SampleRate / 100 // 10ms
	buf := make([]byte, n*2)

	for i := 0; i < n; i++ {
		env := 1.0
		if i < fade {
			env = float64(i) / float64(fade)
		} else if n-i < fade {
			env = float64(n-i) / float64(fade)
		}
		v := math.Sin(2*math.Pi*hz*float64(i)/SampleRate) * gain * env
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return buf
}
