package speech

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithChunkSize sets the approximate max character count per TTS chunk.
// Longer text is split at sentence boundaries and synthesized in parallel.
func WithChunkSize(n int) MouthOption {
	return func(m *Mouth) {
		m.chunkSize = n
	}
}

// WithCacheDir sets the directory for persistent audio caching. Empty
// disables the disk layer.
func WithCacheDir(dir string) MouthOption {
	return func(m *Mouth) {
		m.cacheDir = dir
	}
}

// WithDiskWrite controls whether new cache entries are written to disk.
// Existing entries are read either way.
func WithDiskWrite(enabled bool) MouthOption {
	return func(m *Mouth) {
		m.diskWrite = enabled
	}
}

var _ domain.Narrator = (*Mouth)(nil)

// Mouth is the narration slot. It holds at most one utterance: a new Say
// replaces whatever is waiting and cuts off whatever is playing, so cues
// never queue up behind each other. Synthesis and playback happen on the
// goroutine started by Start.
type Mouth struct {
	tts    Synthesizer
	player AudioSink
	log    *logger.Logger
	cache  *AudioCache

	chunkSize int
	cacheDir  string
	diskWrite bool

	mu         sync.Mutex
	gen        uint64
	pending    *utterance
	cancelPlay context.CancelFunc
	notify     chan struct{}
	running    bool
	speaking   bool
	paused     bool
	lastSpoken string
}

type utterance struct {
	text string
	gen  uint64
}

// NewMouth creates a narration slot over the given synthesizer and sink.
func NewMouth(tts Synthesizer, player AudioSink, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		tts:       tts,
		player:    player,
		log:       log,
		notify:    make(chan struct{}, 1),
		chunkSize: 200,
		diskWrite: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cache = NewAudioCache(tts.CacheKey(), m.cacheDir, m.diskWrite, log)
	return m
}

// Say replaces the current utterance with text. Non-blocking.
func (m *Mouth) Say(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	m.mu.Lock()
	m.bump()
	m.pending = &utterance{text: text, gen: m.gen}
	busy := m.speaking
	m.mu.Unlock()

	if busy {
		m.player.Stop()
	}
	m.log.Debug("mouth: say %q", truncate(text, 60))
	m.signal()
}

// Speak implements domain.Narrator. It fails with
// domain.ErrNarrationUnavailable until Start has been called, and after the
// Start context ends.
func (m *Mouth) Speak(text string) error {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return domain.ErrNarrationUnavailable
	}
	m.Say(text)
	return nil
}

// Cancel implements domain.Narrator.
func (m *Mouth) Cancel() { m.Interrupt() }

// Interrupt drops the pending utterance and stops playback.
func (m *Mouth) Interrupt() {
	m.mu.Lock()
	m.bump()
	m.pending = nil
	m.mu.Unlock()

	m.player.Stop()
	m.log.Debug("mouth: interrupted")
}

// Pause holds playback until Resume. New utterances still replace the
// slot while paused.
func (m *Mouth) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	m.player.Pause()
}

// Resume continues playback.
func (m *Mouth) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
	m.player.Resume()
	m.signal()
}

// Paused reports whether playback is on hold.
func (m *Mouth) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// IsSpeaking returns true while an utterance is being synthesized or played.
func (m *Mouth) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// LastSpoken returns the most recent utterance that started playing.
func (m *Mouth) LastSpoken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSpoken
}

// Cache returns the audio cache used by this Mouth.
func (m *Mouth) Cache() *AudioCache { return m.cache }

// Start begins the playback goroutine. Non-blocking.
func (m *Mouth) Start(ctx context.Context) {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	go m.loop(ctx)
	m.log.Info("mouth started")
}

func (m *Mouth) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Mouth) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			m.player.Stop()
			m.log.Info("mouth stopped")
			return
		case <-m.notify:
			for {
				u, ok := m.take()
				if !ok {
					break
				}
				m.speak(ctx, u)
			}
		}
	}
}

// take empties the slot unless playback is paused.
func (m *Mouth) take() (*utterance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil || m.paused {
		return nil, false
	}
	u := m.pending
	m.pending = nil
	m.speaking = true
	return u, true
}

// bump supersedes the current utterance and cancels its playback, even
// playback that has been claimed but not started yet. Caller holds m.mu.
func (m *Mouth) bump() {
	m.gen++
	if m.cancelPlay != nil {
		m.cancelPlay()
		m.cancelPlay = nil
	}
}

// claim returns a playback context for u, or false when u has been
// superseded. The context is cancelled by the next Say or Interrupt.
func (m *Mouth) claim(ctx context.Context, u *utterance) (context.Context, context.CancelFunc, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.gen != m.gen {
		return nil, nil, false
	}
	playCtx, cancel := context.WithCancel(ctx)
	m.cancelPlay = cancel
	return playCtx, cancel, true
}

func (m *Mouth) speak(ctx context.Context, u *utterance) {
	defer func() {
		m.mu.Lock()
		m.speaking = false
		m.mu.Unlock()
	}()

	chunks := m.splitChunks(u.text)
	audio := make([][]byte, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := m.synthesizeWithCache(ctx, chunk)
			if err != nil {
				m.log.Error("mouth: synthesis failed: %v", err)
				return
			}
			audio[i] = data
		}()
	}
	wg.Wait()

	for i, data := range audio {
		if data == nil || ctx.Err() != nil {
			continue
		}
		playCtx, cancel, ok := m.claim(ctx, u)
		if !ok {
			m.log.Debug("mouth: superseded before chunk %d", i)
			return
		}
		if i == 0 {
			m.mu.Lock()
			m.lastSpoken = u.text
			m.mu.Unlock()
		}
		err := m.player.Play(playCtx, data)
		cancel()
		if err != nil {
			m.log.Error("mouth: playback failed: %v", err)
		}
	}
}

func (m *Mouth) synthesizeWithCache(ctx context.Context, text string) ([]byte, error) {
	if audio, ok := m.cache.Get(text); ok {
		return audio, nil
	}
	audio, err := m.tts.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.Put(text, audio)
	return audio, nil
}

// Prefetch warms the cache for texts that will be spoken soon, such as
// every phase label of the pattern about to start. Non-blocking.
func (m *Mouth) Prefetch(ctx context.Context, texts ...string) {
	seen := make(map[string]bool)
	for _, text := range texts {
		for _, chunk := range m.splitChunks(strings.TrimSpace(text)) {
			if chunk == "" || seen[chunk] || m.cache.Has(chunk) {
				continue
			}
			seen[chunk] = true
			go func() {
				if _, err := m.synthesizeWithCache(ctx, chunk); err != nil {
					m.log.Warn("prefetch: %v", err)
				}
			}()
		}
	}
}

// splitChunks breaks text into sentence-boundary chunks of about
// m.chunkSize characters.
func (m *Mouth) splitChunks(text string) []string {
	if m.chunkSize <= 0 || len(text) <= m.chunkSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, s := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+len(s) > m.chunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(s)
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// splitSentences splits at . ! ? keeping punctuation and trailing spaces
// with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
				current.WriteRune(runes[i])
			}
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
