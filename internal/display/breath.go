package display

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/calmcoach/internal/domain"
)

// circleRadius is the idle radius of the breathing circle in rows.
const circleRadius = 4

var visualStyles = map[domain.Visual]lipgloss.Style{
	domain.VisualExpand:  lipgloss.NewStyle().Foreground(lipgloss.Color("#bbf7d0")),
	domain.VisualShrink:  lipgloss.NewStyle().Foreground(lipgloss.Color("#bae6fd")),
	domain.VisualHold:    lipgloss.NewStyle().Foreground(lipgloss.Color("#fde68a")),
	domain.VisualNeutral: lipgloss.NewStyle().Foreground(lipgloss.Color("#a1a1aa")),
}

// phaseState is the latest thing the core asked the display to show.
// Writers never block; the renderer polls it.
type phaseState struct {
	mu        sync.Mutex
	active    bool
	label     string
	visual    domain.Visual
	remaining int
	round     string
}

type phaseSnapshot struct {
	active    bool
	label     string
	visual    domain.Visual
	remaining int
	round     string
}

func (p *phaseState) set(label string, v domain.Visual, remaining int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	p.label = label
	p.visual = v
	p.remaining = remaining
}

func (p *phaseState) setRound(current, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.round = fmt.Sprintf("Round %d of %d", current, total)
}

func (p *phaseState) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	p.label = ""
	p.visual = domain.VisualNeutral
	p.remaining = 0
	p.round = ""
}

func (p *phaseState) snapshot() phaseSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return phaseSnapshot{
		active:    p.active,
		label:     p.label,
		visual:    p.visual,
		remaining: p.remaining,
		round:     p.round,
	}
}

// renderCircle draws a filled circle scaled by the visual's size. Columns
// are doubled so the circle looks round in a terminal cell grid.
func renderCircle(v domain.Visual) string {
	r := float64(circleRadius) * v.Scale()
	size := int(math.Ceil(r))

	var b strings.Builder
	for y := -size; y <= size; y++ {
		for x := -2 * size; x <= 2*size; x++ {
			dx := float64(x) / 2
			if dx*dx+float64(y*y) <= r*r {
				b.WriteByte('o')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderPhase renders the circle, label, countdown and round line.
func renderPhase(s phaseSnapshot) string {
	style, ok := visualStyles[s.visual]
	if !ok {
		style = visualStyles[domain.VisualNeutral]
	}

	var b strings.Builder
	if s.visual != domain.VisualNeutral {
		b.WriteString(style.Render(renderCircle(s.visual)))
		b.WriteByte('\n')
	}
	b.WriteString(stepStyle.Render("  "+s.label) + "  " + timerRunStyle.Render(FormatRemaining(s.remaining)))
	if s.round != "" {
		b.WriteString(secondaryStyle.Render("   " + s.round))
	}
	return b.String()
}

// FormatRemaining renders whole seconds as "45s" or "m:ss" from one minute.
func FormatRemaining(sec int) string {
	if sec < 0 {
		sec = 0
	}
	if sec < 60 {
		return fmt.Sprintf("%ds", sec)
	}
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}
