package display

import (
	_ "embed"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
)

//go:embed banner.txt
var bannerRaw string

// Tagline is printed under the banner.
const Tagline = "breathe · warm up · speak"

// RenderBanner returns the banner art and tagline centred for the current
// terminal width.
func RenderBanner() string {
	return centre(append(bannerLines(), "", Tagline), termWidth())
}

func bannerLines() []string {
	return strings.Split(strings.TrimRight(bannerRaw, "\n"), "\n")
}

func centre(lines []string, width int) string {
	maxW := 0
	for _, l := range lines {
		maxW = max(maxW, len(l))
	}
	pad := ""
	if width > maxW {
		pad = strings.Repeat(" ", (width-maxW)/2)
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(pad)
		b.WriteString(BannerStyle.Render(l))
		b.WriteByte('\n')
	}
	return b.String()
}

// termWidth returns the current terminal column count, or 80 as fallback.
func termWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 80
}
