package notification

import (
	"sync"
	"time"
)

// Alert is what staff are shown for one order notification
type Alert struct {
	Message      string
	VisibleUntil time.Time
	// Audio is set when the spoken alert re-armed and should play
	Audio bool
}

// Gate times staff alerts. Every trigger keeps the visual banner up for the visual
// window; the audio alert plays at most once per cooldown.
type Gate struct {
	mu            sync.Mutex
	visualWindow  time.Duration
	audioCooldown time.Duration
	visibleUntil  time.Time
	lastAudio     time.Time
	now           func() time.Time
}

func NewGate(visualWindow, audioCooldown time.Duration) *Gate {
	return &Gate{
		visualWindow:  visualWindow,
		audioCooldown: audioCooldown,
		now:           time.Now,
	}
}

// Trigger raises an alert with message
func (g *Gate) Trigger(message string) Alert {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	until := now.Add(g.visualWindow)
	if until.After(g.visibleUntil) {
		g.visibleUntil = until
	}

	audio := g.lastAudio.IsZero() || now.Sub(g.lastAudio) > g.audioCooldown
	if audio {
		g.lastAudio = now
	}

	return Alert{Message: message, VisibleUntil: g.visibleUntil, Audio: audio}
}

// Visible reports whether the visual banner is still up
func (g *Gate) Visible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Before(g.visibleUntil)
}
