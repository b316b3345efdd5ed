package notify

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// SoundPlayer plays the audible cue for a new notification.
type SoundPlayer interface {
	Play(ctx context.Context) error
}

// SoundPlayerFunc adapts a function to SoundPlayer.
type SoundPlayerFunc func(ctx context.Context) error

func (f SoundPlayerFunc) Play(ctx context.Context) error { return f(ctx) }

// BellPlayer rings the terminal bell on Out.
type BellPlayer struct {
	Out io.Writer
}

func (b BellPlayer) Play(context.Context) error {
	if _, err := io.WriteString(b.Out, "\a"); err != nil {
		return fmt.Errorf("ringing bell: %w", err)
	}
	return nil
}

// CommandPlayer runs Command through the shell, e.g.
// "paplay /usr/share/sounds/freedesktop/stereo/message.oga".
type CommandPlayer struct {
	Command string
}

func (c CommandPlayer) Play(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "sh", "-c", c.Command).CombinedOutput()
	if err != nil {
		return fmt.Errorf("running sound command %q: %w: %s", c.Command, err, out)
	}
	return nil
}

// NewSoundPlayer returns a CommandPlayer when command is set and a
// BellPlayer writing to out otherwise.
func NewSoundPlayer(command string, out io.Writer) SoundPlayer {
	if command != "" {
		return CommandPlayer{Command: command}
	}
	return BellPlayer{Out: out}
}

const playTimeout = 10 * time.Second

// alerter fires a SoundPlayer in the background. Failures and panics are
// logged and never reach the caller.
type alerter struct {
	player  SoundPlayer
	enabled atomic.Bool
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func newAlerter(player SoundPlayer, enabled bool, logger zerolog.Logger) *alerter {
	a := &alerter{player: player, logger: logger}
	a.enabled.Store(enabled && player != nil)
	return a
}

func (a *alerter) setEnabled(on bool) {
	a.enabled.Store(on && a.player != nil)
}

// alert starts playback and returns immediately.
func (a *alerter) alert() {
	if !a.enabled.Load() {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error().Interface("panic", r).Msg("sound player panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
		defer cancel()
		if err := a.player.Play(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("playing notification sound")
		}
	}()
}

// wait blocks until in-flight playbacks finish.
func (a *alerter) wait() { a.wg.Wait() }
