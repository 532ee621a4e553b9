package ev3dev

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/teslashibe/go-legobot/pkg/device"
)

// SpeechConfig selects the synthesizer. Text is rendered by Synth to a WAV
// stream on stdout and played by Player reading stdin.
type SpeechConfig struct {
	Synth     []string
	Player    []string
	MaxLength time.Duration
}

// DefaultSpeech is espeak piped into aplay, as on a stock ev3dev image.
var DefaultSpeech = SpeechConfig{
	Synth:     []string{"espeak", "-a", "200", "-s", "130", "-v", "en", "--stdout"},
	Player:    []string{"aplay", "-q"},
	MaxLength: 30 * time.Second,
}

type speech struct {
	cfg SpeechConfig
}

func openSpeech(cfg SpeechConfig) (*speech, error) {
	if len(cfg.Synth) == 0 || len(cfg.Player) == 0 {
		return nil, device.NotFound("speech: no synthesizer configured")
	}
	for _, bin := range []string{cfg.Synth[0], cfg.Player[0]} {
		if _, err := exec.LookPath(bin); err != nil {
			return nil, device.NotFound("speech: %s not installed", bin)
		}
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultSpeech.MaxLength
	}
	return &speech{cfg: cfg}, nil
}

// Speak blocks until the line has been played.
func (s *speech) Speak(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MaxLength)
	defer cancel()

	synthArgs := append(append([]string(nil), s.cfg.Synth[1:]...), text)
	synth := exec.CommandContext(ctx, s.cfg.Synth[0], synthArgs...)
	play := exec.CommandContext(ctx, s.cfg.Player[0], s.cfg.Player[1:]...)

	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	synth.Stdout = w
	play.Stdin = r

	if err := play.Start(); err != nil {
		r.Close()
		w.Close()
		return fmt.Errorf("speech: start %s: %w", s.cfg.Player[0], err)
	}
	r.Close()
	synthErr := synth.Run()
	w.Close()
	playErr := play.Wait()

	if synthErr != nil {
		return fmt.Errorf("speech: %s: %w", s.cfg.Synth[0], synthErr)
	}
	if playErr != nil {
		return fmt.Errorf("speech: %s: %w", s.cfg.Player[0], playErr)
	}
	return nil
}
