package status

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

// Activator brings the UI collaborator to the foreground. Implementations
// must be safe to call from any goroutine.
type Activator interface {
	Activate(ctx context.Context) error
}

// CommandActivator starts ActivateCommand the first time and runs
// FocusCommand while that process is still alive.
type CommandActivator struct {
	activate []string
	focus    []string
	log      zerolog.Logger

	mu      sync.Mutex
	running chan struct{}
}

func NewCommandActivator(activate, focus []string, log zerolog.Logger) *CommandActivator {
	return &CommandActivator{
		activate: activate,
		focus:    focus,
		log:      log.With().Str("component", "activator").Logger(),
	}
}

func (a *CommandActivator) Activate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.alive() {
		if len(a.focus) == 0 {
			a.log.Debug().Msg("ui already running")
			return nil
		}
		cmd := exec.CommandContext(ctx, a.focus[0], a.focus[1:]...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("focus ui: %w: %s", err, out)
		}
		return nil
	}

	if len(a.activate) == 0 {
		a.log.Info().Msg("activate requested, no ui.activate_command configured")
		return nil
	}
	// not bound to ctx: the ui outlives the request
	cmd := exec.Command(a.activate[0], a.activate[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ui: %w", err)
	}
	done := make(chan struct{})
	a.running = done
	a.log.Info().Int("pid", cmd.Process.Pid).Msg("ui started")
	go func() {
		err := cmd.Wait()
		a.log.Debug().Err(err).Msg("ui exited")
		close(done)
	}()
	return nil
}

func (a *CommandActivator) alive() bool {
	if a.running == nil {
		return false
	}
	select {
	case <-a.running:
		return false
	default:
		return true
	}
}
