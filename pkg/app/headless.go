package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/sawakita/hibana/pkg/logger"
	"github.com/sawakita/hibana/pkg/runtime"
)

// ErrHeadlessTimeout reports that the script did not finish within the
// headless run's deadline.
var ErrHeadlessTimeout = errors.New("headless run timed out")

// HeadlessOptions tunes a windowless run.
type HeadlessOptions struct {
	// Timeout bounds the whole run; zero means no bound.
	Timeout time.Duration
	// TickInterval is the frame period, 16ms when zero.
	TickInterval time.Duration
	// AutoAdvance drives suspensions like a maximally impatient reader:
	// dialogue advances every tick, choices take the highlighted option,
	// inputs confirm empty.
	AutoAdvance bool
}

// RunHeadless drives the session without a window, for script validation
// runs and CI. Suspensions are logged; with AutoAdvance they resolve
// immediately, otherwise only timed waits make progress.
func RunHeadless(rt *runtime.Runtime, opts HeadlessOptions) error {
	log := logger.Get()
	tick := opts.TickInterval
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}

	lastWait := runtime.WaitNone
	for {
		rt.Update()
		if err := rt.Err(); err != nil {
			return err
		}
		if rt.Halted() {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			path, pc := rt.Position()
			return fmt.Errorf("%w at %s:%d", ErrHeadlessTimeout, path, pc)
		}

		wait := rt.Waiting()
		if wait != lastWait {
			log.Debug("headless wait", "kind", int(wait))
			lastWait = wait
		}
		if opts.AutoAdvance {
			switch wait {
			case runtime.WaitDialogue:
				rt.OnAdvance()
				rt.OnAdvance() // first call completes the reveal, second dismisses
			case runtime.WaitChoice:
				if c := rt.ChoiceView(); c != nil {
					rt.OnChoiceSelect(c.Selected)
				}
			case runtime.WaitInput:
				rt.OnInputConfirm()
			}
		}
		time.Sleep(tick)
	}
}
