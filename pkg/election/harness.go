package election

import (
	"time"

	"github.com/replicante-io/replicore/pkg/log"
)

// Verb is the control flow a Logic hook hands back to the Harness (spec.md §4.2).
type Verb int

const (
	// Proceed continues to the next step of the current loop iteration.
	Proceed Verb = iota
	// Continue skips the remaining steps of this iteration and sleeps.
	Continue
	// Exit stops the harness: it steps down and Run returns.
	Exit
	// ReRun steps down and immediately calls Run again, resetting the term counter.
	ReRun
	// StepDown releases the current Primary/Secondary role without stopping the loop.
	StepDown
)

// Logic is the set of hooks the Harness dispatches to. Every hook
// receives the Election so it can call Status()/StepDown() itself if
// needed, and returns a Verb telling the harness what to do next.
type Logic interface {
	PreCheck(e *Election) Verb
	OnPrimary(e *Election) Verb
	OnSecondary(e *Election) Verb
	OnNotCandidate(e *Election) Verb
	OnTerminated(e *Election, reason string) Verb
	PostCheck(e *Election) Verb
	HandleError(e *Election, err error) Verb
}

// Harness is the reusable "Looping Election" driver from spec.md §4.2.
type Harness struct {
	election     *Election
	logic        Logic
	loopDelay    time.Duration
	electionTerm int // 0 means disabled
	term         int
	stop         <-chan struct{}
}

// Config configures a Harness.
type Config struct {
	LoopDelay    time.Duration
	ElectionTerm int // number of loops before a forced re-election; 0 disables
	Stop         <-chan struct{}
}

// NewHarness builds a Harness around an election and a logic object.
func NewHarness(e *Election, logic Logic, cfg Config) *Harness {
	return &Harness{
		election:     e,
		logic:        logic,
		loopDelay:    cfg.LoopDelay,
		electionTerm: cfg.ElectionTerm,
		term:         cfg.ElectionTerm,
		stop:         cfg.Stop,
	}
}

// outcome is what applying a Verb means for the rest of the current loop
// body: keep running this iteration's remaining steps, skip to the sleep
// phase, or return from Run entirely.
type outcome int

const (
	outcomeProceed outcome = iota
	outcomeSkipRest
	outcomeStop
)

// Run drives the election loop until a hook returns Exit, HandleError
// maps an error to Exit, or the shutdown channel fires. It always steps
// down before returning.
func (h *Harness) Run() error {
	defer h.election.StepDown()

	if err := h.election.Run(); err != nil {
		if h.logic.HandleError(h.election, err) == Exit {
			return err
		}
	}

	logger := log.WithComponent("election-harness")
	for {
		select {
		case <-h.stop:
			return nil
		default:
		}

		if h.electionTerm > 0 {
			h.term--
			if h.term <= 0 {
				logger.Debug().Str("election", h.election.Name()).Msg("election term expired, forcing re-election")
				if err := h.rerun(); err != nil {
					return err
				}
				h.term = h.electionTerm
			}
		}

		switch h.apply(h.logic.PreCheck(h.election)) {
		case outcomeStop:
			return nil
		case outcomeSkipRest:
			if !h.sleep() {
				return nil
			}
			continue
		}

		var verb Verb
		switch h.election.Status() {
		case Primary:
			verb = h.logic.OnPrimary(h.election)
		case Secondary:
			verb = h.logic.OnSecondary(h.election)
		case NotCandidate, InProgress:
			verb = h.logic.OnNotCandidate(h.election)
		case Terminated:
			verb = h.logic.OnTerminated(h.election, h.election.TerminatedReason())
		}
		switch h.apply(verb) {
		case outcomeStop:
			return nil
		case outcomeSkipRest:
			if !h.sleep() {
				return nil
			}
			continue
		}

		switch h.apply(h.logic.PostCheck(h.election)) {
		case outcomeStop:
			return nil
		}

		if !h.sleep() {
			return nil
		}
	}
}

// apply performs a verb's side effect and reports how Run should proceed.
func (h *Harness) apply(verb Verb) outcome {
	switch verb {
	case Exit:
		return outcomeStop
	case ReRun:
		if err := h.rerun(); err != nil {
			return outcomeStop
		}
		return outcomeSkipRest
	case StepDown:
		_ = h.election.StepDown()
		return outcomeProceed
	case Continue:
		return outcomeSkipRest
	default: // Proceed
		return outcomeProceed
	}
}

// rerun steps down and re-runs the election, routing any error through HandleError.
func (h *Harness) rerun() error {
	if err := h.election.StepDown(); err != nil {
		if h.logic.HandleError(h.election, err) == Exit {
			return err
		}
	}
	if err := h.election.Run(); err != nil {
		if h.logic.HandleError(h.election, err) == Exit {
			return err
		}
	}
	if h.electionTerm > 0 {
		h.term = h.electionTerm
	}
	return nil
}

// sleep waits loop_delay, interruptible by the shutdown channel. It
// returns false if shutdown fired first.
func (h *Harness) sleep() bool {
	select {
	case <-h.stop:
		return false
	case <-time.After(h.loopDelay):
		return true
	}
}
