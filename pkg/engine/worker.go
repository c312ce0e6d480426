package engine

import (
	"sync"
	"time"

	"github.com/buttond/buttond/pkg/config"
	"github.com/buttond/buttond/pkg/hal"
	"github.com/buttond/buttond/pkg/handler"
	"github.com/buttond/buttond/pkg/notify"
	"github.com/buttond/buttond/pkg/telemetry"
)

// Worker is the per-device polling state machine. It owns its device
// handle, bindings and sample cache; nothing else touches them except
// the trigger coordinator (under the worker lock) and the registry's
// stop path (after the worker goroutine has been joined).
//
// Cancellation contract: a stop request is honored only at the
// checkpoint before each sampling pass. In particular it is never
// honored while a freshly sampled value is being transferred into a
// binding's cache, nor while a handler child process is attached to
// the device.
type Worker struct {
	info      hal.DeviceInfo
	backend   hal.Backend
	rules     *config.Config
	scriptDir string

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	sink    notify.Sink
	runner  handler.Runner

	mu   sync.Mutex
	cond *sync.Cond

	// handle is exclusively owned by this worker, except during
	// handler execution when it is nil and no goroutine may use it
	// until reopened.
	handle      hal.Handle
	optionCount int
	triggers    []triggerBinding
	exports     []exportBinding

	// active marks an in-flight trigger; at most one per device.
	// firing is the index of the binding being handled, or -1.
	active bool
	firing int

	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newWorker(info hal.DeviceInfo, backend hal.Backend, rules *config.Config,
	scriptDir string, logger *telemetry.Logger, metrics *telemetry.Metrics,
	sink notify.Sink, runner handler.Runner) *Worker {

	w := &Worker{
		info:      info,
		backend:   backend,
		rules:     rules,
		scriptDir: scriptDir,
		logger:    logger.NewComponentLogger("worker").WithDevice(info.Name),
		metrics:   metrics,
		sink:      sink,
		runner:    runner,
		firing:    -1,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// requestStop asks the worker to terminate at its next checkpoint.
func (w *Worker) requestStop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// stopped reports whether a stop has been requested. Called only at
// the per-pass checkpoint.
func (w *Worker) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// run is the worker goroutine body: Initializing, then Sampling with
// an excursion into the handler invocation sequence per trigger, until
// Terminating via a stop request or a fatal device condition.
func (w *Worker) run() {
	defer close(w.done)
	w.metrics.WorkerStarted()
	defer w.metrics.WorkerStopped()

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initLocked() {
		return
	}

	w.logger.Debug("starting to poll")
	for {
		// Cancellation checkpoint: the only point a stop request is
		// honored. The rest of the pass runs to completion.
		if w.stopped() {
			w.logger.Debug("stop requested, terminating")
			return
		}
		if !w.pollPassLocked() {
			return
		}
		w.mu.Unlock()
		time.Sleep(w.interval)
		w.mu.Lock()
	}
}

// initLocked opens the device, sizes the binding storage from the
// option count, and binds the global rules followed by every matching
// device-specific section. It returns false to abandon the worker.
func (w *Worker) initLocked() bool {
	h, err := w.backend.Open(w.info.Name)
	if err != nil {
		w.logger.WithError(err).Error("can't open device")
		w.logger.Warn("abandoning polling")
		return false
	}
	w.handle = h

	count, err := h.OptionCount()
	if err != nil {
		w.logger.WithError(err).Error("can't get the device option count")
		return false
	}
	if count == 0 {
		w.logger.Info("no options for device, nothing to poll")
		return false
	}
	w.optionCount = count
	w.logger.Infof("found %d options", count)

	w.triggers = make([]triggerBinding, 0, count)
	w.exports = make([]exportBinding, 0, count)

	multiple := w.rules.Global.MultipleTriggers
	w.bindTriggerRules("global", w.rules.Global.Triggers, multiple)
	w.bindExportRules("global", w.rules.Global.Exports)

	for _, sec := range w.rules.Devices {
		if !w.sectionFilterMatches(sec) {
			continue
		}
		w.logger.Infof("binding %d trigger rules from device section %q", len(sec.Triggers), sec.Name)
		w.bindTriggerRules("device "+sec.Name, sec.Triggers, multiple)
	}

	w.interval = w.rules.Global.PollInterval()
	w.logger.Infof("bound %d trigger rules and %d export rules, polling every %s",
		len(w.triggers), len(w.exports), w.interval)
	return true
}

// pollPassLocked evaluates every trigger binding once, in declaration
// order, invoking the handler sequence inline for each detected or
// forced trigger. It returns false to abandon the worker.
func (w *Worker) pollPassLocked() bool {
	// A trigger forced by the coordinator while this worker slept is
	// handled before any binding is evaluated; bindings are never
	// evaluated while the device is active.
	if w.active && w.firing >= 0 {
		if !w.invokeLocked() {
			return false
		}
	}

	for si := 0; si < len(w.triggers); si++ {
		b := &w.triggers[si]
		cur := w.passSampleLocked(si)

		if b.matches(b.last, cur) {
			w.logger.WithOption(b.option).Infof("transition detected for action %q", b.name)
			w.metrics.RecordTransition(w.info.Name, b.name)
			w.active = true
			w.firing = si
			w.cond.Broadcast()
		}

		// The fresh sample becomes the binding's cache. Stop requests
		// are only honored at the pass checkpoint, so this ownership
		// transfer cannot be interrupted.
		b.last = cur

		if w.active && w.firing >= 0 {
			if !w.invokeLocked() {
				return false
			}
		}
	}
	return true
}

// passSampleLocked produces the pass's sample for the binding at si.
// If an earlier binding in the same pass already sampled the same
// option index, that value is reused: re-reading an option within one
// pass can itself reset pending hardware state and must be avoided.
func (w *Worker) passSampleLocked(si int) hal.Value {
	b := &w.triggers[si]
	for o := 0; o < si; o++ {
		if w.triggers[o].option == b.option {
			w.logger.WithOption(b.option).Debug("already sampled in this pass, reusing value")
			return w.triggers[o].last
		}
	}
	return w.sampleLocked(b.option)
}

// sampleLocked reads one option value. Hardware failures are logged
// and substituted with the zero value; the pass continues.
func (w *Worker) sampleLocked(option int) hal.Value {
	if w.handle == nil {
		w.logger.WithOption(option).Debug("device not open, substituting zero value")
		return hal.Value{}
	}
	v, err := w.handle.Read(option)
	if err != nil {
		w.logger.WithError(err).WithOption(option).Warn("can't read option value")
		w.metrics.RecordHardwareError(w.info.Name, "read")
		return hal.Value{}
	}
	w.metrics.RecordSample(w.info.Name)
	return v
}

// cachedValueLocked returns the cached sample of a trigger binding for
// the given option index, if one exists. Used when building the export
// environment, so an option queried by the sampling loop is not read a
// second time.
func (w *Worker) cachedValueLocked(option int) (hal.Value, bool) {
	for i := range w.triggers {
		if w.triggers[i].option == option {
			return w.triggers[i].last, true
		}
	}
	return hal.Value{}, false
}
