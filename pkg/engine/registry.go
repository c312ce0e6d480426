package engine

import (
	"context"
	"sync"

	"github.com/buttond/buttond/pkg/config"
	"github.com/buttond/buttond/pkg/hal"
	"github.com/buttond/buttond/pkg/handler"
	"github.com/buttond/buttond/pkg/notify"
	"github.com/buttond/buttond/pkg/telemetry"
)

// Options configures a Registry. Zero values get safe defaults: a
// no-op logger, disabled metrics, a discarding sink and a real process
// runner.
type Options struct {
	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Sink    notify.Sink
	Runner  handler.Runner

	// ScriptDir is the directory relative handler paths resolve
	// against, typically the config file's directory.
	ScriptDir string
}

// Registry owns the set of polling workers and the device list. It is
// the single owner of worker lifecycle: start-all, stop-all, reload
// and the external force-trigger entry point all pass through it.
//
// Locking discipline: the registry lock is always acquired before any
// worker lock and released after it; no two worker locks are ever held
// at once.
type Registry struct {
	backend   hal.Backend
	logger    *telemetry.Logger
	metrics   *telemetry.Metrics
	sink      notify.Sink
	runner    handler.Runner
	scriptDir string

	mu   sync.Mutex
	cond *sync.Cond

	cfg     *config.Config
	devices []hal.DeviceInfo
	workers []*Worker
}

// NewRegistry creates a registry over the given backend and rule tree.
func NewRegistry(backend hal.Backend, cfg *config.Config, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = telemetry.NopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics, _ = telemetry.NewMetrics(telemetry.MetricsConfig{})
	}
	if opts.Sink == nil {
		opts.Sink = notify.Discard
	}
	if opts.Runner == nil {
		opts.Runner = &handler.ExecRunner{}
	}
	r := &Registry{
		backend:   backend,
		logger:    opts.Logger.NewComponentLogger("engine"),
		metrics:   opts.Metrics,
		sink:      opts.Sink,
		runner:    opts.Runner,
		scriptDir: opts.ScriptDir,
		cfg:       cfg,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// RefreshDevices re-enumerates the locally attached devices and wakes
// anyone blocked waiting for devices to exist.
func (r *Registry) RefreshDevices(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("scanning for local devices")
	devices, err := r.backend.Devices(ctx)
	if err != nil {
		r.devices = nil
		return NewHardwareError("can't enumerate devices", err)
	}
	r.devices = devices
	for _, d := range devices {
		r.logger.Infof("found device: %s %s %s %s", d.Name, d.Vendor, d.Model, d.Type)
	}
	r.cond.Broadcast()
	return nil
}

// Devices returns a snapshot of the last enumeration.
func (r *Registry) Devices() []hal.DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]hal.DeviceInfo, len(r.devices))
	copy(out, r.devices)
	return out
}

// StartAll spawns one polling worker per enumerated device. Running
// workers are stopped first.
func (r *Registry) StartAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startAllLocked()
}

func (r *Registry) startAllLocked() {
	if r.workers != nil {
		r.stopAllLocked()
	}
	if len(r.devices) == 0 {
		r.logger.Error("no devices, not starting any polling worker")
		return
	}
	r.workers = make([]*Worker, len(r.devices))
	for i, info := range r.devices {
		w := newWorker(info, r.backend, r.cfg, r.scriptDir,
			r.logger, r.metrics, r.sink, r.runner)
		r.workers[i] = w
		go w.run()
		r.logger.Debugf("worker started for device %s", info.Name)
	}
	r.cond.Broadcast()
}

// StopAll stops every worker: it first waits, per device, for any
// in-flight trigger to finish (a worker is never torn down with a
// handler child attached to its device), then requests cooperative
// cancellation, joins the goroutine and releases its resources.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopAllLocked()
}

func (r *Registry) stopAllLocked() {
	if r.workers == nil {
		r.logger.Debug("nothing to stop")
		return
	}
	for _, w := range r.workers {
		w.mu.Lock()
		for w.active {
			r.logger.WithDevice(w.info.Name).Debug("an action is active, waiting")
			w.cond.Wait()
		}
		w.mu.Unlock()
		w.requestStop()
	}
	for _, w := range r.workers {
		<-w.done

		w.mu.Lock()
		if w.handle != nil {
			if err := w.handle.Close(); err != nil {
				r.logger.WithDevice(w.info.Name).WithError(err).Warn("device close failed")
			}
			w.handle = nil
		}
		w.triggers = nil
		w.exports = nil
		w.mu.Unlock()
		r.logger.WithDevice(w.info.Name).Debug("worker stopped")
	}
	r.workers = nil
	r.cond.Broadcast()
}

// Reload swaps in a new rule tree: stop-all, replace, start-all.
func (r *Registry) Reload(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("reloading configuration")
	r.stopAllLocked()
	r.cfg = cfg
	r.startAllLocked()
	r.metrics.RecordReload()
}

// Trigger forces the handler invocation sequence for a device's bound
// action, exactly as if the sampling loop had detected the transition.
// It blocks, without timeout, while no workers exist and while the
// addressed device is already active, serializing with any in-flight
// trigger. Bounds failures return ErrNoDevices, ErrNoSuchDevice or
// ErrNoSuchAction and set no flags.
func (r *Registry) Trigger(device, action int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.devices) == 0 {
		r.logger.Warn("trigger request but no devices at all")
		return ErrNoDevices
	}
	if device < 0 || device >= len(r.devices) {
		r.logger.Warnf("trigger request for unknown device number %d", device)
		return ErrNoSuchDevice
	}

	for r.workers == nil {
		r.logger.Warn("no polling at the moment, waiting")
		r.cond.Wait()
	}

	w := r.workers[device]
	w.mu.Lock()
	defer w.mu.Unlock()

	if action < 0 || action >= len(w.triggers) {
		r.logger.Warnf("trigger request for unknown action %d of device number %d", action, device)
		return ErrNoSuchAction
	}

	for w.active {
		r.logger.WithDevice(w.info.Name).Debug("an action is active, waiting")
		w.cond.Wait()
	}

	w.active = true
	w.firing = action
	w.cond.Broadcast()
	return nil
}
