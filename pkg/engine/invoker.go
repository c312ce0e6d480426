package engine

import (
	"context"
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/buttond/buttond/pkg/config"
	"github.com/buttond/buttond/pkg/hal"
	"github.com/buttond/buttond/pkg/notify"
)

// defaultPath is exported to the handler when the daemon itself has
// no PATH set.
const defaultPath = "/usr/sbin:/usr/bin:/sbin:/bin"

// invokeLocked runs the handler invocation sequence for the firing
// binding. It is entered and left with the worker lock held, but
// releases it while the handler child process is attached to the
// device. It returns false when the worker must be abandoned (reopen
// denied).
func (w *Worker) invokeLocked() bool {
	si := w.firing
	if si < 0 || si >= len(w.triggers) {
		// A forced trigger raced a rebind; nothing sane to run.
		w.logger.Errorf("firing binding %d out of range, clearing trigger", si)
		w.clearTriggerLocked()
		return true
	}
	b := w.triggers[si]
	log := w.logger.WithOption(b.option)
	log.Infof("trigger action %q with script %s", b.name, b.script)

	env := w.buildEnvLocked(&b)

	w.sink.Emit(notify.New(notify.KindBegin, w.info.Name))

	trigger := notify.New(notify.KindTrigger, w.info.Name)
	trigger.Env = env
	w.sink.Emit(trigger)

	// The handler needs exclusive hardware access: the handle must not
	// remain open while it runs.
	if w.handle != nil {
		if err := w.handle.Close(); err != nil {
			log.WithError(err).Warn("device close failed")
		}
		w.handle = nil
	}

	script := w.resolveScript(b.script)
	interval := w.interval

	w.mu.Unlock()

	if script != config.ScriptNone {
		// Give the hardware time to settle before the handler touches it.
		time.Sleep(interval)

		start := time.Now()
		res, err := w.runner.Run(context.Background(), script, env)
		switch {
		case err != nil:
			log.WithError(NewHandlerError("handler did not run", err).WithDevice(w.info.Name)).Error("handler failed")
			w.metrics.RecordHandlerRun(w.info.Name, "failed", time.Since(start))
		case res.Signal != "":
			log.Infof("handler %s terminated by signal %s", script, res.Signal)
			w.metrics.RecordHandlerRun(w.info.Name, "signaled", res.Duration)
		default:
			log.Infof("handler %s exited with status %d", script, res.ExitCode)
			w.metrics.RecordHandlerRun(w.info.Name, "ok", res.Duration)
		}
	} else {
		log.Debug("script is the none sentinel, not spawning a handler")
		w.metrics.RecordHandlerRun(w.info.Name, "skipped", 0)
	}

	// The trigger is handled; wake anything serialized on this device.
	w.mu.Lock()
	w.clearTriggerLocked()
	w.mu.Unlock()

	// Post-run settle delay before other processes are told the device
	// is usable again.
	time.Sleep(interval)
	w.sink.Emit(notify.New(notify.KindEnd, w.info.Name))

	w.mu.Lock()
	log.Debug("reopening device")
	h, err := w.backend.Open(w.info.Name)
	if err != nil {
		w.logger.WithError(err).Error("can't reopen device")
		if errors.Is(err, hal.ErrAccessDenied) {
			w.logger.Warn("abandoning polling")
			return false
		}
		// Left closed; the next trigger cycle attempts the reopen.
		return true
	}
	w.handle = h
	return true
}

func (w *Worker) clearTriggerLocked() {
	w.active = false
	w.firing = -1
	w.cond.Broadcast()
}

// buildEnvLocked assembles the handler environment: one entry per
// export binding, then PATH, PWD, USER and HOME (taken from the
// daemon's environment when set, computed otherwise), then the
// configured device and action variables. The handler receives exactly
// this list, never the daemon's own environment.
func (w *Worker) buildEnvLocked(b *triggerBinding) []string {
	env := make([]string, 0, len(w.exports)+6)

	for _, ex := range w.exports {
		// Reuse a value the sampling loop already read for this
		// option; the hardware may reset it on a second query.
		v, ok := w.cachedValueLocked(ex.option)
		if !ok {
			v = w.sampleLocked(ex.option)
		}
		env = append(env, ex.env+"="+v.String())
	}

	if path, ok := os.LookupEnv("PATH"); ok {
		env = append(env, "PATH="+path)
	} else {
		env = append(env, "PATH="+defaultPath)
	}

	if pwd, ok := os.LookupEnv("PWD"); ok {
		env = append(env, "PWD="+pwd)
	} else if wd, err := os.Getwd(); err == nil {
		env = append(env, "PWD="+wd)
	} else {
		w.logger.WithError(err).Warn("can't determine working directory for handler")
	}

	var account *user.User
	if name, ok := os.LookupEnv("USER"); ok {
		env = append(env, "USER="+name)
	} else if account = currentUser(w); account != nil {
		env = append(env, "USER="+account.Username)
	}

	if home, ok := os.LookupEnv("HOME"); ok {
		env = append(env, "HOME="+home)
	} else {
		if account == nil {
			account = currentUser(w)
		}
		if account != nil {
			env = append(env, "HOME="+account.HomeDir)
		}
	}

	if w.rules.Global.DeviceVar != "" {
		env = append(env, w.rules.Global.DeviceVar+"="+w.info.Name)
	}
	if w.rules.Global.ActionVar != "" {
		env = append(env, w.rules.Global.ActionVar+"="+b.name)
	}
	return env
}

func currentUser(w *Worker) *user.User {
	account, err := user.Current()
	if err != nil {
		w.logger.WithError(err).Warn("can't resolve the invoking account")
		return nil
	}
	return account
}

// resolveScript maps the script to an absolute path. Relative paths
// resolve against the configured script directory; the none sentinel
// passes through untouched.
func (w *Worker) resolveScript(script string) string {
	if script == config.ScriptNone || filepath.IsAbs(script) {
		return script
	}
	return filepath.Join(w.scriptDir, script)
}
