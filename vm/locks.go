package vm

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"time"

	"ergo.services/dvm/gen"

	"github.com/sasha-s/go-deadlock"
)

// Every lock of a d-process is a deadlock.RWMutex. With detection disabled it
// behaves like sync.RWMutex. With detection enabled go-deadlock records the
// order locks are taken in and reports any pair taken in both orders, which is
// how a violation of the d-process lock order shows up.

var lockDetection sync.Mutex

func init() {
	deadlock.Opts.Disable = true
}

// lockOrderReport collects go-deadlock reports and forwards them to the log.
type lockOrderReport struct {
	sync.Mutex
	buf bytes.Buffer
	log gen.Log
}

func (r *lockOrderReport) Write(p []byte) (int, error) {
	r.Lock()
	defer r.Unlock()
	return r.buf.Write(p)
}

func (r *lockOrderReport) flush() {
	r.Lock()
	report := strings.TrimSpace(r.buf.String())
	r.buf.Reset()
	r.Unlock()
	if report == "" {
		return
	}
	r.log.Panic("lock order violation: %s", report)
}

// enableLockOrderDetection turns on go-deadlock detection. The options of
// go-deadlock are process wide, so the last VM enabling it wins.
func enableLockOrderDetection(log gen.Log, timeout time.Duration, onViolation func()) {
	lockDetection.Lock()
	defer lockDetection.Unlock()

	report := &lockOrderReport{log: log}
	deadlock.Opts.Disable = false
	deadlock.Opts.DisableLockOrderDetection = false
	deadlock.Opts.DeadlockTimeout = timeout
	deadlock.Opts.LogBuf = report
	deadlock.Opts.OnPotentialDeadlock = func() {
		report.flush()
		if onViolation != nil {
			onViolation()
		}
	}
}

// disableLockOrderDetection
func disableLockOrderDetection() {
	lockDetection.Lock()
	defer lockDetection.Unlock()
	deadlock.Opts.Disable = true
	deadlock.Opts.OnPotentialDeadlock = func() {}
	deadlock.Opts.LogBuf = os.Stderr
}
