package main

import (
	"context"
	"fmt"
	"time"
)

// runResult records the outcome of one account's run. Never mutated after it
// is appended to the report.
type runResult struct {
	Username string
	Success  bool
	Err      string
}

// batchReport aggregates per-account results in processing order.
type batchReport struct {
	Results []runResult
}

func (r *batchReport) successCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

func (r *batchReport) failCount() int {
	return len(r.Results) - r.successCount()
}

// render writes the per-account summary through the logger.
func (r *batchReport) render(log *logger) {
	for _, res := range r.Results {
		cred := credential{Username: res.Username}
		switch {
		case res.Success:
			log.okf("%s: success", cred.masked())
		case res.Err != "":
			log.errf("%s: failed (%s)", cred.masked(), res.Err)
		default:
			log.errf("%s: failed", cred.masked())
		}
	}
	log.infof("done: success=%d fail=%d", r.successCount(), r.failCount())
}

// runner drives the full login → check-in flow for each account in order,
// one browser session at a time.
type runner struct {
	cfg        appConfig
	classifier captchaClassifier
	log        *logger

	// injection points for tests
	runOne func(ctx context.Context, cred credential) (bool, error)
	sleep  func(time.Duration)
}

func newRunner(cfg appConfig, classifier captchaClassifier, log *logger) *runner {
	r := &runner{cfg: cfg, classifier: classifier, log: log, sleep: time.Sleep}
	r.runOne = r.runSession
	return r
}

// runSession acquires a fresh browser session for one account, logs in and
// checks in, and tears the browser down on every exit path.
func (r *runner) runSession(ctx context.Context, cred credential) (bool, error) {
	log := r.log.account(cred.masked())

	session, err := newBrowserSession(r.cfg, log)
	if err != nil {
		return false, fmt.Errorf("start browser: %w", err)
	}
	defer session.close()

	ctrl := newSessionController(session, newCaptchaSolver(r.classifier, log), r.cfg, log)
	if !ctrl.login(ctx, cred) {
		return false, nil
	}
	return ctrl.checkIn(ctx), nil
}

// runGuarded converts a panic inside one account's run into a failed result
// so the rest of the batch still runs. Session teardown deferred inside
// runSession executes during the unwind.
func (r *runner) runGuarded(ctx context.Context, cred credential) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = fmt.Errorf("unexpected fault: %v", rec)
		}
	}()
	return r.runOne(ctx, cred)
}

// runAll processes the accounts in the order given, with a cool-down between
// accounts (not after the last) to avoid hammering the portal.
func (r *runner) runAll(ctx context.Context, creds []credential) *batchReport {
	report := &batchReport{}
	for i, cred := range creds {
		r.log.infof("account %d/%d: %s", i+1, len(creds), cred.masked())

		ok, err := r.runGuarded(ctx, cred)
		res := runResult{Username: cred.Username, Success: ok}
		if err != nil {
			res.Err = err.Error()
			r.log.warnf("account %s failed: %v", cred.masked(), err)
		}
		report.Results = append(report.Results, res)

		if i < len(creds)-1 {
			r.log.infof("cooling down %s before the next account", r.cfg.cooldown())
			r.sleep(r.cfg.cooldown())
		}
	}
	return report
}
