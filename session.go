package main

import (
	"context"
	"strings"
	"time"
)

// Settle pauses for the portal's client-side rendering, and bounds for
// element waits and captcha retries.
const (
	navSettle         = 3 * time.Second
	fieldSettle       = 500 * time.Millisecond
	submitSettle      = 3 * time.Second
	clickSettle       = 2 * time.Second
	captchaRefresh    = time.Second
	elementWait       = 15 * time.Second
	captchaMaxRetries = 3
)

// sessionController orchestrates login and check-in on one live browser
// session. All element access goes through the selector cascades; a missing
// element is a branch, not a fault.
type sessionController struct {
	driver pageDriver
	solver *captchaSolver
	cfg    appConfig
	log    *logger
	sleep  func(time.Duration)
}

func newSessionController(d pageDriver, solver *captchaSolver, cfg appConfig, log *logger) *sessionController {
	return &sessionController{driver: d, solver: solver, cfg: cfg, log: log, sleep: time.Sleep}
}

// login navigates to the signin page, fills the form, handles a captcha if
// one is present, submits, and judges the result heuristically. Any missing
// required element fails the login and leaves a diagnostic screenshot.
func (s *sessionController) login(ctx context.Context, cred credential) bool {
	s.log.infof("logging in as %s", cred.masked())

	if err := s.driver.navigate(s.cfg.loginURL()); err != nil {
		s.log.warnf("open login page: %v", err)
		return false
	}
	s.sleep(navSettle)

	user, ok := locateWait(s.driver, usernameSelectors, elementWait)
	if !ok {
		s.log.warn("username field not found")
		dumpScreenshot(s.driver, s.log, "login_error")
		return false
	}
	if err := user.fill(cred.Username); err != nil {
		s.log.warnf("fill username: %v", err)
		return false
	}
	s.sleep(fieldSettle)

	// by now the form is rendered, so no polling wait for the password
	pass, ok := locate(s.driver, passwordSelectors)
	if !ok {
		s.log.warn("password field not found")
		dumpScreenshot(s.driver, s.log, "login_error")
		return false
	}
	if err := pass.fill(cred.Password); err != nil {
		s.log.warnf("fill password: %v", err)
		return false
	}
	s.sleep(fieldSettle)

	s.handleCaptcha(ctx)

	btn, ok := locate(s.driver, loginButtonSelectors)
	if !ok {
		s.log.warn("login button not found")
		dumpScreenshot(s.driver, s.log, "login_error")
		return false
	}
	if err := btn.click(); err != nil {
		s.log.warnf("click login button: %v", err)
		return false
	}
	s.sleep(submitSettle)

	if s.loginSucceeded() {
		s.log.ok("login succeeded")
		return true
	}
	s.log.warn("login failed, check the credentials")
	dumpScreenshot(s.driver, s.log, "login_error")
	return false
}

// handleCaptcha fills the captcha input when a captcha image is present. It
// is best-effort and never reports failure upward: an unsolved captcha just
// lets the login fail at the success check. An unusable guess clicks the
// image, the usual refresh affordance, before retrying.
func (s *sessionController) handleCaptcha(ctx context.Context) {
	for attempt := 1; attempt <= captchaMaxRetries; attempt++ {
		img, ok := locate(s.driver, captchaImageSelectors)
		if !ok {
			s.log.info("no captcha on page")
			return
		}

		res := s.solver.recognize(ctx, captchaSourceOf(img))
		if !res.ok || res.text == "" {
			s.log.warnf("captcha unreadable (attempt %d/%d), refreshing", attempt, captchaMaxRetries)
			_ = img.click()
			s.sleep(captchaRefresh)
			continue
		}

		in, ok := locate(s.driver, captchaInputSelectors)
		if !ok {
			s.log.warn("captcha input not found, leaving the guess unused")
			return
		}
		if err := in.fill(res.text); err != nil {
			s.log.warnf("fill captcha: %v", err)
			return
		}
		s.log.okf("captcha filled: %s", res.text)
		return
	}
	s.log.warnf("captcha unsolved after %d attempts", captchaMaxRetries)
}

// captchaSourceOf prefers an on-element screenshot and falls back to the img
// src, which may be a data URI or a URL.
func captchaSourceOf(img element) captchaSource {
	if png, err := img.screenshot(); err == nil && len(png) > 0 {
		return captchaSource{raw: png}
	}
	return captchaSource{src: img.attribute("src")}
}

// loginIndicatorSelectors probe for markup only an authenticated page shows.
var loginIndicatorSelectors = selectorSet{
	{css: `div[class*='user']`},
	{css: `span[class*='username']`},
	{css: `a[href*='logout']`},
	{css: "div", text: "账户"},
}

// loginSucceeded judges the post-submit page state. This is a heuristic:
// still being on the signin path means failure, a logged-in indicator means
// success, and having left the signin path counts as a weak positive.
func (s *sessionController) loginSucceeded() bool {
	cur := s.driver.currentURL()
	if cur == "" || onLoginPage(cur) {
		return false
	}
	if _, ok := locate(s.driver, loginIndicatorSelectors); ok {
		return true
	}
	// no indicator element, but the URL left the signin path: weak positive
	s.log.info("no logged-in indicator found, judging by URL only")
	return true
}

func onLoginPage(url string) bool {
	return strings.Contains(url, "signin") || strings.Contains(url, "login")
}

// checkIn opens the account page and clicks the check-in control. An
// already-done label short-circuits as success without a click; no control at
// all falls back to the HTTP API.
func (s *sessionController) checkIn(ctx context.Context) bool {
	s.log.info("starting check-in")

	if err := s.driver.navigate(s.cfg.accountURL()); err != nil {
		s.log.warnf("open account page: %v", err)
		return false
	}
	s.sleep(navSettle)

	target, done := s.findCheckInControl()
	if done {
		s.log.ok("already checked in today")
		return true
	}
	if target == nil {
		s.log.info("no check-in control on page, trying the API")
		return s.checkInViaAPI(ctx)
	}

	if err := target.click(); err != nil {
		s.log.warnf("click check-in: %v", err)
		dumpScreenshot(s.driver, s.log, "checkin_error")
		return false
	}
	s.sleep(clickSettle)

	// the check-in itself may be captcha-gated
	s.handleCaptcha(ctx)
	s.sleep(clickSettle)

	if s.checkInSucceeded() {
		s.log.ok("check-in succeeded")
		return true
	}
	s.log.warn("check-in result unconfirmed")
	dumpScreenshot(s.driver, s.log, "checkin_error")
	return false
}

// findCheckInControl scans the candidate affordances in priority order,
// skipping anything invisible or disabled. done is true when a candidate's
// label says today's check-in already happened.
func (s *sessionController) findCheckInControl() (target element, done bool) {
	for _, sel := range checkInSelectors {
		for _, el := range s.driver.findAll(sel) {
			if !el.visible() || !el.enabled() {
				continue
			}
			if checkInDone(el.text()) {
				return nil, true
			}
			return el, false
		}
	}
	return nil, false
}

// checkInDone matches the label of a control that was already used today.
func checkInDone(text string) bool {
	return strings.Contains(text, "已签到") || strings.Contains(text, "已签")
}

// checkInResultSelectors probe for success feedback after the click.
var checkInResultSelectors = selectorSet{
	{css: "button", text: "签到成功"},
	{css: "div", text: "签到成功"},
	{css: "span", text: "获得"},
	{css: `[class*='success']`},
}

// checkInConfirmed scans rendered page content for success phrases, the last
// resort when no feedback element is found.
func checkInConfirmed(html string) bool {
	return strings.Contains(html, "已签到") || strings.Contains(html, "签到成功")
}

func (s *sessionController) checkInSucceeded() bool {
	if _, ok := locate(s.driver, checkInResultSelectors); ok {
		return true
	}
	return checkInConfirmed(s.driver.html())
}

// checkInViaAPI replays the check-in over HTTP with the browser's cookies and
// user agent. Speculative: the real API contract is unknown.
func (s *sessionController) checkInViaAPI(ctx context.Context) bool {
	client := newFallbackClient(s.cfg, s.driver.cookies(), s.driver.userAgent())
	return client.checkIn(ctx, s.log)
}
