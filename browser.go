package main

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// element is the narrow surface of a located page element.
type element interface {
	click() error
	fill(text string) error
	text() string
	attribute(name string) string
	visible() bool
	enabled() bool
	screenshot() ([]byte, error)
}

// pageDriver is the browser surface the session controller drives. It is an
// interface so the login/check-in flows can be exercised against a fake page
// without a live browser.
type pageDriver interface {
	navigate(url string) error
	find(sel selector) (element, bool)
	findWait(sel selector, timeout time.Duration) (element, bool)
	findAll(sel selector) []element
	currentURL() string
	html() string
	cookies() []*http.Cookie
	userAgent() string
	screenshot() ([]byte, error)
}

// hideWebdriverJS masks the automation flag before any site script runs.
const hideWebdriverJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

const pageLoadTimeout = 30 * time.Second

// browserSession owns one Chromium instance bound to a single account's run.
// It must be closed on every exit path.
type browserSession struct {
	browser *rod.Browser
	page    *rod.Page
	log     *logger
}

// newBrowserSession launches a Chromium instance with the hardening flags the
// portal tolerates and opens a blank page.
func newBrowserSession(cfg appConfig, log *logger) (*browserSession, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("window-size", "1920,1080").
		Set("disable-blink-features", "AutomationControlled").
		Set("user-agent", cfg.UserAgent)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if _, err := page.EvalOnNewDocument(hideWebdriverJS); err != nil {
		log.warnf("install webdriver mask: %v", err)
	}

	return &browserSession{browser: browser, page: page, log: log}, nil
}

func (s *browserSession) close() {
	if err := s.browser.Close(); err != nil {
		s.log.warnf("close browser: %v", err)
		return
	}
	s.log.info("browser closed")
}

func (s *browserSession) navigate(url string) error {
	if err := s.page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := s.page.Timeout(pageLoadTimeout).WaitLoad(); err != nil {
		// the settle sleep after navigation covers slow loads
		s.log.warnf("wait load %s: %v", url, err)
	}
	return nil
}

// find performs an immediate lookup without polling.
func (s *browserSession) find(sel selector) (element, bool) {
	return lookup(s.page.Sleeper(rod.NotFoundSleeper), sel)
}

// findWait polls for the element up to timeout.
func (s *browserSession) findWait(sel selector, timeout time.Duration) (element, bool) {
	return lookup(s.page.Timeout(timeout), sel)
}

func lookup(p *rod.Page, sel selector) (element, bool) {
	var (
		el  *rod.Element
		err error
	)
	if sel.text != "" {
		el, err = p.ElementR(sel.css, sel.text)
	} else {
		el, err = p.Element(sel.css)
	}
	if err != nil {
		return nil, false
	}
	return &rodElement{el: el}, true
}

func (s *browserSession) findAll(sel selector) []element {
	els, err := s.page.Elements(sel.css)
	if err != nil {
		return nil
	}
	var re *regexp.Regexp
	if sel.text != "" {
		re, err = regexp.Compile(sel.text)
		if err != nil {
			return nil
		}
	}
	out := make([]element, 0, len(els))
	for _, el := range els {
		if re != nil {
			txt, err := el.Text()
			if err != nil || !re.MatchString(txt) {
				continue
			}
		}
		out = append(out, &rodElement{el: el})
	}
	return out
}

func (s *browserSession) currentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (s *browserSession) html() string {
	h, err := s.page.HTML()
	if err != nil {
		return ""
	}
	return h
}

func (s *browserSession) cookies() []*http.Cookie {
	cks, err := s.page.Cookies(nil)
	if err != nil {
		s.log.warnf("read cookies: %v", err)
		return nil
	}
	out := make([]*http.Cookie, 0, len(cks))
	for _, ck := range cks {
		out = append(out, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
	}
	return out
}

// userAgent reads the live user agent from the page so the API fallback sends
// exactly what the browser sent.
func (s *browserSession) userAgent() string {
	obj, err := s.page.Eval(`() => navigator.userAgent`)
	if err != nil {
		return ""
	}
	return obj.Value.Str()
}

func (s *browserSession) screenshot() ([]byte, error) {
	return s.page.Screenshot(true, nil)
}

// rodElement adapts a rod element to the element interface.
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

// fill replaces any existing value: typing over a select-all clears the field.
func (e *rodElement) fill(text string) error {
	_ = e.el.SelectAllText()
	return e.el.Input(text)
}

func (e *rodElement) text() string {
	t, err := e.el.Text()
	if err != nil {
		return ""
	}
	return t
}

func (e *rodElement) attribute(name string) string {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}

func (e *rodElement) visible() bool {
	v, err := e.el.Visible()
	return err == nil && v
}

func (e *rodElement) enabled() bool {
	v, err := e.el.Property("disabled")
	if err != nil {
		return true
	}
	return !v.Bool()
}

func (e *rodElement) screenshot() ([]byte, error) {
	return e.el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
}

// dumpScreenshot writes a timestamped page screenshot next to the binary for
// post-mortem inspection. Failure to write is logged, never fatal.
func dumpScreenshot(d pageDriver, log *logger, name string) {
	png, err := d.screenshot()
	if err != nil {
		log.warnf("capture screenshot: %v", err)
		return
	}
	file := fmt.Sprintf("%s_%d.png", name, time.Now().Unix())
	if err := os.WriteFile(file, png, 0o644); err != nil {
		log.warnf("write screenshot %s: %v", file, err)
		return
	}
	log.infof("screenshot saved: %s", file)
}
