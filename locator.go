package main

import "time"

// selector describes one way to locate an element: a CSS expression,
// optionally narrowed to elements whose visible text matches a regex.
type selector struct {
	css  string
	text string
}

// selectorSet is an ordered list of alternative selectors for one logical
// target. Order encodes priority; the first match wins. The site's markup is
// not stable, so every lookup goes through one of these cascades instead of a
// single selector.
type selectorSet []selector

var (
	usernameSelectors = selectorSet{
		{css: `input[placeholder='邮箱/用户名/手机号']`},
		{css: `input[name='username']`},
		{css: `input[type='text']`},
		{css: `input[class*='username']`},
	}

	passwordSelectors = selectorSet{
		{css: `input[placeholder='密码']`},
		{css: `input[name='password']`},
		{css: `input[type='password']`},
	}

	loginButtonSelectors = selectorSet{
		{css: "button", text: `登\s*录`},
		{css: `button[type='submit']`},
		{css: `input[type='submit']`},
		{css: `button[class*='login']`},
	}

	captchaImageSelectors = selectorSet{
		{css: `img[class*='captcha']`},
		{css: `img[src*='captcha']`},
		{css: `img[alt*='验证码']`},
		{css: `img[id*='captcha']`},
	}

	captchaInputSelectors = selectorSet{
		{css: `input[placeholder='验证码']`},
		{css: `input[name*='captcha']`},
		{css: `input[id*='captcha']`},
	}

	// checkInSelectors lists the affordances the check-in control has been
	// seen as: labelled buttons and links first, generic class matches last.
	checkInSelectors = selectorSet{
		{css: "button", text: "签到"},
		{css: "a", text: "签到"},
		{css: "div", text: "签到"},
		{css: "span", text: "签到"},
		{css: `button[class*='sign']`},
		{css: `div[class*='sign']`},
	}
)

// locate tries each selector in priority order with an immediate lookup and
// returns the first match. Not finding anything is a normal outcome, not an
// error: callers decide whether the missing element fails the step or just
// skips it.
func locate(d pageDriver, set selectorSet) (element, bool) {
	for _, sel := range set {
		if el, ok := d.find(sel); ok {
			return el, true
		}
	}
	return nil, false
}

// locateWait is locate with a polling wait per selector, for elements that
// may still be rendering after navigation.
func locateWait(d pageDriver, set selectorSet, timeout time.Duration) (element, bool) {
	for _, sel := range set {
		if el, ok := d.findWait(sel, timeout); ok {
			return el, true
		}
	}
	return nil, false
}
