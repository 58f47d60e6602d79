package matcher

import "github.com/viant/patchtx/cache"

// Option customises a Matcher.
type Option func(m *Matcher)

// WithWindow sets the fuzzy search window; negative values are treated as 0.
func WithWindow(window int) Option {
	return func(m *Matcher) {
		if window < 0 {
			window = 0
		}
		m.window = window
	}
}

// WithCache memoises results in the supplied cache.
func WithCache(c *cache.Cache) Option {
	return func(m *Matcher) { m.cache = c }
}

// WithLocators replaces the default exact-then-window strategy.
func WithLocators(locators ...Locator) Option {
	return func(m *Matcher) { m.locators = locators }
}
