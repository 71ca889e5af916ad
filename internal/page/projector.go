// Package page projects values onto named page elements.
//
// Elements are discovered through a Binding by name. Absent elements are not
// an error: every operation is a no-op when nothing matches.
package page

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Element is one opaque handle returned by a Binding
type Element interface {
	SetText(text string)
	SetAttr(name, value string)
	SetStyle(property, value string)
	AddClass(names ...string)
	RemoveClass(names ...string)
}

// Binding resolves a target name to the elements currently tagged with it.
// A Binding that also implements sync.Locker is held for the whole of one
// Projector.Set call.
type Binding interface {
	Resolve(name string) []Element
}

// Update describes the effects of one Set call. Every field is optional.
type Update struct {
	// Text replaces the element content; nil leaves it untouched,
	// a pointer to "" empties it
	Text          *string
	Attrs         map[string]string
	Style         map[string]string
	AddClasses    []string
	RemoveClasses []string
}

// Text returns an Update that only sets the content
func Text(s string) Update {
	return Update{Text: &s}
}

// WithText returns a copy of u that also sets the content
func (u Update) WithText(s string) Update {
	u.Text = &s
	return u
}

// Projector applies Updates through a Binding
type Projector struct {
	logger  *zap.Logger
	binding Binding
}

// NewProjector creates a projector over the given binding
func NewProjector(logger *zap.Logger, binding Binding) *Projector {
	return &Projector{logger: logger, binding: binding}
}

// Set applies u to every element named target
func (p *Projector) Set(target string, u Update) {
	if target == "" {
		return
	}
	if l, ok := p.binding.(sync.Locker); ok {
		l.Lock()
		defer l.Unlock()
	}

	elements := p.binding.Resolve(target)
	if len(elements) == 0 {
		return
	}

	for _, el := range elements {
		if el == nil {
			continue
		}
		if u.Text != nil {
			el.SetText(*u.Text)
		}
		for _, k := range sortedKeys(u.Attrs) {
			el.SetAttr(k, u.Attrs[k])
		}
		for _, k := range sortedKeys(u.Style) {
			el.SetStyle(k, u.Style[k])
		}
		if len(u.RemoveClasses) > 0 {
			el.RemoveClass(u.RemoveClasses...)
		}
		if len(u.AddClasses) > 0 {
			el.AddClass(u.AddClasses...)
		}
	}

	p.logger.Debug("Projected", zap.String("target", target), zap.Int("elements", len(elements)))
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
