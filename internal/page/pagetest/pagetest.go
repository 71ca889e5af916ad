// Package pagetest provides an in-memory page binding for tests.
package pagetest

import (
	"sort"
	"sync"

	"github.com/genricoloni/onair/internal/page"
)

// Element records everything projected onto it
type Element struct {
	Text     string
	TextSet  bool
	Attrs    map[string]string
	Style    map[string]string
	classes  map[string]bool
	Mutation int
}

func newElement() *Element {
	return &Element{
		Attrs:   make(map[string]string),
		Style:   make(map[string]string),
		classes: make(map[string]bool),
	}
}

func (e *Element) SetText(text string) {
	e.Text = text
	e.TextSet = true
	e.Mutation++
}

func (e *Element) SetAttr(name, value string) {
	e.Attrs[name] = value
	e.Mutation++
}

func (e *Element) SetStyle(property, value string) {
	e.Style[property] = value
	e.Mutation++
}

func (e *Element) AddClass(names ...string) {
	for _, n := range names {
		e.classes[n] = true
	}
	e.Mutation++
}

func (e *Element) RemoveClass(names ...string) {
	for _, n := range names {
		delete(e.classes, n)
	}
	e.Mutation++
}

// HasClass reports whether the class is currently set
func (e *Element) HasClass(name string) bool {
	return e.classes[name]
}

// Classes returns the sorted class list
func (e *Element) Classes() []string {
	out := make([]string, 0, len(e.classes))
	for c := range e.classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Page is a Binding over named in-memory elements
type Page struct {
	mu       sync.Mutex
	elements map[string][]*Element
	resolves map[string]int
}

// New creates an empty page. Names listed get one element each.
func New(names ...string) *Page {
	p := &Page{
		elements: make(map[string][]*Element),
		resolves: make(map[string]int),
	}
	for _, n := range names {
		p.Add(n)
	}
	return p
}

// Add registers another element under name
func (p *Page) Add(name string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := newElement()
	p.elements[name] = append(p.elements[name], el)
	return el
}

// Resolve implements page.Binding
func (p *Page) Resolve(name string) []page.Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolves[name]++
	els := p.elements[name]
	out := make([]page.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out
}

// Get returns the first element registered under name, or nil
func (p *Page) Get(name string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	if els := p.elements[name]; len(els) > 0 {
		return els[0]
	}
	return nil
}

// Calls reports how many times name was projected
func (p *Page) Calls(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolves[name]
}

// Mutations sums the mutations of every element
func (p *Page) Mutations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, els := range p.elements {
		for _, el := range els {
			total += el.Mutation
		}
	}
	return total
}
