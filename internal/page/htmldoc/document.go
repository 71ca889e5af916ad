// Package htmldoc binds the page projector to a parsed HTML document.
package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/genricoloni/onair/internal/page"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Document is an HTML tree whose elements are addressed by class name.
// Lock/Unlock serialize projection; Render takes the read lock.
type Document struct {
	logger *zap.Logger
	mu     sync.RWMutex
	root   *html.Node
}

// Parse builds a Document from HTML source
func Parse(logger *zap.Logger, r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	return &Document{logger: logger, root: root}, nil
}

// Load reads the template at path, or renders the built-in template for the
// given station classes when path is empty
func Load(logger *zap.Logger, path string, stations []StationView) (*Document, error) {
	if path == "" {
		var buf bytes.Buffer
		if err := defaultTemplate.Execute(&buf, stations); err != nil {
			return nil, fmt.Errorf("failed to render built-in template: %w", err)
		}
		logger.Info("Using built-in page template", zap.Int("stations", len(stations)))
		return Parse(logger, &buf)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page template: %w", err)
	}
	defer f.Close()

	logger.Info("Page template loaded", zap.String("path", path))
	return Parse(logger, f)
}

// Lock implements sync.Locker
func (d *Document) Lock() { d.mu.Lock() }

// Unlock implements sync.Locker
func (d *Document) Unlock() { d.mu.Unlock() }

// Resolve returns every element carrying the class name
func (d *Document) Resolve(name string) []page.Element {
	var out []page.Element
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasToken(getAttr(n, "class"), name) {
			out = append(out, &element{node: n})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return out
}

// Render writes the current document
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

type element struct {
	node *html.Node
}

func (e *element) SetText(text string) {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	if text != "" {
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func (e *element) SetAttr(name, value string) {
	setAttr(e.node, name, value)
}

func (e *element) SetStyle(property, value string) {
	props := parseStyle(getAttr(e.node, "style"))
	props[strings.ToLower(property)] = value
	setAttr(e.node, "style", formatStyle(props))
}

func (e *element) AddClass(names ...string) {
	classes := strings.Fields(getAttr(e.node, "class"))
	for _, n := range names {
		if !contains(classes, n) {
			classes = append(classes, n)
		}
	}
	setAttr(e.node, "class", strings.Join(classes, " "))
}

func (e *element) RemoveClass(names ...string) {
	classes := strings.Fields(getAttr(e.node, "class"))
	kept := classes[:0]
	for _, c := range classes {
		if !contains(names, c) {
			kept = append(kept, c)
		}
	}
	setAttr(e.node, "class", strings.Join(kept, " "))
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasToken(list, token string) bool {
	return contains(strings.Fields(list), token)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func parseStyle(s string) map[string]string {
	props := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			props[k] = strings.TrimSpace(v)
		}
	}
	return props
}

func formatStyle(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(props[k])
		b.WriteByte(';')
	}
	return b.String()
}
