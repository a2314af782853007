// Package template renders the capability-summary instructions returned
// from initialize (or a dedicated instructions resource): a short text
// blob listing tools and capability markers, built on Go's own
// text/template plus three predicate helpers the template language needs
// and stdlib doesn't provide on its own.
package template

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
)

// Data is the variable bag a capability-summary template renders against.
type Data struct {
	ServerName    string
	ServerVersion string
	Tools         []string
	Markers       []string
	Builtins      []string
	Priority      map[string]int
	Vars          map[string]interface{}
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// sharedFuncMap holds the three capability predicates templates can call.
// Each takes
// the relevant slice as an explicit argument (e.g. `{{if has_tool .Tools
// "echo"}}`) rather than closing over one Data value, since a cached
// *template.Template is reused across many Render calls with different
// data and text/template binds FuncMap once at parse time — text/template's
// variable substitution and range loops cover the rest of the template
// language already.
var sharedFuncMap = template.FuncMap{
	"has_tool":    func(tools []string, name string) bool { return contains(tools, name) },
	"has_marker":  func(markers []string, name string) bool { return contains(markers, name) },
	"has_builtin": func(builtins []string, name string) bool { return contains(builtins, name) },
}

// Renderer compiles and caches templates by a caller-chosen key so a fixed
// set of instruction templates only pays the parse cost once.
type Renderer struct {
	mu    sync.RWMutex
	cache map[string]*template.Template
}

// NewRenderer creates an empty Renderer.
func NewRenderer() *Renderer {
	return &Renderer{cache: make(map[string]*template.Template)}
}

// Render compiles src (if not already cached under key) and executes it
// against data.
func (r *Renderer) Render(key, src string, data Data) (string, error) {
	tmpl, err := r.compiled(key, src)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template: execute %q: %w", key, err)
	}
	return buf.String(), nil
}

func (r *Renderer) compiled(key, src string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tmpl, ok := r.cache[key]; ok {
		return tmpl, nil
	}

	parsed, err := template.New(key).Funcs(sharedFuncMap).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("template: parse %q: %w", key, err)
	}
	r.cache[key] = parsed
	return parsed, nil
}

// Forget drops a cached template, e.g. when its source is reloaded.
func (r *Renderer) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, key)
}
