// Package command implements the string-addressable command registry:
// handlers keyed by verb, POSIX-like invocation parsing for "/"-prefixed
// user input, and the result encoding that turns a handler's return value
// into transport-neutral message parts.
package command

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/codexlab/codexcore/internal/chunk"
	"github.com/codexlab/codexcore/internal/config"
	"github.com/codexlab/codexcore/internal/embed"
)

// Kind distinguishes the three shapes a command result can take.
type Kind string

const (
	KindUnit Kind = "unit"
	KindText Kind = "text"
	KindJSON Kind = "json"
)

// Result is the sum type every handler returns: exactly one of no output,
// a plain text message, or a JSON value.
type Result struct {
	Kind Kind
	Text string
	JSON any
}

// Unit builds a Result carrying no output.
func Unit() Result { return Result{Kind: KindUnit} }

// TextResult builds a Result carrying a single plain-text message.
func TextResult(text string) Result { return Result{Kind: KindText, Text: text} }

// JSONResult builds a Result carrying a structured value.
func JSONResult(value any) Result { return Result{Kind: KindJSON, JSON: value} }

// MessagePart is one part of the assistant message a Result is rendered
// into: either "text/plain" or "application/json".
type MessagePart struct {
	MediaType string
	Text      string
}

// ToMessageParts applies the CommandResult -> Message encoding: Unit
// produces no parts, Text produces a single text/plain part, and JSON
// produces a pretty-printed text/plain part followed by the original
// application/json part.
func (r Result) ToMessageParts() ([]MessagePart, error) {
	switch r.Kind {
	case KindUnit:
		return nil, nil
	case KindText:
		return []MessagePart{{MediaType: "text/plain", Text: r.Text}}, nil
	case KindJSON:
		pretty, err := json.MarshalIndent(r.JSON, "", "  ")
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, err
		}
		return []MessagePart{
			{MediaType: "text/plain", Text: string(pretty)},
			{MediaType: "application/json", Text: string(raw)},
		}, nil
	default:
		return nil, fmt.Errorf("command: unknown result kind %q", r.Kind)
	}
}

// Descriptor is the optional human-readable summary paired with a
// registered command name.
type Descriptor struct {
	Name    string
	Summary string
}

func (d Descriptor) String() string {
	if d.Summary == "" {
		return d.Name
	}
	return fmt.Sprintf("%s - %s", d.Name, d.Summary)
}

// ConfidenceSetting is the mutable, concurrency-safe confidence floor that
// search-code honors and search.confidence mutates.
type ConfidenceSetting struct {
	mu    sync.RWMutex
	value float32
}

// NewConfidenceSetting constructs a ConfidenceSetting starting at initial.
func NewConfidenceSetting(initial float32) *ConfidenceSetting {
	return &ConfidenceSetting{value: initial}
}

func (c *ConfidenceSetting) Get() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

func (c *ConfidenceSetting) Set(v float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
}

// Context is the runtime state available to every command handler: the
// project and home directories, the embedder used for search-code and
// memory lookups, and whatever per-binary defaults a handler needs.
type Context struct {
	ProjectRoot string
	CodexHome   string
	WorkingDir  string
	BinaryName  string
	Embedder    embed.Embedder
	Confidence  *ConfidenceSetting
	Memory      *MemoryRuntime
	Submodules  *config.SubmoduleConfig
	Chunking    chunk.Options
}

// NewContext builds a Context with sensible defaults: a confidence floor
// of 0 (no filtering) and no memory runtime wired.
func NewContext(projectRoot, codexHome string, embedder embed.Embedder) *Context {
	return &Context{
		ProjectRoot: projectRoot,
		CodexHome:   codexHome,
		BinaryName:  "codexcore",
		Embedder:    embedder,
		Confidence:  NewConfidenceSetting(0),
	}
}

func (c *Context) WithWorkingDir(dir string) *Context {
	c.WorkingDir = dir
	return c
}

func (c *Context) WithBinaryName(name string) *Context {
	c.BinaryName = name
	return c
}

func (c *Context) WithMemory(runtime *MemoryRuntime) *Context {
	c.Memory = runtime
	return c
}
