package languages

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

type Language struct {
	Handler Handler
	Aliases []string
}

type Registry struct {
	mu        sync.RWMutex
	languages map[string]Language
	aliases   map[string]string
}

func NewRegistry() *Registry {
	r := &Registry{
		languages: make(map[string]Language),
		aliases:   make(map[string]string),
	}
	r.registerDefaults()
	return r
}

// Register adds a handler under its name and the given aliases. Lookups are
// case-insensitive.
func (r *Registry) Register(h Handler, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(h.Name())
	r.languages[name] = Language{Handler: h, Aliases: aliases}
	r.aliases[name] = name
	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = name
	}
}

func (r *Registry) Resolve(tag string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.aliases[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}
	return r.languages[name].Handler, nil
}

// SetImage overrides the container image of a registered language.
func (r *Registry) SetImage(tag, image string) error {
	h, err := r.Resolve(tag)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(h.Name())
	lang := r.languages[name]
	lang.Handler = withImage(h, image)
	r.languages[name] = lang
	return nil
}

func (r *Registry) List() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]Language, 0, len(r.languages))
	for _, l := range r.languages {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool {
		return langs[i].Handler.Name() < langs[j].Handler.Name()
	})
	return langs
}

func withImage(h Handler, image string) Handler {
	cfg := h.Config()
	cfg.Image = image
	switch h.Kind() {
	case KindCompiledNative:
		return NewNativeCompiled(h.Name(), cfg)
	case KindCompiledBytecode:
		return NewBytecodeVM(h.Name(), cfg)
	case KindInterpretedScript:
		return NewScript(h.Name(), cfg)
	default:
		return NewRuntime(h.Name(), cfg)
	}
}

func (r *Registry) registerDefaults() {
	r.Register(NewNativeCompiled("cpp", RuntimeConfig{
		Image:           "gcc:13",
		Extension:       ".cpp",
		DefaultFile:     "main.cpp",
		CompileTemplate: "g++ -std=c++17 -O2 -static -o main {sources}",
		RunTemplate:     "./main",
	}), "c++")

	r.Register(NewBytecodeVM("java", RuntimeConfig{
		Image:           "eclipse-temurin:21-jdk",
		Extension:       ".java",
		DefaultFile:     "Main.java",
		CompileTemplate: "javac -encoding UTF-8 -d . {sources}",
		RunTemplate:     "java -cp . {class}",
	}))

	r.Register(NewScript("python", RuntimeConfig{
		Image:       "python:3.11-slim",
		Extension:   ".py",
		DefaultFile: "main.py",
		RunTemplate: "python3 {entry}",
	}))

	r.Register(NewRuntime("javascript", RuntimeConfig{
		Image:       "node:20-slim",
		Extension:   ".js",
		DefaultFile: "main.js",
		RunTemplate: "node {entry}",
	}), "node", "js")
}
