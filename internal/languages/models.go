package languages

import (
	"path/filepath"
)

// Kind names the execution strategy of a language.
type Kind string

const (
	KindCompiledNative     Kind = "compiled-native"
	KindCompiledBytecode   Kind = "compiled-bytecode-vm"
	KindInterpretedScript  Kind = "interpreted-script"
	KindInterpretedRuntime Kind = "interpreted-runtime"
)

// RuntimeConfig is the static description of one language runtime.
// Templates are tokenized shell-style; see render for the placeholders.
type RuntimeConfig struct {
	Image           string
	Extension       string
	DefaultFile     string
	CompileTemplate string
	RunTemplate     string
}

// Handler turns a workspace's entry file into shell commands.
type Handler interface {
	Name() string
	Kind() Kind
	Config() RuntimeConfig
	DefaultFileName() string
	// CompileCommand reports false when the language has no compile phase.
	CompileCommand(entry string) (string, bool, error)
	RunCommand(entry string) (string, error)
}

// ResolveEntry picks the entry file from the submitted names: the last name
// carrying the language extension, or the default name when none does.
// Extensions match case-sensitively, like the source glob. The
// default is returned even if no such file was written.
func ResolveEntry(h Handler, names []string) string {
	ext := h.Config().Extension
	entry := ""
	for _, name := range names {
		if filepath.Ext(name) == ext {
			entry = name
		}
	}
	if entry == "" {
		return h.DefaultFileName()
	}
	return entry
}
