package languages

import (
	"path/filepath"
	"strings"
)

type base struct {
	name   string
	config RuntimeConfig
}

func (b base) Name() string            { return b.name }
func (b base) Config() RuntimeConfig   { return b.config }
func (b base) DefaultFileName() string { return b.config.DefaultFile }

func (b base) vars(entry string) map[string]string {
	return map[string]string{
		"entry": entry,
		"class": strings.TrimSuffix(entry, filepath.Ext(entry)),
	}
}

func (b base) compile(entry string) (string, bool, error) {
	cmd, err := render(b.config.CompileTemplate, b.config.Extension, b.vars(entry))
	if err != nil {
		return "", false, err
	}
	return cmd, true, nil
}

func (b base) run(entry string) (string, error) {
	return render(b.config.RunTemplate, b.config.Extension, b.vars(entry))
}

func (b base) noCompile(string) (string, bool, error) { return "", false, nil }

// NativeCompiled builds every source into one optimized, statically linked
// binary and executes it directly.
type NativeCompiled struct{ base }

func NewNativeCompiled(name string, cfg RuntimeConfig) *NativeCompiled {
	return &NativeCompiled{base{name: name, config: cfg}}
}

func (h *NativeCompiled) Kind() Kind { return KindCompiledNative }

func (h *NativeCompiled) CompileCommand(entry string) (string, bool, error) {
	return h.compile(entry)
}

func (h *NativeCompiled) RunCommand(entry string) (string, error) { return h.run(entry) }

// BytecodeVM compiles every source to bytecode and starts the VM on the class
// named after the entry file.
type BytecodeVM struct{ base }

func NewBytecodeVM(name string, cfg RuntimeConfig) *BytecodeVM {
	return &BytecodeVM{base{name: name, config: cfg}}
}

func (h *BytecodeVM) Kind() Kind { return KindCompiledBytecode }

func (h *BytecodeVM) CompileCommand(entry string) (string, bool, error) {
	return h.compile(entry)
}

func (h *BytecodeVM) RunCommand(entry string) (string, error) { return h.run(entry) }

// Script hands the entry file to an interpreter.
type Script struct{ base }

func NewScript(name string, cfg RuntimeConfig) *Script {
	return &Script{base{name: name, config: cfg}}
}

func (h *Script) Kind() Kind { return KindInterpretedScript }

func (h *Script) CompileCommand(entry string) (string, bool, error) { return h.noCompile(entry) }

func (h *Script) RunCommand(entry string) (string, error) { return h.run(entry) }

// Runtime hands the entry file to a language runtime such as node.
type Runtime struct{ base }

func NewRuntime(name string, cfg RuntimeConfig) *Runtime {
	return &Runtime{base{name: name, config: cfg}}
}

func (h *Runtime) Kind() Kind { return KindInterpretedRuntime }

func (h *Runtime) CompileCommand(entry string) (string, bool, error) { return h.noCompile(entry) }

func (h *Runtime) RunCommand(entry string) (string, error) { return h.run(entry) }
