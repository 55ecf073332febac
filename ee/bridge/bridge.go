// Package bridge is the registry through which native modules are exposed
// to the host application. A module declares a name, the methods it exports
// and a set of constants; the host discovers modules by name at startup.
package bridge

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrModuleNotFound  = errors.New("module not found")
	ErrMethodNotFound  = errors.New("method not found")
	ErrDuplicateModule = errors.New("module already registered")
)

// ModuleMethod is a method a module makes callable from the host.
type ModuleMethod struct {
	Name   string
	Invoke func(args ...interface{}) (interface{}, error)
}

// Module is implemented by every native module.
type Module interface {
	ModuleName() string
	MethodsToExport() []ModuleMethod
	ConstantsToExport() map[string]interface{}
	// SetBridge hands the module the bridge it was registered with.
	SetBridge(b *Bridge)
}

// ModuleDescription is what the host sees of a module.
type ModuleDescription struct {
	Name      string                 `json:"name"`
	Methods   []string               `json:"methods"`
	Constants map[string]interface{} `json:"constants"`
}

type Bridge struct {
	mu      sync.RWMutex
	modules map[string]Module
}

func New() *Bridge {
	return &Bridge{
		modules: make(map[string]Module),
	}
}

func (b *Bridge) RegisterModule(m Module) error {
	name := m.ModuleName()

	b.mu.Lock()
	if _, exists := b.modules[name]; exists {
		b.mu.Unlock()
		return fmt.Errorf("registering %s: %w", name, ErrDuplicateModule)
	}
	b.modules[name] = m
	b.mu.Unlock()

	m.SetBridge(b)
	return nil
}

func (b *Bridge) Module(name string) (Module, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.modules[name]
	return m, ok
}

// Modules returns the registered modules sorted by name.
func (b *Bridge) Modules() []Module {
	b.mu.RLock()
	defer b.mu.RUnlock()

	modules := make([]Module, 0, len(b.modules))
	for _, m := range b.modules {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].ModuleName() < modules[j].ModuleName()
	})
	return modules
}

func (b *Bridge) Describe() []ModuleDescription {
	modules := b.Modules()
	descriptions := make([]ModuleDescription, 0, len(modules))
	for _, m := range modules {
		methods := m.MethodsToExport()
		names := make([]string, 0, len(methods))
		for _, method := range methods {
			names = append(names, method.Name)
		}

		constants := m.ConstantsToExport()
		if constants == nil {
			constants = map[string]interface{}{}
		}

		descriptions = append(descriptions, ModuleDescription{
			Name:      m.ModuleName(),
			Methods:   names,
			Constants: constants,
		})
	}
	return descriptions
}

// Invoke calls an exported method of a registered module.
func (b *Bridge) Invoke(moduleName, methodName string, args ...interface{}) (interface{}, error) {
	m, ok := b.Module(moduleName)
	if !ok {
		return nil, fmt.Errorf("invoking %s.%s: %w", moduleName, methodName, ErrModuleNotFound)
	}

	for _, method := range m.MethodsToExport() {
		if method.Name == methodName && method.Invoke != nil {
			return method.Invoke(args...)
		}
	}

	return nil, fmt.Errorf("invoking %s.%s: %w", moduleName, methodName, ErrMethodNotFound)
}
