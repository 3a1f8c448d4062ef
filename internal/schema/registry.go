package schema

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	registryMu sync.RWMutex
	// variantRegistry maps an interface type to the record types that may be
	// chosen for fields of that interface type.
	variantRegistry = map[reflect.Type][]reflect.Type{}
	// parserRegistry maps names referenced by `parser:"..."` tags to custom
	// conversion functions.
	parserRegistry = map[string]func(string) (any, error){}
)

// RegisterVariants declares the closed set of record types selectable for
// fields declared with the given interface type. Registering the same
// interface again replaces the previous set.
func RegisterVariants(iface reflect.Type, variants []reflect.Type) error {
	if iface == nil || iface.Kind() != reflect.Interface {
		return fmt.Errorf("variants must be registered on an interface type, got %v", iface)
	}
	if len(variants) == 0 {
		return fmt.Errorf("no variants registered for %s", iface)
	}
	for _, vt := range variants {
		if vt.Kind() != reflect.Struct {
			return fmt.Errorf("variant %s of %s is not a struct type", vt, iface)
		}
		if !vt.Implements(iface) {
			return fmt.Errorf("variant %s does not implement %s", vt, iface)
		}
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	variantRegistry[iface] = append([]reflect.Type(nil), variants...)
	return nil
}

// VariantsFor returns the registered alternatives for an interface type.
func VariantsFor(iface reflect.Type) ([]reflect.Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	vts, ok := variantRegistry[iface]
	return vts, ok
}

// RegisterParser installs a named custom conversion function for use from
// `parser:"name"` tags.
func RegisterParser(name string, fn func(string) (any, error)) error {
	if name == "" || fn == nil {
		return fmt.Errorf("parser registration needs a name and a function")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	parserRegistry[name] = fn
	return nil
}

// ParserFor returns the registered custom parser with the given name.
func ParserFor(name string) (func(string) (any, error), bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := parserRegistry[name]
	return fn, ok
}
