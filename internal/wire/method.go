package wire

import "reflect"

// RespondToMethod is the reserved method name used for capability queries
// (spec §4.2's `:respond_to?`). It cannot collide with a real exported Go
// method name, which must start with an upper-case letter.
const RespondToMethod = "\x00respond_to?"

// ResolveMethod looks up name as an exported method on object and checks
// that its signature matches the canonical Method contract. It reports
// whether the method was found and usable.
func ResolveMethod(object any, name string) (Method, bool) {
	if object == nil {
		return nil, false
	}
	v := reflect.ValueOf(object)
	m := v.MethodByName(name)
	if !m.IsValid() {
		return nil, false
	}
	fn, ok := m.Interface().(func([]any, map[string]any, BlockFunc) (any, error))
	if !ok {
		return nil, false
	}
	return Method(fn), true
}

// RespondsTo reports whether name resolves to a dispatchable method on
// object. includeAll is accepted for API parity with spec §4.2's
// `respond_to?(name, include_all)`; reflect.Value.MethodByName already
// walks promoted (embedded) methods, so includeAll has no further effect.
func RespondsTo(object any, name string, includeAll bool) bool {
	_, ok := ResolveMethod(object, name)
	return ok
}
