// Package clone provides the payload-isolation strategy used whenever a
// MethodPolicy calls for "copy" transport: an independent value is handed
// across the goroutine boundary instead of the original, preventing the
// caller and the server from racing on shared mutable state.
//
// This mirrors the pluggable Cloner interface from
// joeycumines-go-utilpkg/inprocgrpc's cloner.go, with two differences: the
// default implementation works on arbitrary Go values via reflection
// (inprocgrpc's payloads are always proto.Message), and there is no gRPC
// codec fallback, since this package has no gRPC dependency.
package clone

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// Cloner produces an independent deep copy of a value.
type Cloner interface {
	Clone(v any) (any, error)
}

// Func adapts a plain function to the Cloner interface.
type Func func(v any) (any, error)

func (f Func) Clone(v any) (any, error) { return f(v) }

// Reflect is the default Cloner: a recursive, reflection-based deep copy
// that handles pointers, slices, arrays, maps, structs (exported fields
// only) and interfaces. Unexported struct fields are left at their zero
// value in the copy, since reflect cannot set them without unsafe tricks;
// payloads crossing this boundary are expected to be plain data carriers
// (the echo/slow_echo style arguments in spec §8), not objects with
// meaningful private state.
type Reflect struct{}

func (Reflect) Clone(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return deepCloneValue(reflect.ValueOf(v)).Interface(), nil
}

func deepCloneValue(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return rv
		}
		out := reflect.New(rv.Type().Elem())
		out.Elem().Set(deepCloneValue(rv.Elem()))
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(deepCloneValue(rv.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(deepCloneValue(rv.Index(i)))
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(deepCloneValue(iter.Key()), deepCloneValue(iter.Value()))
		}
		return out
	case reflect.Struct:
		out := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Field(i)
			if !f.CanInterface() {
				continue
			}
			out.Field(i).Set(deepCloneValue(f))
		}
		return out
	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}
		out := reflect.New(rv.Type()).Elem()
		out.Set(deepCloneValue(rv.Elem()))
		return out
	default:
		return rv
	}
}

// Proto is an opt-in Cloner for payloads that are proto.Message, mirroring
// inprocgrpc's ProtoCloner. Configure it with WithCloner when the wrapped
// object's arguments/results are protobuf messages, to clone via
// proto.Clone instead of the generic reflection walk.
type Proto struct{}

func (Proto) Clone(v any) (any, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("clone: Proto cloner given non-proto.Message value of type %T", v)
	}
	return proto.Clone(msg), nil
}
