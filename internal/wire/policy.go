// Package wire holds the vocabulary shared between the wrapper façade and
// the server actor: the method policy, the inbox/reply message types, and
// the reflection-based method dispatch contract. It has no dependency on
// the cellwrap package itself, which lets both cellwrap and internal/srv
// import it without a cycle.
package wire

// MethodPolicy is the frozen, per-method set of payload-transport settings.
// Two MethodPolicy values are equal (via ==) iff all five settings match.
type MethodPolicy struct {
	MoveArguments        bool
	MoveResults          bool
	MoveBlockArguments   bool
	MoveBlockResults     bool
	ExecuteBlocksInPlace bool
}

// Overrides captures per-method configuration, for either the wrapper-wide
// default policy or a single named method's override. A nil pointer means
// "inherit from the base policy's corresponding field".
type Overrides struct {
	MoveArguments        *bool
	MoveResults          *bool
	MoveBlockArguments   *bool
	MoveBlockResults     *bool
	ExecuteBlocksInPlace *bool
}

// NewMethodPolicy resolves o against base, field by field: interpret(f, b) =
// f if f is set, else b. Used both to layer a configure_method override
// onto the wrapper's already-resolved default policy, and (via
// DefaultPolicy) to build that default policy itself.
func NewMethodPolicy(base MethodPolicy, o Overrides) MethodPolicy {
	inherit := func(f *bool, b bool) bool {
		if f != nil {
			return *f
		}
		return b
	}
	return MethodPolicy{
		MoveArguments:        inherit(o.MoveArguments, base.MoveArguments),
		MoveResults:          inherit(o.MoveResults, base.MoveResults),
		MoveBlockArguments:   inherit(o.MoveBlockArguments, base.MoveBlockArguments),
		MoveBlockResults:     inherit(o.MoveBlockResults, base.MoveBlockResults),
		ExecuteBlocksInPlace: inherit(o.ExecuteBlocksInPlace, base.ExecuteBlocksInPlace),
	}
}

// DefaultPolicy builds the wrapper-wide default MethodPolicy (spec §4.1's
// six-field configuration): each move_* flag inherits from moveData unless
// overridden, and execute_blocks_in_place ignores moveData entirely,
// defaulting to false unless explicitly overridden.
func DefaultPolicy(moveData bool, o Overrides) MethodPolicy {
	base := MethodPolicy{
		MoveArguments:      moveData,
		MoveResults:        moveData,
		MoveBlockArguments: moveData,
		MoveBlockResults:   moveData,
	}
	return NewMethodPolicy(base, o)
}

// DefaultKey is the sentinel map key under which the wrapper-wide default
// MethodPolicy is stored. It is not a valid Go exported method name, so it
// never collides with a real per-method override.
const DefaultKey = ""
