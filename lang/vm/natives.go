package vm

import "time"

// defineNative installs a host-provided function as a global, in the same
// flat global table ordinary `var`/`fun` declarations populate. The VM never
// checks a native's arity; that is the native's own responsibility.
func (v *VM) defineNative(name string, fn NativeFn) {
	h := v.intern(name)
	v.globals.Put(h, &Native{Name: name, Fn: fn})
}

// defineStandardNatives installs the natives the spec's reference
// implementation provides. clock returns seconds since the Unix epoch as a
// Number, matching the native described in the spec's external interfaces
// section and in original_source/rustlox/src/native.rs.
func (v *VM) defineStandardNatives() {
	v.defineNative("clock", func(args []Value) (Value, error) {
		return Number(float64(time.Now().UnixNano()) / float64(time.Second)), nil
	})
}
