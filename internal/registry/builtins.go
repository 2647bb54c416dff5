package registry

import "sync"

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the builtin function table. The returned registry is
// shared and must not be modified.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = mustBuiltins()
	})
	return defaultRegistry
}

type builtin struct {
	name             string
	op               Op
	min, max         int
	accepts, returns int
	since            string
}

var builtins = []builtin{
	// stack primitives, also produced by the flatten pass
	{"push", OpPush, 1, 64, 0, 0, ""},
	{"pushv", OpPushVector, 1, 4, 0, 0, ""},
	{"pop", OpPop, 0, 0, 0, 0, ""},
	{"peek", OpPeek, 0, 1, 0, 0, ""},

	{"abs", OpAbs, 1, 1, 0, 0, ""},
	{"min", OpMin, 2, 8, 0, 0, ""},
	{"max", OpMax, 2, 8, 0, 0, ""},
	{"sqrt", OpSqrt, 1, 1, 0, 0, ""},
	{"rsqrt", OpRsqrt, 1, 1, 0, 0, ""},
	{"sin", OpSin, 1, 1, 0, 0, ""},
	{"cos", OpCos, 1, 1, 0, 0, ""},
	{"tan", OpTan, 1, 1, 0, 0, ""},
	{"atan", OpAtan, 1, 1, 0, 0, ""},
	{"atan2", OpAtan2, 2, 2, 0, 0, "1.1.0"},
	{"pow", OpPow, 2, 2, 0, 0, ""},
	{"exp", OpExp, 1, 1, 0, 0, ""},
	{"log2", OpLog2, 1, 1, 0, 0, ""},
	{"ln", OpLn, 1, 1, 0, 0, ""},
	{"lerp", OpLerp, 3, 3, 0, 0, ""},
	{"clamp", OpClamp, 3, 3, 0, 0, "1.2.0"},
	{"select", OpSelect, 3, 3, 0, 0, ""},
	{"fma", OpFma, 3, 3, 0, 0, "1.1.0"},
	{"length", OpLength, 1, 1, 0, 1, ""},
	{"normalize", OpNormalize, 1, 1, 0, 0, ""},
	{"dot", OpDot, 2, 2, 0, 1, "1.1.0"},
	{"seed", OpSeed, 1, 1, 1, 1, ""},
	{"random", OpRandom, 0, 2, 1, 1, ""},
	{"debug", OpDebug, 1, 1, 0, 0, ""},
}

func mustBuiltins() *Registry {
	r := New()
	for _, b := range builtins {
		if err := r.Register(b.name, b.op, b.min, b.max, b.accepts, b.returns, b.since); err != nil {
			panic(err)
		}
	}
	return r
}
