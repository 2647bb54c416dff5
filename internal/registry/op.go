package registry

import (
	"fmt"
	"math"
)

// Op is a bytecode operation code as understood by the interpreter. The
// compiler core only needs the codes to tag functions and constants; byte
// level encoding happens in the emitter.
type Op byte

const (
	OpNop Op = iota

	// stack
	OpPush
	OpPushVector
	OpPop
	OpPeek
	OpYield

	// control
	OpJump
	OpJumpBack
	OpJz
	OpJnz

	// arithmetic and logic
	OpAdd
	OpSubstract
	OpMultiply
	OpDivide
	OpAnd
	OpOr
	OpNot
	OpXor
	OpGreater
	OpGreaterEquals
	OpSmaller
	OpSmallerEquals
	OpEquals
	OpNotEquals

	// math functions
	OpAbs
	OpMin
	OpMax
	OpSqrt
	OpRsqrt
	OpSin
	OpCos
	OpTan
	OpAtan
	OpAtan2
	OpPow
	OpExp
	OpLog2
	OpLn
	OpLerp
	OpClamp
	OpSelect
	OpFma
	OpLength
	OpNormalize
	OpDot
	OpSeed
	OpRandom
	OpDebug

	// constant values, encoded without a data segment slot
	OpValue0
	OpValue1
	OpValueHalf
	OpValue10
	OpValue100
	OpValuePi
	OpValueEpsilon
	OpValueInf
	OpValueNaN
)

var opNames = map[Op]string{
	OpNop:           "nop",
	OpPush:          "push",
	OpPushVector:    "pushv",
	OpPop:           "pop",
	OpPeek:          "peek",
	OpYield:         "yield",
	OpJump:          "jump",
	OpJumpBack:      "jump_back",
	OpJz:            "jz",
	OpJnz:           "jnz",
	OpAdd:           "add",
	OpSubstract:     "substract",
	OpMultiply:      "multiply",
	OpDivide:        "divide",
	OpAnd:           "and",
	OpOr:            "or",
	OpNot:           "not",
	OpXor:           "xor",
	OpGreater:       "greater",
	OpGreaterEquals: "greater_equals",
	OpSmaller:       "smaller",
	OpSmallerEquals: "smaller_equals",
	OpEquals:        "equals",
	OpNotEquals:     "not_equals",
	OpAbs:           "abs",
	OpMin:           "min",
	OpMax:           "max",
	OpSqrt:          "sqrt",
	OpRsqrt:         "rsqrt",
	OpSin:           "sin",
	OpCos:           "cos",
	OpTan:           "tan",
	OpAtan:          "atan",
	OpAtan2:         "atan2",
	OpPow:           "pow",
	OpExp:           "exp",
	OpLog2:          "log2",
	OpLn:            "ln",
	OpLerp:          "lerp",
	OpClamp:         "clamp",
	OpSelect:        "select",
	OpFma:           "fma",
	OpLength:        "length",
	OpNormalize:     "normalize",
	OpDot:           "dot",
	OpSeed:          "seed",
	OpRandom:        "random",
	OpDebug:         "debug",
	OpValue0:        "value_0",
	OpValue1:        "value_1",
	OpValueHalf:     "value_0_5",
	OpValue10:       "value_10",
	OpValue100:      "value_100",
	OpValuePi:       "pi",
	OpValueEpsilon:  "epsilon",
	OpValueInf:      "inf",
	OpValueNaN:      "nan",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", byte(op))
}

// Constant describes a value that has a dedicated opcode.
type Constant struct {
	Op    Op
	Name  string // identifier accepted in scripts, empty for numeric-only constants
	Value float64
}

var constants = []Constant{
	{Op: OpValue0, Value: 0},
	{Op: OpValue1, Value: 1},
	{Op: OpValueHalf, Value: 0.5},
	{Op: OpValue10, Value: 10},
	{Op: OpValue100, Value: 100},
	{Op: OpValuePi, Name: "pi", Value: math.Pi},
	{Op: OpValueEpsilon, Name: "epsilon", Value: 1.1920929e-07},
	{Op: OpValueInf, Name: "inf", Value: math.Inf(1)},
	{Op: OpValueNaN, Name: "nan", Value: math.NaN()},
}

// ConstantByValue returns the constant opcode encoding v, comparing at the
// interpreter's single precision.
func ConstantByValue(v float64) (Op, bool) {
	if math.IsNaN(v) {
		return OpNop, false
	}
	f := float32(v)
	for _, c := range constants {
		if c.Name == "" && float32(c.Value) == f {
			return c.Op, true
		}
	}
	return OpNop, false
}

// ConstantByName returns the constant opcode for a named constant such as pi.
func ConstantByName(name string) (Op, bool) {
	for _, c := range constants {
		if c.Name != "" && equalFold(c.Name, name) {
			return c.Op, true
		}
	}
	return OpNop, false
}

// ConstantValue returns the value encoded by a constant opcode.
func ConstantValue(op Op) (float64, bool) {
	for _, c := range constants {
		if c.Op == op {
			return c.Value, true
		}
	}
	return 0, false
}

// IsConstantOp reports whether op encodes a constant value.
func IsConstantOp(op Op) bool {
	return op >= OpValue0 && op <= OpValueNaN
}
