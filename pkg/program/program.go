// Package program compiles statement trees into flat instruction programs
// and defines the compiled program format.
//
// A compiled program is an immutable array of four-word instruction groups
// (opcode plus three operands) with interned side tables for strings,
// property paths, expressions, block ranges and manager calls. One program
// may be shared across many render instantiations; all per-instance state
// lives in the runtime, never in the program.
package program

import "fmt"

// FormatVersion is the current compiled-program format version. Increment
// when making incompatible changes.
const FormatVersion uint16 = 2

// WordsPerInstruction is the fixed instruction width: opcode plus three
// operand words. Values wider than one word are interned into side tables
// and referenced by index.
const WordsPerInstruction = 4

// SelfSlot is the scope slot holding the root value of a render.
const SelfSlot int32 = 0

// ExprKind discriminates entries of the expression table.
type ExprKind int32

const (
	// ExprPath reads a property path rooted at a scope slot.
	ExprPath ExprKind = 0

	// ExprString yields a string literal.
	ExprString ExprKind = 1

	// ExprChoice selects between two result expressions on a condition's
	// truth. Introduced in format version 2.
	ExprChoice ExprKind = 2
)

// Expr is one interned expression. For ExprPath, Slot is the scope slot the
// path starts from and Index points into the path table; for ExprString,
// Index points into the string table; for ExprChoice, Index points into the
// choice table.
type Expr struct {
	Kind  ExprKind `cbor:"1,keyasint"`
	Index int32    `cbor:"2,keyasint"`
	Slot  int32    `cbor:"3,keyasint"`
}

// BlockInfo records the instruction range and slot assignments of one list
// body. Begin/End are absolute program counters, patched during assembly.
type BlockInfo struct {
	Begin     int32 `cbor:"1,keyasint"`
	End       int32 `cbor:"2,keyasint"`
	ValueSlot int32 `cbor:"3,keyasint"`
	MemoSlot  int32 `cbor:"4,keyasint"`
}

// Choice is one interned inline conditional: expression table indices for
// the condition and the two results.
type Choice struct {
	Cond int32 `cbor:"1,keyasint"`
	Then int32 `cbor:"2,keyasint"`
	Else int32 `cbor:"3,keyasint"`
}

// Call records one managed-unit invocation: the registered manager kind and
// its named arguments as parallel name/expression index slices.
type Call struct {
	Kind     int32   `cbor:"1,keyasint"` // string table index
	ArgNames []int32 `cbor:"2,keyasint"` // string table indices
	ArgExprs []int32 `cbor:"3,keyasint"` // expression table indices
}

// SymbolTable fixes the scope layout of a program: the total slot count
// (self at slot 0) and the named slots introduced by block parameters.
type SymbolTable struct {
	Size  int32            `cbor:"1,keyasint"`
	Named map[string]int32 `cbor:"2,keyasint,omitempty"`
}

// Program is an immutable compiled template.
type Program struct {
	ID           string      `cbor:"1,keyasint"`
	Version      uint16      `cbor:"2,keyasint"`
	Instructions []int32     `cbor:"3,keyasint"`
	Strings      []string    `cbor:"4,keyasint,omitempty"`
	Paths        [][]string  `cbor:"5,keyasint,omitempty"`
	Exprs        []Expr      `cbor:"6,keyasint,omitempty"`
	Blocks       []BlockInfo `cbor:"7,keyasint,omitempty"`
	Calls        []Call      `cbor:"8,keyasint,omitempty"`
	Symbols      SymbolTable `cbor:"9,keyasint"`
	Choices      []Choice    `cbor:"10,keyasint,omitempty"`
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.Instructions) / WordsPerInstruction
}

// End returns the program counter one past the last instruction.
func (p *Program) End() int32 {
	return int32(len(p.Instructions))
}

// At decodes the instruction at program counter pc.
func (p *Program) At(pc int32) (op Opcode, op1, op2, op3 int32) {
	return Opcode(p.Instructions[pc]),
		p.Instructions[pc+1],
		p.Instructions[pc+2],
		p.Instructions[pc+3]
}

// String returns the interned string at index.
func (p *Program) String(index int32) string {
	return p.Strings[index]
}

// Path returns the interned property path at index.
func (p *Program) Path(index int32) []string {
	return p.Paths[index]
}

// Expr returns the interned expression at index.
func (p *Program) Expr(index int32) Expr {
	return p.Exprs[index]
}

// Block returns the list block info at index.
func (p *Program) Block(index int32) BlockInfo {
	return p.Blocks[index]
}

// Call returns the call record at index.
func (p *Program) CallAt(index int32) Call {
	return p.Calls[index]
}

// ChoiceAt returns the choice record at index.
func (p *Program) ChoiceAt(index int32) Choice {
	return p.Choices[index]
}

// Validate performs structural checks on a program: instruction stream
// alignment, known opcodes, and in-range side-table references. A malformed
// stream is a programmer error surfaced with the program identity.
func (p *Program) Validate() error {
	if len(p.Instructions)%WordsPerInstruction != 0 {
		return fmt.Errorf("program %s: instruction stream length %d not a multiple of %d",
			p.ID, len(p.Instructions), WordsPerInstruction)
	}
	for pc := int32(0); pc < p.End(); pc += WordsPerInstruction {
		op, op1, op2, op3 := p.At(pc)
		info, known := opcodeInfoTable[op]
		if !known {
			return fmt.Errorf("program %s: unknown opcode 0x%02x at pc %d", p.ID, int32(op), pc)
		}
		operands := [3]int32{op1, op2, op3}
		for i, kind := range info.Operands {
			v := operands[i]
			switch kind {
			case OperandString:
				if v < 0 || int(v) >= len(p.Strings) {
					return fmt.Errorf("program %s: %s at pc %d: string index %d out of range", p.ID, info.Name, pc, v)
				}
			case OperandKeyString:
				if v != -1 && (v < 0 || int(v) >= len(p.Strings)) {
					return fmt.Errorf("program %s: %s at pc %d: key string index %d out of range", p.ID, info.Name, pc, v)
				}
			case OperandExpr:
				if v < 0 || int(v) >= len(p.Exprs) {
					return fmt.Errorf("program %s: %s at pc %d: expr index %d out of range", p.ID, info.Name, pc, v)
				}
			case OperandPC:
				if v < 0 || v > p.End() || v%WordsPerInstruction != 0 {
					return fmt.Errorf("program %s: %s at pc %d: target %d out of range or misaligned", p.ID, info.Name, pc, v)
				}
			case OperandBlock:
				if v < 0 || int(v) >= len(p.Blocks) {
					return fmt.Errorf("program %s: %s at pc %d: block index %d out of range", p.ID, info.Name, pc, v)
				}
			case OperandCall:
				if v < 0 || int(v) >= len(p.Calls) {
					return fmt.Errorf("program %s: %s at pc %d: call index %d out of range", p.ID, info.Name, pc, v)
				}
			}
		}
	}
	for i, e := range p.Exprs {
		switch e.Kind {
		case ExprPath:
			if e.Index < 0 || int(e.Index) >= len(p.Paths) {
				return fmt.Errorf("program %s: expr %d: path index %d out of range", p.ID, i, e.Index)
			}
		case ExprString:
			if e.Index < 0 || int(e.Index) >= len(p.Strings) {
				return fmt.Errorf("program %s: expr %d: string index %d out of range", p.ID, i, e.Index)
			}
		case ExprChoice:
			if e.Index < 0 || int(e.Index) >= len(p.Choices) {
				return fmt.Errorf("program %s: expr %d: choice index %d out of range", p.ID, i, e.Index)
			}
		default:
			return fmt.Errorf("program %s: expr %d: unknown kind %d", p.ID, i, e.Kind)
		}
	}
	for i, c := range p.Choices {
		for _, idx := range [3]int32{c.Cond, c.Then, c.Else} {
			if idx < 0 || int(idx) >= len(p.Exprs) {
				return fmt.Errorf("program %s: choice %d: expr index %d out of range", p.ID, i, idx)
			}
		}
	}
	if p.Symbols.Size < 1 {
		return fmt.Errorf("program %s: symbol table must reserve at least the self slot", p.ID)
	}
	return nil
}
