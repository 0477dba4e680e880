package program

import "fmt"

// Opcode identifies one instruction of a compiled program.
// Opcodes are organized into ranges by category for easy identification.
type Opcode int32

const (
	// ========================================================================
	// Misc (0x00-0x0F)
	// ========================================================================

	OpNop Opcode = 0x00 // No operation

	// ========================================================================
	// Content (0x10-0x1F)
	// ========================================================================

	OpText           Opcode = 0x10 // Append static text: op1=string
	OpComment        Opcode = 0x11 // Append comment: op1=string
	OpOpenElement    Opcode = 0x12 // Begin element: op1=string (tag name)
	OpFlushElement   Opcode = 0x13 // Insert the constructing element
	OpCloseElement   Opcode = 0x14 // Pop back to the parent insertion point
	OpStaticAttr     Opcode = 0x15 // Set attribute: op1=name string, op2=value string
	OpDynamicAttr    Opcode = 0x16 // Set reactive attribute: op1=name string, op2=expr
	OpAppendText     Opcode = 0x17 // Append reactive text, patched in place: op1=expr
	OpAppendCautious Opcode = 0x18 // Append reactive content of unknown shape: op1=expr

	// ========================================================================
	// Control flow (0x20-0x2F)
	// ========================================================================

	OpEnter      Opcode = 0x20 // Begin a tracked region: op1=begin pc, op2=end pc
	OpExit       Opcode = 0x21 // End a tracked region
	OpJump       Opcode = 0x22 // Unconditional jump: op1=target pc
	OpCondition  Opcode = 0x23 // Push conditional reference: op1=expr
	OpJumpUnless Opcode = 0x24 // Pop condition, jump if falsy: op1=target pc

	// ========================================================================
	// Keyed lists (0x30-0x3F)
	// ========================================================================

	OpEnterList Opcode = 0x30 // Iterate: op1=expr, op2=key string (-1 = by index), op3=block
	OpExitList  Opcode = 0x31 // End of a list region

	// ========================================================================
	// Managed units (0x40-0x4F)
	// ========================================================================

	OpComponent Opcode = 0x40 // Invoke a registered capability manager: op1=call
)

// OperandKind describes how a disassembler should render one operand word.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandString
	OperandExpr
	OperandPC
	OperandBlock
	OperandCall
	OperandKeyString // string index, or -1 for key-by-index
)

// OpcodeInfo provides metadata about each opcode for debugging and
// validation.
type OpcodeInfo struct {
	Name     string
	Operands [3]OperandKind
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop: {"NOP", [3]OperandKind{}},

	OpText:           {"TEXT", [3]OperandKind{OperandString}},
	OpComment:        {"COMMENT", [3]OperandKind{OperandString}},
	OpOpenElement:    {"OPEN_ELEMENT", [3]OperandKind{OperandString}},
	OpFlushElement:   {"FLUSH_ELEMENT", [3]OperandKind{}},
	OpCloseElement:   {"CLOSE_ELEMENT", [3]OperandKind{}},
	OpStaticAttr:     {"STATIC_ATTR", [3]OperandKind{OperandString, OperandString}},
	OpDynamicAttr:    {"DYNAMIC_ATTR", [3]OperandKind{OperandString, OperandExpr}},
	OpAppendText:     {"APPEND_TEXT", [3]OperandKind{OperandExpr}},
	OpAppendCautious: {"APPEND_CAUTIOUS", [3]OperandKind{OperandExpr}},

	OpEnter:      {"ENTER", [3]OperandKind{OperandPC, OperandPC}},
	OpExit:       {"EXIT", [3]OperandKind{}},
	OpJump:       {"JUMP", [3]OperandKind{OperandPC}},
	OpCondition:  {"CONDITION", [3]OperandKind{OperandExpr}},
	OpJumpUnless: {"JUMP_UNLESS", [3]OperandKind{OperandPC}},

	OpEnterList: {"ENTER_LIST", [3]OperandKind{OperandExpr, OperandKeyString, OperandBlock}},
	OpExitList:  {"EXIT_LIST", [3]OperandKind{}},

	OpComponent: {"COMPONENT", [3]OperandKind{OperandCall}},
}

// GetOpcodeInfo returns metadata for an opcode. Returns a placeholder entry
// for unrecognized opcodes.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", int32(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsJump returns true if this opcode transfers control.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJumpUnless
}

// AllOpcodes returns a slice of all defined opcodes. Useful for testing that
// every opcode has metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
