package program

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s ===\n", p.ID))
	sb.WriteString(fmt.Sprintf("; Reflow Program v%d\n", p.Version))
	sb.WriteString(fmt.Sprintf("; Symbols: %d slots", p.Symbols.Size))
	if len(p.Symbols.Named) > 0 {
		names := make([]string, 0, len(p.Symbols.Named))
		for name, slot := range p.Symbols.Named {
			names = append(names, fmt.Sprintf("%s=%d", name, slot))
		}
		sb.WriteString(" (" + strings.Join(names, ", ") + ")")
	}
	sb.WriteString("\n")

	if len(p.Strings) > 0 {
		sb.WriteString("; Strings:\n")
		for i, s := range p.Strings {
			display := s
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			display = strings.ReplaceAll(display, "\n", "\\n")
			sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", i, display))
		}
	}
	if len(p.Paths) > 0 {
		sb.WriteString("; Paths:\n")
		for i, segs := range p.Paths {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, strings.Join(segs, ".")))
		}
	}
	sb.WriteString("\n")

	for pc := int32(0); pc < p.End(); pc += WordsPerInstruction {
		op, op1, op2, op3 := p.At(pc)
		info := GetOpcodeInfo(op)
		sb.WriteString(fmt.Sprintf("%04d  %-16s", pc, info.Name))

		operands := [3]int32{op1, op2, op3}
		for i, kind := range info.Operands {
			if kind == OperandNone {
				continue
			}
			sb.WriteString(" " + p.describeOperand(kind, operands[i]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (p *Program) describeOperand(kind OperandKind, v int32) string {
	switch kind {
	case OperandString:
		if v >= 0 && int(v) < len(p.Strings) {
			return fmt.Sprintf("str:%d %q", v, p.Strings[v])
		}
	case OperandKeyString:
		if v == -1 {
			return "key:@index"
		}
		if int(v) < len(p.Strings) {
			return fmt.Sprintf("key:%q", p.Strings[v])
		}
	case OperandExpr:
		if v >= 0 && int(v) < len(p.Exprs) {
			e := p.Exprs[v]
			switch e.Kind {
			case ExprString:
				return fmt.Sprintf("expr:%d lit %q", v, p.Strings[e.Index])
			case ExprPath:
				return fmt.Sprintf("expr:%d slot %d path %s", v, e.Slot, strings.Join(p.Paths[e.Index], "."))
			case ExprChoice:
				c := p.Choices[e.Index]
				return fmt.Sprintf("expr:%d choose e%d ? e%d : e%d", v, c.Cond, c.Then, c.Else)
			}
		}
	case OperandPC:
		return fmt.Sprintf("@%04d", v)
	case OperandBlock:
		if v >= 0 && int(v) < len(p.Blocks) {
			blk := p.Blocks[v]
			return fmt.Sprintf("block:%d [%04d,%04d)", v, blk.Begin, blk.End)
		}
	case OperandCall:
		if v >= 0 && int(v) < len(p.Calls) {
			return fmt.Sprintf("call:%d %q", v, p.Strings[p.Calls[v].Kind])
		}
	}
	return fmt.Sprintf("?%d", v)
}
