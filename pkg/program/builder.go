package program

import (
	"fmt"
	"strings"
)

// UnresolvedLabelError reports a jump target that was never marked. This is
// a programmer error in statement compilation, surfaced with the offending
// program's identity.
type UnresolvedLabelError struct {
	ProgramID string
	Label     Label
}

func (e *UnresolvedLabelError) Error() string {
	return fmt.Sprintf("program %s: unresolved label %d", e.ProgramID, e.Label)
}

// Label is a forward-referenceable position in the instruction stream.
type Label int32

const unresolved int32 = -1

type fixup struct {
	pos   int32 // index into Instructions to patch
	label Label
}

// Builder assembles a flat instruction program. Labels resolve in two
// passes: emission records (position, label) pairs for forward references,
// and Finalize patches absolute offsets once every label is marked.
type Builder struct {
	prog *Program

	strIndex    map[string]int32
	pathIndex   map[string]int32
	exprIndex   map[Expr]int32
	choiceIndex map[Choice]int32

	labels []int32
	fixups []fixup

	// Lexical bindings for block parameters, innermost last.
	bindings []map[string]int32
	nextSlot int32

	errs []error
}

// NewBuilder returns a builder for a program with the given identity.
func NewBuilder(id string) *Builder {
	return &Builder{
		prog: &Program{
			ID:      id,
			Version: FormatVersion,
			Symbols: SymbolTable{Size: 1, Named: make(map[string]int32)},
		},
		strIndex:    make(map[string]int32),
		pathIndex:   make(map[string]int32),
		exprIndex:   make(map[Expr]int32),
		choiceIndex: make(map[Choice]int32),
		nextSlot:    1, // slot 0 is self
	}
}

// Compile assembles a full program from a statement tree.
func Compile(id string, stmts []Statement) (*Program, error) {
	b := NewBuilder(id)
	b.CompileStatements(stmts)
	return b.Finalize()
}

// PC returns the current program counter.
func (b *Builder) PC() int32 {
	return int32(len(b.prog.Instructions))
}

// NewLabel reserves an unmarked label.
func (b *Builder) NewLabel() Label {
	b.labels = append(b.labels, unresolved)
	return Label(len(b.labels) - 1)
}

// Mark pins a label to the current program counter.
func (b *Builder) Mark(l Label) {
	b.labels[l] = b.PC()
}

// AddString interns a string and returns its table index.
func (b *Builder) AddString(s string) int32 {
	if idx, ok := b.strIndex[s]; ok {
		return idx
	}
	idx := int32(len(b.prog.Strings))
	b.prog.Strings = append(b.prog.Strings, s)
	b.strIndex[s] = idx
	return idx
}

// AddPath interns a property path and returns its table index.
func (b *Builder) AddPath(segments []string) int32 {
	key := strings.Join(segments, ".")
	if idx, ok := b.pathIndex[key]; ok {
		return idx
	}
	idx := int32(len(b.prog.Paths))
	b.prog.Paths = append(b.prog.Paths, segments)
	b.pathIndex[key] = idx
	return idx
}

// AddExpr interns an expression record and returns its table index.
func (b *Builder) AddExpr(e Expr) int32 {
	if idx, ok := b.exprIndex[e]; ok {
		return idx
	}
	idx := int32(len(b.prog.Exprs))
	b.prog.Exprs = append(b.prog.Exprs, e)
	b.exprIndex[e] = idx
	return idx
}

// AddChoice interns a choice record and returns its table index.
func (b *Builder) AddChoice(c Choice) int32 {
	if idx, ok := b.choiceIndex[c]; ok {
		return idx
	}
	idx := int32(len(b.prog.Choices))
	b.prog.Choices = append(b.prog.Choices, c)
	b.choiceIndex[c] = idx
	return idx
}

func (b *Builder) emit(op Opcode, op1, op2, op3 int32) {
	b.prog.Instructions = append(b.prog.Instructions, int32(op), op1, op2, op3)
}

// emitLabeled emits an instruction whose labeled operands are patched at
// Finalize. A labeled operand is passed as a Label in the corresponding
// slot of labelsAt (others nil-labeled with -1).
func (b *Builder) emitLabeled(op Opcode, operands [3]int32, labelAt [3]Label, isLabel [3]bool) {
	base := b.PC()
	for i := 0; i < 3; i++ {
		if isLabel[i] {
			operands[i] = unresolved
			b.fixups = append(b.fixups, fixup{pos: base + 1 + int32(i), label: labelAt[i]})
		}
	}
	b.emit(op, operands[0], operands[1], operands[2])
}

// CompileStatements appends instructions for a statement list.
func (b *Builder) CompileStatements(stmts []Statement) {
	for _, s := range stmts {
		b.compileStatement(s)
	}
}

func (b *Builder) compileStatement(s Statement) {
	switch st := s.(type) {
	case *Text:
		b.emit(OpText, b.AddString(st.Content), 0, 0)

	case *Comment:
		b.emit(OpComment, b.AddString(st.Content), 0, 0)

	case *OpenElement:
		b.emit(OpOpenElement, b.AddString(st.Tag), 0, 0)

	case *StaticAttr:
		b.emit(OpStaticAttr, b.AddString(st.Name), b.AddString(st.Value), 0)

	case *DynamicAttr:
		b.emit(OpDynamicAttr, b.AddString(st.Name), b.compileExpr(st.Expr), 0)

	case *FlushElement:
		b.emit(OpFlushElement, 0, 0, 0)

	case *CloseElement:
		b.emit(OpCloseElement, 0, 0, 0)

	case *Append:
		// A literal folds to static text at build time; a path expression
		// specializes into the optimized in-place patch when the host
		// declared it text, otherwise into the guarded cautious form.
		if lit, ok := st.Expr.(*StringLiteral); ok {
			b.emit(OpText, b.AddString(lit.Value), 0, 0)
			return
		}
		op := OpAppendCautious
		if st.KnownText {
			op = OpAppendText
		}
		b.emit(op, b.compileExpr(st.Expr), 0, 0)

	case *If:
		b.compileIf(st)

	case *Each:
		b.compileEach(st)

	case *Component:
		b.compileComponent(st)

	default:
		b.errs = append(b.errs, fmt.Errorf("program %s: unsupported statement %T", b.prog.ID, s))
	}
}

func (b *Builder) compileIf(st *If) {
	begin := b.NewLabel()
	elseL := b.NewLabel()
	end := b.NewLabel()

	b.emitLabeled(OpEnter, [3]int32{}, [3]Label{begin, end}, [3]bool{true, true, false})
	b.Mark(begin)
	b.emit(OpCondition, b.compileExpr(st.Cond), 0, 0)
	b.emitLabeled(OpJumpUnless, [3]int32{}, [3]Label{elseL}, [3]bool{true})
	b.CompileStatements(st.Then)
	b.emitLabeled(OpJump, [3]int32{}, [3]Label{end}, [3]bool{true})
	b.Mark(elseL)
	b.CompileStatements(st.Else)
	b.Mark(end)
	b.emit(OpExit, 0, 0, 0)
}

func (b *Builder) compileEach(st *Each) {
	keyIdx := int32(-1)
	if st.KeyPath != "" {
		keyIdx = b.AddString(st.KeyPath)
	}

	// Reserve the block slot before compiling the body: nested lists append
	// to Blocks too, so the entry is written back by index afterwards.
	blockIdx := int32(len(b.prog.Blocks))
	b.prog.Blocks = append(b.prog.Blocks, BlockInfo{ValueSlot: -1, MemoSlot: -1})

	blk := BlockInfo{ValueSlot: -1, MemoSlot: -1}
	binding := make(map[string]int32)
	if st.ValueName != "" {
		blk.ValueSlot = b.allocSlot(st.ValueName)
		binding[st.ValueName] = blk.ValueSlot
	}
	if st.MemoName != "" {
		blk.MemoSlot = b.allocSlot(st.MemoName)
		binding[st.MemoName] = blk.MemoSlot
	}

	b.emit(OpEnterList, b.compileExpr(st.List), keyIdx, blockIdx)

	b.bindings = append(b.bindings, binding)
	blk.Begin = b.PC()
	b.CompileStatements(st.Body)
	blk.End = b.PC()
	b.bindings = b.bindings[:len(b.bindings)-1]
	b.prog.Blocks[blockIdx] = blk

	b.emit(OpExitList, 0, 0, 0)
}

func (b *Builder) compileComponent(st *Component) {
	call := Call{Kind: b.AddString(st.Kind)}
	for _, arg := range st.Args {
		call.ArgNames = append(call.ArgNames, b.AddString(arg.Name))
		call.ArgExprs = append(call.ArgExprs, b.compileExpr(arg.Expr))
	}
	callIdx := int32(len(b.prog.Calls))
	b.prog.Calls = append(b.prog.Calls, call)
	b.emit(OpComponent, callIdx, 0, 0)
}

func (b *Builder) compileExpr(e Expression) int32 {
	switch ex := e.(type) {
	case *StringLiteral:
		return b.AddExpr(Expr{Kind: ExprString, Index: b.AddString(ex.Value)})

	case *PathExpression:
		slot := SelfSlot
		segments := ex.Segments
		if len(segments) > 0 {
			if s, ok := b.lookupBinding(segments[0]); ok {
				slot = s
				segments = segments[1:]
			}
		}
		return b.AddExpr(Expr{Kind: ExprPath, Index: b.AddPath(segments), Slot: slot})

	case *IfExpression:
		c := Choice{
			Cond: b.compileExpr(ex.Cond),
			Then: b.compileExpr(ex.Then),
			Else: b.compileExpr(ex.Else),
		}
		return b.AddExpr(Expr{Kind: ExprChoice, Index: b.AddChoice(c)})

	default:
		b.errs = append(b.errs, fmt.Errorf("program %s: unsupported expression %T", b.prog.ID, e))
		return b.AddExpr(Expr{Kind: ExprString, Index: b.AddString("")})
	}
}

func (b *Builder) lookupBinding(name string) (int32, bool) {
	for i := len(b.bindings) - 1; i >= 0; i-- {
		if slot, ok := b.bindings[i][name]; ok {
			return slot, true
		}
	}
	return 0, false
}

func (b *Builder) allocSlot(name string) int32 {
	slot := b.nextSlot
	b.nextSlot++
	if b.nextSlot > b.prog.Symbols.Size {
		b.prog.Symbols.Size = b.nextSlot
	}
	b.prog.Symbols.Named[name] = slot
	return slot
}

// Finalize patches every recorded label reference and returns the program.
// An unresolved label or a collected compile error aborts the build.
func (b *Builder) Finalize() (*Program, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	for _, f := range b.fixups {
		target := b.labels[f.label]
		if target == unresolved {
			return nil, &UnresolvedLabelError{ProgramID: b.prog.ID, Label: f.label}
		}
		b.prog.Instructions[f.pos] = target
	}
	if err := b.prog.Validate(); err != nil {
		return nil, err
	}
	return b.prog, nil
}
