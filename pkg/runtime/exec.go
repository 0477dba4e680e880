package runtime

import (
	"fmt"

	"github.com/chazu/reflow/pkg/dom"
	"github.com/chazu/reflow/pkg/list"
	"github.com/chazu/reflow/pkg/program"
	"github.com/chazu/reflow/pkg/reference"
)

// execFrame is one open region during execution, collecting the child
// updaters produced inside it.
type execFrame struct {
	block    *blockUpdater
	list     *listUpdater
	children []updater
}

// ExecVM executes an instruction range once, building output through a
// builder and leaving an updater behind for everything reactive it
// encountered. Initial renders, conditional re-executions and list item
// renders all run through the same machine; only the range and scope
// differ.
type ExecVM struct {
	env     *Environment
	prog    *program.Program
	builder *dom.Builder

	scope   *Scope
	frames  []*execFrame
	element *dom.Element
	cond    bool
}

func newExec(env *Environment, prog *program.Program, b *dom.Builder) *ExecVM {
	return &ExecVM{env: env, prog: prog, builder: b}
}

func (vm *ExecVM) frame() *execFrame {
	return vm.frames[len(vm.frames)-1]
}

func (vm *ExecVM) pushUpdater(u updater) {
	if len(vm.frames) == 0 {
		return
	}
	f := vm.frame()
	f.children = append(f.children, u)
}

// resolve materializes an interned expression against the current scope.
func (vm *ExecVM) resolve(exprIdx int32) reference.Reference {
	e := vm.prog.Expr(exprIdx)
	switch e.Kind {
	case program.ExprString:
		return reference.NewConst(vm.prog.String(e.Index))
	case program.ExprChoice:
		c := vm.prog.ChoiceAt(e.Index)
		return reference.NewChoice(vm.env.Clock,
			vm.resolve(c.Cond), vm.resolve(c.Then), vm.resolve(c.Else), vm.env.Truthy)
	default:
		base := vm.scope.Get(e.Slot)
		return reference.Path(vm.env.Clock, base, vm.prog.Path(e.Index))
	}
}

// execBlock executes [begin, end) under scope as one tracked region and
// returns its updater.
func (vm *ExecVM) execBlock(scope *Scope, begin, end int32) (*blockUpdater, error) {
	u := &blockUpdater{
		env:   vm.env,
		prog:  vm.prog,
		scope: scope,
		begin: begin,
		end:   end,
	}
	u.bounds = vm.builder.PushBlock()
	vm.frames = append(vm.frames, &execFrame{block: u})

	saved := vm.scope
	vm.scope = scope
	err := vm.runRange(begin, end)
	vm.scope = saved

	frame := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.builder.PopBlock()
	if err != nil {
		return nil, err
	}
	u.children = frame.children
	u.finalize()
	vm.pushUpdater(u)
	return u, nil
}

// runRange is the dispatch loop over [begin, end).
func (vm *ExecVM) runRange(begin, end int32) error {
	for pc := begin; pc < end; {
		op, op1, op2, op3 := vm.prog.At(pc)
		next := pc + program.WordsPerInstruction

		switch op {
		case program.OpNop:

		case program.OpText:
			vm.builder.AppendText(vm.prog.String(op1))

		case program.OpComment:
			vm.builder.AppendComment(vm.prog.String(op1))

		case program.OpOpenElement:
			vm.element = vm.builder.OpenElement(vm.prog.String(op1))

		case program.OpFlushElement:
			vm.builder.FlushElement()

		case program.OpCloseElement:
			vm.builder.CloseElement()

		case program.OpStaticAttr:
			vm.builder.SetAttribute(vm.prog.String(op1), vm.prog.String(op2))

		case program.OpDynamicAttr:
			ref := vm.resolve(op2)
			name := vm.prog.String(op1)
			val := contentString(ref.Value())
			vm.builder.SetAttribute(name, val)
			vm.pushUpdater(&attrUpdater{
				el:   vm.element,
				name: name,
				ref:  ref,
				last: val,
				rev:  ref.Tag().Value(),
			})

		case program.OpAppendText, program.OpAppendCautious:
			ref := vm.resolve(op1)
			val := contentString(ref.Value())
			node := vm.builder.AppendText(val)
			vm.pushUpdater(&textUpdater{
				node: node,
				ref:  ref,
				last: val,
				rev:  ref.Tag().Value(),
			})

		case program.OpEnter:
			u := &blockUpdater{
				env:   vm.env,
				prog:  vm.prog,
				scope: vm.scope,
				begin: op1,
				end:   op2,
			}
			u.bounds = vm.builder.PushBlock()
			vm.frames = append(vm.frames, &execFrame{block: u})

		case program.OpExit:
			frame := vm.frames[len(vm.frames)-1]
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.builder.PopBlock()
			u := frame.block
			u.children = frame.children
			u.finalize()
			vm.pushUpdater(u)

		case program.OpCondition:
			cond := reference.NewConditional(vm.env.Clock, vm.resolve(op1), vm.env.Truthy)
			vm.cond = cond.Bool()
			if f := vm.frame(); f.block != nil {
				f.block.cond = cond
				f.block.lastTruth = vm.cond
			}

		case program.OpJump:
			pc = op1
			continue

		case program.OpJumpUnless:
			if !vm.cond {
				pc = op1
				continue
			}

		case program.OpEnterList:
			lu, err := vm.enterList(op1, op2, op3)
			if err != nil {
				return err
			}
			vm.frames = append(vm.frames, &execFrame{list: lu})
			pc = lu.blk.End
			continue

		case program.OpExitList:
			frame := vm.frames[len(vm.frames)-1]
			vm.frames = vm.frames[:len(vm.frames)-1]
			vm.builder.PopBlock()
			lu := frame.list
			if lu.artifacts.Len() == 0 {
				lu.anchor = lu.bounds.FirstNode().(*dom.Comment)
			}
			vm.pushUpdater(lu)

		case program.OpComponent:
			if err := vm.invokeManager(op1); err != nil {
				return err
			}

		default:
			return fmt.Errorf("runtime: program %s: unexpected opcode %s at pc %d",
				vm.prog.ID, op, pc)
		}

		pc = next
	}
	return nil
}

// enterList evaluates the list source and renders the initial population
// through the reconciler, so duplicate keys fail the same way on first
// render as on update.
func (vm *ExecVM) enterList(exprIdx, keyIdx, blockIdx int32) (*listUpdater, error) {
	keyFn := list.KeyFunc(list.KeyByIndex)
	if keyIdx >= 0 {
		keyFn = list.KeyByProperty(vm.prog.String(keyIdx))
	}

	lu := &listUpdater{
		env:       vm.env,
		prog:      vm.prog,
		scope:     vm.scope,
		blk:       vm.prog.Block(blockIdx),
		listRef:   vm.resolve(exprIdx),
		keyFn:     keyFn,
		artifacts: list.NewArtifacts(vm.env.Clock),
		items:     make(map[string]*blockUpdater),
	}
	lu.bounds = vm.builder.PushBlock()

	tgt := &buildTarget{vm: vm, lu: lu}
	iter := list.IteratorFor(lu.listRef.Value(), keyFn)
	if err := list.Sync(lu.artifacts, iter, tgt); err != nil {
		return nil, err
	}
	if tgt.err != nil {
		return nil, tgt.err
	}
	lu.listRev = lu.listRef.Tag().Value()
	lu.finalize()
	return lu, nil
}

func (vm *ExecVM) invokeManager(callIdx int32) error {
	call := vm.prog.CallAt(callIdx)
	kind := vm.prog.String(call.Kind)
	mgr, err := vm.env.Manager(kind)
	if err != nil {
		return err
	}

	args := make(map[string]reference.Reference, len(call.ArgNames))
	for i := range call.ArgNames {
		args[vm.prog.String(call.ArgNames[i])] = vm.resolve(call.ArgExprs[i])
	}

	instance, err := mgr.Create(vm.env, kind, args, vm.builder)
	if err != nil {
		return fmt.Errorf("runtime: manager %q: %w", kind, err)
	}
	vm.pushUpdater(newComponentUpdater(mgr, instance))
	return nil
}
