// Package modpipe implements the modification pipeline: a pure, ordered
// list of field-level operations assembled once at job-creation time from
// the four operator slots (AND, OR, XOR, SET) and executed, with no
// interpretation overhead beyond indexed dispatch, on every dispatched
// frame.
package modpipe

import "github.com/canfleet/cangw/internal/canframe"

// Operator is one of the four bitwise/assignment operators a slot may apply.
type Operator uint8

const (
	OpAND Operator = iota
	OpOR
	OpXOR
	OpSET
)

// Field selects which part of the frame an Op mutates.
type Field uint8

const (
	FieldID Field = iota
	FieldDLC
	FieldData
)

// TypeMask selects which fields a slot's operator applies to. Any subset of
// {ID, DLC, DATA} is valid; the zero mask means the slot is inactive.
type TypeMask uint8

const (
	TypeID   TypeMask = 1 << 0
	TypeDLC  TypeMask = 1 << 1
	TypeData TypeMask = 1 << 2
)

// Slot is one modification operator slot: an operator, the template frame
// whose fields supply the right-hand-side operand, and the type mask
// selecting which of the template's fields are active.
type Slot struct {
	Op       Operator
	Template canframe.Frame
	Mask     TypeMask
}

// Active reports whether the slot contributes any operation to a program.
func (s Slot) Active() bool {
	return s.Mask != 0
}

// fieldOp is a single primitive field operation: apply Operator to Field using
// the operand baked in at Build time.
type fieldOp struct {
	field    Field
	op       Operator
	idOperand  uint32
	dlcOperand uint8
	dataOperand uint64
}

// Program is the ordered concatenation of field-level operations implied by
// each active slot, in slot order. At most 12 operations (4 slots x 3
// fields). An empty program is valid and means "forward unmodified."
type Program struct {
	ops []fieldOp
}

// Empty reports whether the program has no operations, the condition under
// which checksum recomputation must be skipped (spec: checksum recompute
// runs only if the program is non-empty).
func (p Program) Empty() bool {
	return len(p.ops) == 0
}

// Build assembles a Program from slots in the fixed order AND→OR→XOR→SET.
// Slots are expected (but not required) to already be in that order; Build
// does not reorder them, it only skips inactive slots and, within an active
// slot, emits field operations in the fixed ID, DLC, DATA order.
func Build(slots ...Slot) Program {
	var p Program
	for _, s := range slots {
		if !s.Active() {
			continue
		}
		if s.Mask&TypeID != 0 {
			p.ops = append(p.ops, fieldOp{field: FieldID, op: s.Op, idOperand: s.Template.ID})
		}
		if s.Mask&TypeDLC != 0 {
			p.ops = append(p.ops, fieldOp{field: FieldDLC, op: s.Op, dlcOperand: s.Template.DLC})
		}
		if s.Mask&TypeData != 0 {
			p.ops = append(p.ops, fieldOp{field: FieldData, op: s.Op, dataOperand: s.Template.DataWord()})
		}
	}
	return p
}

// Apply executes the program's operations on f in order. Apply never reads
// frame state other than the field it is currently mutating, never
// allocates, and never fails.
func Apply(f *canframe.Frame, p Program) {
	for _, o := range p.ops {
		switch o.field {
		case FieldID:
			f.ID = applyU32(o.op, f.ID, o.idOperand)
		case FieldDLC:
			f.DLC = applyU8(o.op, f.DLC, o.dlcOperand)
		case FieldData:
			f.SetDataWord(applyU64(o.op, f.DataWord(), o.dataOperand))
		}
	}
}

func applyU32(op Operator, cur, operand uint32) uint32 {
	switch op {
	case OpAND:
		return cur & operand
	case OpOR:
		return cur | operand
	case OpXOR:
		return cur ^ operand
	case OpSET:
		return operand
	default:
		return cur
	}
}

func applyU8(op Operator, cur, operand uint8) uint8 {
	switch op {
	case OpAND:
		return cur & operand
	case OpOR:
		return cur | operand
	case OpXOR:
		return cur ^ operand
	case OpSET:
		return operand
	default:
		return cur
	}
}

func applyU64(op Operator, cur, operand uint64) uint64 {
	switch op {
	case OpAND:
		return cur & operand
	case OpOR:
		return cur | operand
	case OpXOR:
		return cur ^ operand
	case OpSET:
		return operand
	default:
		return cur
	}
}
