package godb

// BoolOp is one of the six comparison operators a Predicate or histogram can
// evaluate.
type BoolOp int

const (
	Equals BoolOp = iota
	NotEquals
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

func (op BoolOp) String() string {
	switch op {
	case Equals:
		return "="
	case NotEquals:
		return "!="
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	default:
		return "?"
	}
}

// Predicate filters tuples by comparing the named field against a constant.
type Predicate struct {
	Field string
	Op    BoolOp
	Value Field
}

func (p *Predicate) filter(t *Tuple) (bool, error) {
	i, err := t.Desc.fieldIndex(p.Field)
	if err != nil {
		return false, err
	}
	return t.Fields[i].compare(p.Op, p.Value)
}

// JoinPredicate compares one field from each side of a nested-loops join.
type JoinPredicate struct {
	LeftField  string
	Op         BoolOp
	RightField string
}

func (jp *JoinPredicate) filter(left, right *Tuple) (bool, error) {
	li, err := left.Desc.fieldIndex(jp.LeftField)
	if err != nil {
		return false, err
	}
	ri, err := right.Desc.fieldIndex(jp.RightField)
	if err != nil {
		return false, err
	}
	return left.Fields[li].compare(jp.Op, right.Fields[ri])
}
