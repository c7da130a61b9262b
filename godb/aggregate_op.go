package godb

// Aggregate fully drains its child on Open, feeding each tuple's aggField
// value to a per-group AggState keyed on groupField (or a single implicit
// group when hasGroup is false), then iterates the finalized groups.
type Aggregate struct {
	operatorBase

	child      Operator
	aggField   string
	aggOp      AggOp
	alias      string
	groupField string
	hasGroup   bool

	desc    *TupleDesc
	results []*Tuple
	idx     int
}

// NewAggregate builds an Aggregate over child. alias names the aggregate's
// output column; groupField is ignored when hasGroup is false.
func NewAggregate(child Operator, aggField string, aggOp AggOp, alias string, groupField string, hasGroup bool) *Aggregate {
	return &Aggregate{
		child:      child,
		aggField:   aggField,
		aggOp:      aggOp,
		alias:      alias,
		groupField: groupField,
		hasGroup:   hasGroup,
	}
}

func (a *Aggregate) Descriptor() *TupleDesc {
	return a.desc
}

func (a *Aggregate) Open(tid TransactionID) error {
	if err := a.child.Open(tid); err != nil {
		return err
	}

	childDesc := a.child.Descriptor()
	aggIdx, err := childDesc.fieldIndex(a.aggField)
	if err != nil {
		return err
	}
	groupIdx := -1
	if a.hasGroup {
		groupIdx, err = childDesc.fieldIndex(a.groupField)
		if err != nil {
			return err
		}
		a.desc = &TupleDesc{Fields: []FieldType{childDesc.Fields[groupIdx], {Fname: a.alias, Ftype: IntType}}}
	} else {
		a.desc = &TupleDesc{Fields: []FieldType{{Fname: a.alias, Ftype: IntType}}}
	}

	states := make(map[Field]AggState)
	var order []Field
	for {
		has, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}

		var key Field = IntField{Value: 0}
		if a.hasGroup {
			key = t.Fields[groupIdx]
		}
		state, ok := states[key]
		if !ok {
			state = newAggState(a.aggOp)
			states[key] = state
			order = append(order, key)
		}
		if err := state.AddValue(t.Fields[aggIdx]); err != nil {
			return err
		}
	}

	a.results = make([]*Tuple, 0, len(order))
	for _, key := range order {
		val := states[key].Finalize()
		var fields []Field
		if a.hasGroup {
			fields = []Field{key, val}
		} else {
			fields = []Field{val}
		}
		a.results = append(a.results, &Tuple{Desc: *a.desc, Fields: fields})
	}
	a.idx = 0
	a.openBase()
	return nil
}

func (a *Aggregate) produce() (*Tuple, error) {
	if a.idx >= len(a.results) {
		return nil, nil
	}
	t := a.results[a.idx]
	a.idx++
	return t, nil
}

func (a *Aggregate) HasNext() (bool, error) {
	return a.hasNextVia(a.produce)
}

func (a *Aggregate) Next() (*Tuple, error) {
	return a.nextVia(a.produce)
}

func (a *Aggregate) Rewind() error {
	a.idx = 0
	a.openBase()
	return nil
}

func (a *Aggregate) Close() error {
	a.closeBase()
	return a.child.Close()
}
