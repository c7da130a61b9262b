package godb

// Filter propagates only the tuples from its child that satisfy a Predicate.
type Filter struct {
	operatorBase

	pred  *Predicate
	child Operator
}

// NewFilter returns an operator that applies pred to each tuple child
// produces.
func NewFilter(pred *Predicate, child Operator) *Filter {
	return &Filter{pred: pred, child: child}
}

func (f *Filter) Descriptor() *TupleDesc {
	return f.child.Descriptor()
}

func (f *Filter) Open(tid TransactionID) error {
	if err := f.child.Open(tid); err != nil {
		return err
	}
	f.openBase()
	return nil
}

func (f *Filter) produce() (*Tuple, error) {
	for {
		has, err := f.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, nil
		}
		t, err := f.child.Next()
		if err != nil {
			return nil, err
		}
		ok, err := f.pred.filter(t)
		if err != nil {
			return nil, err
		}
		if ok {
			return t, nil
		}
	}
}

func (f *Filter) HasNext() (bool, error) {
	return f.hasNextVia(f.produce)
}

func (f *Filter) Next() (*Tuple, error) {
	return f.nextVia(f.produce)
}

func (f *Filter) Rewind() error {
	if err := f.child.Rewind(); err != nil {
		return err
	}
	f.openBase()
	return nil
}

func (f *Filter) Close() error {
	f.closeBase()
	return f.child.Close()
}
