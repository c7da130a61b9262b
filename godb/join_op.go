package godb

// Join is a nested-loops join over two child operators: for each outer
// tuple, the inner child is rewound and scanned in full, emitting the
// concatenation of outer and inner wherever the JoinPredicate holds.
type Join struct {
	operatorBase

	pred        *JoinPredicate
	left, right Operator
	curOuter    *Tuple
}

// NewJoin returns a nested-loops join of left and right under pred. left
// drives the outer loop.
func NewJoin(left, right Operator, pred *JoinPredicate) *Join {
	return &Join{pred: pred, left: left, right: right}
}

func (j *Join) Descriptor() *TupleDesc {
	return j.left.Descriptor().merge(j.right.Descriptor())
}

func (j *Join) Open(tid TransactionID) error {
	if err := j.left.Open(tid); err != nil {
		return err
	}
	if err := j.right.Open(tid); err != nil {
		return err
	}
	j.curOuter = nil
	j.openBase()
	return nil
}

func (j *Join) produce() (*Tuple, error) {
	for {
		if j.curOuter == nil {
			has, err := j.left.HasNext()
			if err != nil {
				return nil, err
			}
			if !has {
				return nil, nil
			}
			outer, err := j.left.Next()
			if err != nil {
				return nil, err
			}
			if err := j.right.Rewind(); err != nil {
				return nil, err
			}
			j.curOuter = outer
		}

		has, err := j.right.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			j.curOuter = nil
			continue
		}
		inner, err := j.right.Next()
		if err != nil {
			return nil, err
		}
		ok, err := j.pred.filter(j.curOuter, inner)
		if err != nil {
			return nil, err
		}
		if ok {
			return joinTuples(j.curOuter, inner), nil
		}
	}
}

func (j *Join) HasNext() (bool, error) {
	return j.hasNextVia(j.produce)
}

func (j *Join) Next() (*Tuple, error) {
	return j.nextVia(j.produce)
}

func (j *Join) Rewind() error {
	if err := j.left.Rewind(); err != nil {
		return err
	}
	j.curOuter = nil
	j.openBase()
	return nil
}

func (j *Join) Close() error {
	j.closeBase()
	if err := j.left.Close(); err != nil {
		return err
	}
	return j.right.Close()
}
