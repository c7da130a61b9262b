package godb

var insertCountDesc = &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}}

// InsertOp drains its child on first Next, routing every tuple through
// bp.InsertTuple, then yields a single-row (count) tuple. Subsequent calls
// report end-of-stream.
type InsertOp struct {
	operatorBase

	insertFile DBFile
	child      Operator
	bp         *BufferPool
	tid        TransactionID

	result *Tuple
	done   bool
}

// NewInsertOp inserts every tuple child produces into insertFile via bp.
func NewInsertOp(bp *BufferPool, insertFile DBFile, child Operator) *InsertOp {
	return &InsertOp{bp: bp, insertFile: insertFile, child: child}
}

func (i *InsertOp) Descriptor() *TupleDesc {
	return insertCountDesc
}

func (i *InsertOp) Open(tid TransactionID) error {
	if err := i.child.Open(tid); err != nil {
		return err
	}
	i.tid = tid
	i.result = nil
	i.done = false
	i.openBase()
	return nil
}

func (i *InsertOp) produce() (*Tuple, error) {
	if i.done {
		return nil, nil
	}
	i.done = true

	count := int32(0)
	for {
		has, err := i.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		t, err := i.child.Next()
		if err != nil {
			return nil, err
		}
		if err := i.bp.InsertTuple(i.tid, i.insertFile, t); err != nil {
			return nil, err
		}
		count++
	}
	i.result = &Tuple{Desc: *insertCountDesc, Fields: []Field{IntField{Value: count}}}
	return i.result, nil
}

func (i *InsertOp) HasNext() (bool, error) {
	return i.hasNextVia(i.produce)
}

func (i *InsertOp) Next() (*Tuple, error) {
	return i.nextVia(i.produce)
}

func (i *InsertOp) Rewind() error {
	return newErr(DbError, "InsertOp is single-shot and cannot be rewound")
}

func (i *InsertOp) Close() error {
	i.closeBase()
	return i.child.Close()
}
