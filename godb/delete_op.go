package godb

var deleteCountDesc = &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}}

// DeleteOp drains its child on first Next, routing every tuple through
// bp.DeleteTuple, then yields a single-row (count) tuple. Subsequent calls
// report end-of-stream.
type DeleteOp struct {
	operatorBase

	deleteFile DBFile
	child      Operator
	bp         *BufferPool
	tid        TransactionID

	done bool
}

// NewDeleteOp deletes every tuple child produces from deleteFile via bp.
func NewDeleteOp(bp *BufferPool, deleteFile DBFile, child Operator) *DeleteOp {
	return &DeleteOp{bp: bp, deleteFile: deleteFile, child: child}
}

func (d *DeleteOp) Descriptor() *TupleDesc {
	return deleteCountDesc
}

func (d *DeleteOp) Open(tid TransactionID) error {
	if err := d.child.Open(tid); err != nil {
		return err
	}
	d.tid = tid
	d.done = false
	d.openBase()
	return nil
}

func (d *DeleteOp) produce() (*Tuple, error) {
	if d.done {
		return nil, nil
	}
	d.done = true

	count := int32(0)
	for {
		has, err := d.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		t, err := d.child.Next()
		if err != nil {
			return nil, err
		}
		if err := d.bp.DeleteTuple(d.tid, d.deleteFile, t); err != nil {
			return nil, err
		}
		count++
	}
	return &Tuple{Desc: *deleteCountDesc, Fields: []Field{IntField{Value: count}}}, nil
}

func (d *DeleteOp) HasNext() (bool, error) {
	return d.hasNextVia(d.produce)
}

func (d *DeleteOp) Next() (*Tuple, error) {
	return d.nextVia(d.produce)
}

func (d *DeleteOp) Rewind() error {
	return newErr(DbError, "DeleteOp is single-shot and cannot be rewound")
}

func (d *DeleteOp) Close() error {
	d.closeBase()
	return d.child.Close()
}
