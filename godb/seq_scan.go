package godb

// SeqScan pulls every tuple out of a DBFile, in page order, through the
// buffer pool under READ_ONLY permission.
type SeqScan struct {
	operatorBase

	file DBFile
	tid  TransactionID
	iter func() (*Tuple, error)
}

// NewSeqScan returns a scan over file.
func NewSeqScan(file DBFile) *SeqScan {
	return &SeqScan{file: file}
}

func (s *SeqScan) Descriptor() *TupleDesc {
	return s.file.Descriptor()
}

func (s *SeqScan) Open(tid TransactionID) error {
	iter, err := s.file.Iterator(tid)
	if err != nil {
		return err
	}
	s.tid = tid
	s.iter = iter
	s.openBase()
	return nil
}

func (s *SeqScan) produce() (*Tuple, error) {
	return s.iter()
}

func (s *SeqScan) HasNext() (bool, error) {
	return s.hasNextVia(s.produce)
}

func (s *SeqScan) Next() (*Tuple, error) {
	return s.nextVia(s.produce)
}

func (s *SeqScan) Rewind() error {
	return s.Open(s.tid)
}

func (s *SeqScan) Close() error {
	s.closeBase()
	s.iter = nil
	return nil
}
