package godb

import (
	"encoding/binary"
	"fmt"
	"math"

	boom "github.com/tylertreat/BoomFilters"
)

// TableStats keeps per-column histograms and an approximate per-value
// frequency sketch for a single table, used to estimate the cost and
// selectivity of query plans over it.
type TableStats struct {
	basePages  int
	baseTups   int
	histograms map[string]fieldHistogram
	freq       map[string]*boom.CountMinSketch
	tupleDesc  *TupleDesc
}

// Interface for statistics that are maintained for a table.
type Stats interface {
	EstimateScanCost() float64
	EstimateCardinality(selectivity float64) int
	EstimateSelectivity(field string, op BoolOp, value Field) (float64, error)
}

// The default cost to read a page from disk. This value can be adjusted to
// accommodate different storage devices.
const CostPerPage = 1000

// Number of bins for histograms. Feel free to increase this value over 100,
// though our tests assume that you have at least 100 bins in your histograms.
const NumHistBins = 100

// Error rate and confidence for the per-field CountMinSketch used by
// EstimateApproxFrequency. epsilon=0.001 bounds the overcount at ~0.1% of
// the total weight added; delta=0.999 is the confidence of that bound.
const (
	freqSketchEpsilon = 0.001
	freqSketchDelta   = 0.999
)

// fieldHistogram hides whether a column is backed by an IntHistogram or a
// StringHistogram behind a uniform Field-typed interface.
type fieldHistogram interface {
	addValue(f Field) error
	estimateSelectivity(op BoolOp, f Field) (float64, error)
}

type intHistAdapter struct{ h *IntHistogram }

func (a intHistAdapter) addValue(f Field) error {
	iv, ok := f.(IntField)
	if !ok {
		return newErr(DbError, fmt.Sprintf("int histogram requires an IntField, got %T", f))
	}
	a.h.AddValue(int64(iv.Value))
	return nil
}

func (a intHistAdapter) estimateSelectivity(op BoolOp, f Field) (float64, error) {
	iv, ok := f.(IntField)
	if !ok {
		return 1.0, newErr(DbError, fmt.Sprintf("field is int, but value %v is not an IntField", f))
	}
	return a.h.EstimateSelectivity(op, int64(iv.Value)), nil
}

type stringHistAdapter struct{ h *StringHistogram }

func (a stringHistAdapter) addValue(f Field) error {
	sv, ok := f.(StringField)
	if !ok {
		return newErr(DbError, fmt.Sprintf("string histogram requires a StringField, got %T", f))
	}
	a.h.AddValue(sv.Value)
	return nil
}

func (a stringHistAdapter) estimateSelectivity(op BoolOp, f Field) (float64, error) {
	sv, ok := f.(StringField)
	if !ok {
		return 1.0, newErr(DbError, fmt.Sprintf("field is string, but value %v is not a StringField", f))
	}
	return a.h.EstimateSelectivity(op, sv.Value), nil
}

// fieldBytes gives a stable byte encoding of a field's value for feeding the
// CountMinSketch, independent of the tuple wire format.
func fieldBytes(f Field) []byte {
	switch v := f.(type) {
	case IntField:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v.Value))
		return b
	case StringField:
		return []byte(v.Value)
	default:
		return nil
	}
}

func tableMinMax(tid TransactionID, dbFile DBFile) ([]int32, []int32, error) {
	td := dbFile.Descriptor()
	mins := make([]int32, len(td.Fields))
	maxs := make([]int32, len(td.Fields))
	seen := make([]bool, len(td.Fields))

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, nil, err
	}
	for tup, err := iter(); tup != nil; tup, err = iter() {
		if err != nil {
			return nil, nil, err
		}

		for i, f := range td.Fields {
			if f.Ftype != IntType {
				continue
			}
			v := tup.Fields[i].(IntField).Value
			if !seen[i] || v < mins[i] {
				mins[i] = v
			}
			if !seen[i] || v > maxs[i] {
				maxs[i] = v
			}
			seen[i] = true
		}
	}
	for i := range mins {
		if !seen[i] {
			mins[i] = 0
			maxs[i] = 0
		}
	}
	return mins, maxs, nil
}

// ComputeTableStats scans dbFile twice: once to find each INT32 field's
// min/max (needed to size its IntHistogram), once to populate the
// histograms and the per-field CountMinSketch.
func ComputeTableStats(bp *BufferPool, dbFile DBFile) (*TableStats, error) {
	tid := NewTID()

	if err := bp.BeginTransaction(tid); err != nil {
		return nil, err
	}
	defer bp.CommitTransaction(tid)

	td := dbFile.Descriptor()

	mins, maxs, err := tableMinMax(tid, dbFile)
	if err != nil {
		return nil, err
	}

	hists := make(map[string]fieldHistogram, len(td.Fields))
	freq := make(map[string]*boom.CountMinSketch, len(td.Fields))
	for i, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			h, err := NewIntHistogram(NumHistBins, int64(mins[i]), int64(maxs[i]))
			if err != nil {
				return nil, err
			}
			hists[f.Fname] = intHistAdapter{h}
		case StringType:
			h, err := NewStringHistogram()
			if err != nil {
				return nil, err
			}
			hists[f.Fname] = stringHistAdapter{h}
		}
		freq[f.Fname] = boom.NewCountMinSketch(freqSketchEpsilon, freqSketchDelta)
	}

	iter, err := dbFile.Iterator(tid)
	if err != nil {
		return nil, err
	}

	baseTups := 0
	for tup, err := iter(); tup != nil; tup, err = iter() {
		if err != nil {
			return nil, err
		}

		for i, f := range td.Fields {
			if err := hists[f.Fname].addValue(tup.Fields[i]); err != nil {
				return nil, err
			}
			freq[f.Fname].Add(fieldBytes(tup.Fields[i]))
		}
		baseTups++
	}

	Logger.Debugw("built table stats", "pages", dbFile.NumPages(), "tuples", baseTups)
	return &TableStats{
		basePages:  dbFile.NumPages(),
		baseTups:   baseTups,
		histograms: hists,
		freq:       freq,
		tupleDesc:  td,
	}, nil
}

// Estimates the cost of sequentially scanning the file, given that the cost to
// read a page is CostPerPage. You can assume that there are no seeks and that
// no pages are in the buffer pool.
//
// Also, assume that your hard drive can only read entire pages at once, so if
// the last page of the table only has one tuple on it, it's just as expensive
// to read as a full page. (Most real hard drives can't efficiently address
// regions smaller than a page at a time.)
func (t *TableStats) EstimateScanCost() float64 {
	return float64(t.basePages * CostPerPage)
}

// This method returns the number of tuples in the relation, given that a
// predicate with selectivity is applied.
func (t *TableStats) EstimateCardinality(selectivity float64) int {
	return int(math.Round(float64(t.baseTups) * selectivity))
}

// Given a field name, boolean predicate, and a constant, look up the relevant
// histogram and estimate the selectivity of the filter.
func (t *TableStats) EstimateSelectivity(field string, op BoolOp, value Field) (float64, error) {
	hist, ok := t.histograms[field]
	if !ok {
		Logger.Warnw("no histogram for field, assuming full selectivity", "field", field)
		return 1.0, nil
	}
	return hist.estimateSelectivity(op, value)
}

// EstimateApproxFrequency returns the estimated fraction of rows whose field
// column equals value, using the table's CountMinSketch instead of the
// bucketed histogram. Unlike EstimateSelectivity(Equals, ...), which spreads
// a bucket's count uniformly across its width, this recovers per-value
// skew (heavy hitters) at the cost of being a probabilistic overestimate.
func (t *TableStats) EstimateApproxFrequency(field string, value Field) (float64, error) {
	cms, ok := t.freq[field]
	if !ok {
		return 0, newErr(NoSuchElementError, fmt.Sprintf("no frequency sketch for field %s", field))
	}
	total := cms.TotalCount()
	if total == 0 {
		return 0, nil
	}
	return float64(cms.Count(fieldBytes(value))) / float64(total), nil
}
