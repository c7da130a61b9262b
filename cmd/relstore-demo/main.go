// Command relstore-demo wires a Catalog, a BufferPool, and a pair of
// HeapFiles together and drives them through a scripted scan / filter /
// join / aggregate pipeline. It takes no query language and has no REPL;
// it exists to exercise the storage engine end to end, not to be a client.
package main

import (
	"errors"
	"os"
	"path/filepath"

	"relstore/godb"
)

func peopleDesc() *godb.TupleDesc {
	return &godb.TupleDesc{Fields: []godb.FieldType{
		{Fname: "id", Ftype: godb.IntType},
		{Fname: "name", Ftype: godb.StringType},
		{Fname: "age", Ftype: godb.IntType},
	}}
}

func petsDesc() *godb.TupleDesc {
	return &godb.TupleDesc{Fields: []godb.FieldType{
		{Fname: "owner_id", Ftype: godb.IntType},
		{Fname: "pet_name", Ftype: godb.StringType},
	}}
}

func seedPeople(bp *godb.BufferPool, hf *godb.HeapFile, tid godb.TransactionID) error {
	desc := *hf.Descriptor()
	rows := []struct {
		id   int32
		name string
		age  int32
	}{
		{1, "ada", 36},
		{2, "alan", 41},
		{3, "grace", 29},
		{4, "edsger", 54},
		{5, "barbara", 33},
	}
	for _, r := range rows {
		t := &godb.Tuple{Desc: desc, Fields: []godb.Field{
			godb.IntField{Value: r.id},
			godb.StringField{Value: r.name},
			godb.IntField{Value: r.age},
		}}
		if err := bp.InsertTuple(tid, hf, t); err != nil {
			return err
		}
	}
	return nil
}

func seedPets(bp *godb.BufferPool, hf *godb.HeapFile, tid godb.TransactionID) error {
	desc := *hf.Descriptor()
	rows := []struct {
		owner int32
		name  string
	}{
		{1, "tiger"},
		{1, "hopper"},
		{3, "pascal"},
		{5, "turing"},
	}
	for _, r := range rows {
		t := &godb.Tuple{Desc: desc, Fields: []godb.Field{
			godb.IntField{Value: r.owner},
			godb.StringField{Value: r.name},
		}}
		if err := bp.InsertTuple(tid, hf, t); err != nil {
			return err
		}
	}
	return nil
}

func drain(op godb.Operator, tid godb.TransactionID) ([]*godb.Tuple, error) {
	if err := op.Open(tid); err != nil {
		return nil, err
	}
	defer op.Close()

	var out []*godb.Tuple
	for {
		has, err := op.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		t, err := op.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func run() error {
	dir, err := os.MkdirTemp("", "relstore-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	catalog := godb.NewCatalog()
	bp := godb.NewBufferPool(64, catalog)

	people, err := godb.NewHeapFile(filepath.Join(dir, "people.dat"), peopleDesc(), bp)
	if err != nil {
		return err
	}
	catalog.AddTable("people", people)

	pets, err := godb.NewHeapFile(filepath.Join(dir, "pets.dat"), petsDesc(), bp)
	if err != nil {
		return err
	}
	catalog.AddTable("pets", pets)

	seedTid := godb.NewTID()
	if err := bp.BeginTransaction(seedTid); err != nil {
		return err
	}
	if err := seedPeople(bp, people, seedTid); err != nil {
		return err
	}
	if err := seedPets(bp, pets, seedTid); err != nil {
		return err
	}
	bp.CommitTransaction(seedTid)
	godb.Logger.Infow("seeded tables", "people", people.NumPages(), "pets", pets.NumPages())

	// Scan + filter: people with age >= 35.
	scanTid := godb.NewTID()
	if err := bp.BeginTransaction(scanTid); err != nil {
		return err
	}
	olderScan := godb.NewFilter(
		&godb.Predicate{Field: "age", Op: godb.GreaterThanOrEqual, Value: godb.IntField{Value: 35}},
		godb.NewSeqScan(people),
	)
	older, err := drain(olderScan, scanTid)
	if err != nil {
		return err
	}
	for _, t := range older {
		godb.Logger.Infow("age filter match", "tuple", t.PrettyPrintString())
	}

	// Join: people who own a pet.
	join := godb.NewJoin(
		godb.NewSeqScan(people),
		godb.NewSeqScan(pets),
		&godb.JoinPredicate{LeftField: "id", Op: godb.Equals, RightField: "owner_id"},
	)
	owners, err := drain(join, scanTid)
	if err != nil {
		return err
	}
	for _, t := range owners {
		godb.Logger.Infow("owner/pet join row", "tuple", t.PrettyPrintString())
	}

	// Aggregate: average age.
	avgAge := godb.NewAggregate(godb.NewSeqScan(people), "age", godb.AvgAgg, "avg_age", "", false)
	avgRows, err := drain(avgAge, scanTid)
	if err != nil {
		return err
	}
	for _, t := range avgRows {
		godb.Logger.Infow("average age", "tuple", t.PrettyPrintString())
	}
	bp.CommitTransaction(scanTid)

	// Abort rollback: insert a bogus row, then abort, then verify it's gone.
	abortTid := godb.NewTID()
	if err := bp.BeginTransaction(abortTid); err != nil {
		return err
	}
	bogus := &godb.Tuple{Desc: *people.Descriptor(), Fields: []godb.Field{
		godb.IntField{Value: 999},
		godb.StringField{Value: "should-not-persist"},
		godb.IntField{Value: 0},
	}}
	if err := bp.InsertTuple(abortTid, people, bogus); err != nil {
		return err
	}
	bp.AbortTransaction(abortTid)

	verifyTid := godb.NewTID()
	if err := bp.BeginTransaction(verifyTid); err != nil {
		return err
	}
	all, err := drain(godb.NewSeqScan(people), verifyTid)
	if err != nil {
		return err
	}
	bp.CommitTransaction(verifyTid)
	for _, t := range all {
		if t.Fields[0].(godb.IntField).Value == 999 {
			return errors.New("aborted insert is still visible after abort")
		}
	}
	godb.Logger.Infow("post-abort row count", "count", len(all))

	// Selectivity and heavy-hitter estimation off the table's statistics.
	statsTid := godb.NewTID()
	if err := bp.BeginTransaction(statsTid); err != nil {
		return err
	}
	stats, err := godb.ComputeTableStats(bp, people)
	if err != nil {
		return err
	}
	bp.CommitTransaction(statsTid)

	sel, err := stats.EstimateSelectivity("age", godb.GreaterThanOrEqual, godb.IntField{Value: 35})
	if err != nil {
		return err
	}
	freq, err := stats.EstimateApproxFrequency("age", godb.IntField{Value: 36})
	if err != nil {
		return err
	}
	godb.Logger.Infow("people table statistics",
		"scanCost", stats.EstimateScanCost(),
		"cardinality", stats.EstimateCardinality(1.0),
		"ageGte35Selectivity", sel,
		"age36ApproxFrequency", freq,
	)

	return nil
}

func main() {
	if err := run(); err != nil {
		godb.Logger.Fatalw("relstore-demo failed", "error", err)
	}
}
