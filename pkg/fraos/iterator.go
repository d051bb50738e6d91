package fraos

// SeqNoIter lazily walks a Database's records starting at a given sequence
// number, stopping the first time a sequence number is not yet populated —
// it never looks ahead, so it naturally tracks a store that is still being
// appended to concurrently.
type SeqNoIter struct {
	db   *Database
	next int
}

func newSeqNoIter(db *Database, from int) *SeqNoIter {
	return &SeqNoIter{db: db, next: from}
}

// Next returns the next record, or ok=false once the iterator has caught up
// with the end of the store.
func (it *SeqNoIter) Next() (record []byte, ok bool, err error) {
	record, ok, err = it.db.GetBySeqno(it.next)
	if err != nil || !ok {
		return nil, false, err
	}
	it.next++
	return record, true, nil
}
