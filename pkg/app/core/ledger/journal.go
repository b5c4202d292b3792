package ledger

// journal records one undo closure per state mutation made during a
// transaction. Reverting replays them newest first.
type journal struct {
	entries []func()
}

func (j *journal) append(undo func()) {
	j.entries = append(j.entries, undo)
}

func (j *journal) length() int { return len(j.entries) }

// revert undoes every entry recorded after snapshot.
func (j *journal) revert(snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i]()
		j.entries[i] = nil
	}
	j.entries = j.entries[:snapshot]
}
