package journal

import "fmt"

// maxLedgerSlots bounds the number of entry slots a journal may address.
const maxLedgerSlots = 1 << 24

// ledger maps entry slots to the page number journaled in each.
//
// Slots may be assigned out of order. Its length is the highest assigned
// slot + 1; holes are never read by a well-behaved engine.
type ledger struct {
	pages    []uint32
	assigned []bool
}

func (l *ledger) len() int64 {
	return int64(len(l.pages))
}

// set records pgno in slot. Slots at or past maxLedgerSlots are refused.
func (l *ledger) set(slot int64, pgno uint32) error {
	if slot < 0 || slot >= maxLedgerSlots {
		return fmt.Errorf("journal: entry slot %d out of range", slot)
	}
	if slot >= l.len() {
		n := int(slot + 1)
		l.pages = append(l.pages, make([]uint32, n-len(l.pages))...)
		l.assigned = append(l.assigned, make([]bool, n-len(l.assigned))...)
	}
	l.pages[slot] = pgno
	l.assigned[slot] = true
	return nil
}

// get returns the page number in slot and whether the slot is assigned.
func (l *ledger) get(slot int64) (uint32, bool) {
	if slot < 0 || slot >= l.len() || !l.assigned[slot] {
		return 0, false
	}
	return l.pages[slot], true
}
