package world

import "slices"

// EntityID identifies a ship for the lifetime of the shard process.
type EntityID uint64

// SubscriptionTable tracks, per grid cell, which ships currently have that
// cell inside their AOI footprint. Only InterestManager mutates it.
// Accessed only from the game loop goroutine; no locks.
type SubscriptionTable struct {
	cells []map[EntityID]struct{} // cell index → set of subscribed ship IDs
}

func NewSubscriptionTable(cellCount int) *SubscriptionTable {
	return &SubscriptionTable{
		cells: make([]map[EntityID]struct{}, cellCount),
	}
}

// Subscribe adds id to cell. Subscribing twice is a no-op.
func (t *SubscriptionTable) Subscribe(cell int, id EntityID) {
	set := t.cells[cell]
	if set == nil {
		set = make(map[EntityID]struct{})
		t.cells[cell] = set
	}
	set[id] = struct{}{}
}

// Unsubscribe removes id from cell. Removing an absent id is a no-op.
func (t *SubscriptionTable) Unsubscribe(cell int, id EntityID) {
	set := t.cells[cell]
	if set == nil {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		t.cells[cell] = nil
	}
}

// Contains reports whether id is subscribed to cell.
func (t *SubscriptionTable) Contains(cell int, id EntityID) bool {
	_, ok := t.cells[cell][id]
	return ok
}

// SubscribersOf returns the ships subscribed to cell in ascending ID order.
// An empty cell yields an empty (nil) slice.
func (t *SubscriptionTable) SubscribersOf(cell int) []EntityID {
	set := t.cells[cell]
	if len(set) == 0 {
		return nil
	}
	ids := make([]EntityID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of subscribers of cell.
func (t *SubscriptionTable) Len(cell int) int {
	return len(t.cells[cell])
}

// NonEmptyCells lists, in ascending order, every cell with at least one subscriber.
func (t *SubscriptionTable) NonEmptyCells() []int {
	var out []int
	for cell, set := range t.cells {
		if len(set) > 0 {
			out = append(out, cell)
		}
	}
	return out
}

// collect adds every subscriber of the given cells to dst.
func (t *SubscriptionTable) collect(cells []int, dst map[EntityID]struct{}) {
	for _, cell := range cells {
		for id := range t.cells[cell] {
			dst[id] = struct{}{}
		}
	}
}
