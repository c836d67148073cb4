package world

import "slices"

// InterestManager keeps the SubscriptionTable consistent with ship positions
// and answers "who must hear about this?" queries.
type InterestManager struct {
	footprints *FootprintCache
	subs       *SubscriptionTable
}

func NewInterestManager(footprints *FootprintCache, subs *SubscriptionTable) *InterestManager {
	return &InterestManager{footprints: footprints, subs: subs}
}

func (m *InterestManager) Footprints() *FootprintCache       { return m.footprints }
func (m *InterestManager) Subscriptions() *SubscriptionTable { return m.subs }

// Track subscribes a newly placed ship to every cell of its footprint.
func (m *InterestManager) Track(id EntityID, cell int) {
	for _, c := range m.footprints.Footprint(cell) {
		m.subs.Subscribe(c, id)
	}
}

// Untrack removes a ship from every cell of its footprint.
func (m *InterestManager) Untrack(id EntityID, cell int) {
	for _, c := range m.footprints.Footprint(cell) {
		m.subs.Unsubscribe(c, id)
	}
}

// OnEntityMoved moves id's subscriptions from the footprint of oldCell to the
// footprint of newCell and returns, in ascending order, the ships that observe
// the new footprint but did not observe the old one. id itself is excluded.
func (m *InterestManager) OnEntityMoved(id EntityID, oldCell, newCell int) []EntityID {
	if oldCell == newCell {
		return nil
	}
	m.Untrack(id, oldCell)
	m.Track(id, newCell)
	return m.ObserversGained(oldCell, newCell, id)
}

// ObserversGained returns the subscribers of any cell in the footprint of
// newCell that are not subscribers of any cell in the footprint of oldCell,
// excluding exclude. Subscriptions are left untouched.
func (m *InterestManager) ObserversGained(oldCell, newCell int, exclude EntityID) []EntityID {
	if oldCell == newCell {
		return nil
	}
	before := make(map[EntityID]struct{})
	m.subs.collect(m.footprints.Footprint(oldCell), before)
	after := make(map[EntityID]struct{})
	m.subs.collect(m.footprints.Footprint(newCell), after)

	var gained []EntityID
	for id := range after {
		if id == exclude {
			continue
		}
		if _, ok := before[id]; ok {
			continue
		}
		gained = append(gained, id)
	}
	slices.Sort(gained)
	return gained
}

// Audience returns the ships whose AOI covers cell: the recipients of an
// interest-filtered event originating there.
func (m *InterestManager) Audience(cell int) []EntityID {
	return m.subs.SubscribersOf(cell)
}
