package appointment

import "sort"

// statusPriority orders active appointments during a rebuild: whoever is
// already with the doctor goes first, then confirmed, then scheduled.
var statusPriority = map[Status]int{
	StatusInProgress: 0,
	StatusConfirmed:  1,
	StatusScheduled:  2,
}

// CanonicalOrder returns the scope's active appointments in the canonical
// ordering used for bootstrap and repair: status priority, then creation
// time, then id as a deterministic tiebreak. Terminal appointments are
// excluded.
func CanonicalOrder(appts []*Appointment) []*Appointment {
	var active []*Appointment
	for _, a := range appts {
		if a.Status.Active() {
			active = append(active, a)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		pi, pj := statusPriority[active[i].Status], statusPriority[active[j].Status]
		if pi != pj {
			return pi < pj
		}
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID.String() < active[j].ID.String()
	})
	return active
}

// Repair renumbers a scope whose positions are missing, duplicated or
// gapped. It returns the appointments whose position changed; terminal
// records are never touched.
func Repair(appts []*Appointment) []*Appointment {
	var changed []*Appointment
	for i, a := range CanonicalOrder(appts) {
		if a.QueuePosition != i+1 {
			a.QueuePosition = i + 1
			changed = append(changed, a)
		}
	}
	return changed
}

// NeedsRepair reports whether the active positions of a scope violate the
// 1..N contiguity invariant.
func NeedsRepair(appts []*Appointment) bool {
	seen := map[int]bool{}
	n := 0
	for _, a := range appts {
		if !a.Status.Active() {
			continue
		}
		n++
		if a.QueuePosition < 1 || seen[a.QueuePosition] {
			return true
		}
		seen[a.QueuePosition] = true
	}
	for i := 1; i <= n; i++ {
		if !seen[i] {
			return true
		}
	}
	return false
}
