package entity

// ChangeSet describes an edit session against the persisted ledger.
// Added holds item numbers of unpersisted items; Modified and Removed hold ids.
type ChangeSet struct {
	Added    []string `json:"added,omitempty"`
	Modified []int64  `json:"modified,omitempty"`
	Removed  []int64  `json:"removed,omitempty"`
}

func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Diff computes the change-set that turns original into current.
// Unpersisted items that were added and then dropped never show up.
func Diff(original, current []JobItem) ChangeSet {
	var cs ChangeSet

	byID := make(map[int64]JobItem, len(original))
	for _, it := range original {
		if it.ID > 0 {
			byID[it.ID] = it
		}
	}

	seen := make(map[int64]bool, len(current))
	for _, it := range current {
		if it.ID == 0 {
			cs.Added = append(cs.Added, it.ItemNumber)
			continue
		}
		seen[it.ID] = true
		orig, ok := byID[it.ID]
		if !ok || !orig.Equal(it) {
			cs.Modified = append(cs.Modified, it.ID)
		}
	}

	for _, it := range original {
		if it.ID > 0 && !seen[it.ID] {
			cs.Removed = append(cs.Removed, it.ID)
		}
	}
	return cs
}

// HasUnsavedChanges is the "Save" affordance check.
func HasUnsavedChanges(current, original []JobItem) bool {
	return !Diff(original, current).Empty()
}
