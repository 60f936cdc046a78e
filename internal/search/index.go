package search

import "github.com/scopyapp/scopy/internal/model"

// indexedItem is the slice of a row's state kept in memory by
// FullFuzzyIndex and the recent-items cache: enough to filter, sort, and
// score a candidate without round-tripping to SQLite.
type indexedItem struct {
	id          string
	textLower   string // plain_text + "\n" + note, lowercased, used for matching
	lastUsedAt  float64
	isPinned    bool
	appBundleID string
	itemType    model.ClipboardItemType
}

func newIndexedItem(item model.StoredItem) indexedItem {
	text := item.PlainText
	if item.Note != nil && *item.Note != "" {
		text += "\n" + *item.Note
	}

	appBundleID := ""
	if item.AppBundleID != nil {
		appBundleID = *item.AppBundleID
	}

	return indexedItem{
		id:          item.ID,
		textLower:   toLowerFold(text),
		lastUsedAt:  item.LastUsedAt,
		isPinned:    item.IsPinned,
		appBundleID: appBundleID,
		itemType:    item.Type,
	}
}

func (it indexedItem) matchesFilter(appFilter string, types []model.ClipboardItemType) bool {
	if appFilter != "" && it.appBundleID != appFilter {
		return false
	}

	if len(types) == 0 {
		return true
	}

	for _, t := range types {
		if t == it.itemType {
			return true
		}
	}

	return false
}

// stalenessMinSlots and friends implement the tombstone-ratio staleness
// rule (spec §3, §9): a full rebuild beats further in-place edits once a
// quarter of a sizeable index is dead.
const (
	stalenessMinSlots      = 64
	stalenessMinTombstones = 16
	stalenessRatio         = 0.25
)

// fullFuzzyIndex is an arena of slots (nullable for tombstones) plus an
// id→slot map and per-character inverted postings, the representation
// named in spec §9's redesign note for the original's cyclic slot/id
// structure.
type fullFuzzyIndex struct {
	slots      []*indexedItem
	idToSlot   map[string]int
	postings   map[rune][]int
	tombstones int
	generation int
}

func newFullFuzzyIndex() *fullFuzzyIndex {
	return &fullFuzzyIndex{
		idToSlot: make(map[string]int),
		postings: make(map[rune][]int),
	}
}

func (idx *fullFuzzyIndex) isStale() bool {
	total := len(idx.slots)
	if total < stalenessMinSlots || idx.tombstones < stalenessMinTombstones {
		return false
	}

	return float64(idx.tombstones)/float64(total) >= stalenessRatio
}

func (idx *fullFuzzyIndex) upsert(item indexedItem) {
	if slot, ok := idx.idToSlot[item.id]; ok {
		idx.removeFromPostings(slot)
		idx.slots[slot] = &item
		idx.addToPostings(slot, item.textLower)

		return
	}

	slot := len(idx.slots)
	idx.slots = append(idx.slots, &item)
	idx.idToSlot[item.id] = slot
	idx.addToPostings(slot, item.textLower)
	idx.generation++
}

func (idx *fullFuzzyIndex) delete(id string) {
	slot, ok := idx.idToSlot[id]
	if !ok {
		return
	}

	idx.removeFromPostings(slot)
	idx.slots[slot] = nil
	delete(idx.idToSlot, id)
	idx.tombstones++
	idx.generation++
}

func (idx *fullFuzzyIndex) addToPostings(slot int, textLower string) {
	seen := make(map[rune]struct{})

	for _, r := range textLower {
		if isSpaceRune(r) {
			continue
		}

		if _, ok := seen[r]; ok {
			continue
		}

		seen[r] = struct{}{}
		idx.postings[r] = append(idx.postings[r], slot)
	}
}

func (idx *fullFuzzyIndex) removeFromPostings(slot int) {
	item := idx.slots[slot]
	if item == nil {
		return
	}

	seen := make(map[rune]struct{})

	for _, r := range item.textLower {
		if isSpaceRune(r) {
			continue
		}

		if _, ok := seen[r]; ok {
			continue
		}

		seen[r] = struct{}{}
		idx.postings[r] = removeSlot(idx.postings[r], slot)
	}
}

func removeSlot(list []int, slot int) []int {
	for i, s := range list {
		if s == slot {
			return append(list[:i], list[i+1:]...)
		}
	}

	return list
}

// candidateSlots implements the candidate-selection rule of spec §4.5: every
// non-whitespace character of the lowercased query must appear in the
// index, and the shortest posting list is intersected with the rest in
// increasing length order. ok is false if any character is absent.
func (idx *fullFuzzyIndex) candidateSlots(queryLower string) (slots []int, ok bool) {
	chars := distinctNonSpaceRunes(queryLower)
	if len(chars) == 0 {
		return nil, false
	}

	lists := make([][]int, 0, len(chars))

	for _, c := range chars {
		list, present := idx.postings[c]
		if !present || len(list) == 0 {
			return nil, false
		}

		lists = append(lists, list)
	}

	sortByLen(lists)

	candidates := toSet(lists[0])
	for _, list := range lists[1:] {
		candidates = intersectSet(candidates, list)

		if len(candidates) == 0 {
			return nil, true
		}
	}

	out := make([]int, 0, len(candidates))
	for slot := range candidates {
		out = append(out, slot)
	}

	return out, true
}

func distinctNonSpaceRunes(s string) []rune {
	seen := make(map[rune]struct{})

	var out []rune

	for _, r := range s {
		if isSpaceRune(r) {
			continue
		}

		if _, ok := seen[r]; ok {
			continue
		}

		seen[r] = struct{}{}
		out = append(out, r)
	}

	return out
}

func sortByLen(lists [][]int) {
	for i := 1; i < len(lists); i++ {
		for j := i; j > 0 && len(lists[j]) < len(lists[j-1]); j-- {
			lists[j], lists[j-1] = lists[j-1], lists[j]
		}
	}
}

func toSet(slots []int) map[int]struct{} {
	set := make(map[int]struct{}, len(slots))
	for _, s := range slots {
		set[s] = struct{}{}
	}

	return set
}

func intersectSet(set map[int]struct{}, list []int) map[int]struct{} {
	present := make(map[int]struct{}, len(list))
	for _, s := range list {
		present[s] = struct{}{}
	}

	out := make(map[int]struct{})

	for s := range set {
		if _, ok := present[s]; ok {
			out[s] = struct{}{}
		}
	}

	return out
}

func isSpaceRune(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
