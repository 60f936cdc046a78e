package search

import "sync"

// shortIndexBuildThreshold is the corpus size at which the ASCII
// short-query index becomes worth building (spec §4.5: "when the corpus
// reaches a size threshold").
const shortIndexBuildThreshold = 5000

// shortIndexOp is a mutation that arrived while a build was in flight; it
// is replayed once the build finishes (spec §4.5).
type shortIndexOp struct {
	deleted bool
	item    indexedItem
	id      string
}

// shortQueryIndex answers ≤2-character queries without a full-corpus scan:
// a posting list per ASCII byte and per ASCII bigram, built once off the
// search actor's own execution and then maintained incrementally.
type shortQueryIndex struct {
	mu         sync.Mutex
	ready      bool
	building   bool
	generation int
	char       map[byte]map[string]struct{}
	bigram     map[[2]byte]map[string]struct{}
	pending    []shortIndexOp
}

func newShortQueryIndex() *shortQueryIndex {
	return &shortQueryIndex{
		char:   make(map[byte]map[string]struct{}),
		bigram: make(map[[2]byte]map[string]struct{}),
	}
}

// beginBuild marks the index as building; callers must call finishBuild
// with the built maps once the off-actor scan completes.
func (idx *shortQueryIndex) beginBuild() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.building {
		return false
	}

	idx.building = true

	return true
}

func (idx *shortQueryIndex) finishBuild(char map[byte]map[string]struct{}, bigram map[[2]byte]map[string]struct{}) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.char = char
	idx.bigram = bigram
	idx.building = false
	idx.ready = true

	pending := idx.pending
	idx.pending = nil

	for _, op := range pending {
		idx.applyLocked(op)
	}
}

func (idx *shortQueryIndex) invalidate() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.ready = false
	idx.building = false
	idx.char = make(map[byte]map[string]struct{})
	idx.bigram = make(map[[2]byte]map[string]struct{})
	idx.pending = nil
	idx.generation++
}

func (idx *shortQueryIndex) upsert(item indexedItem) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	op := shortIndexOp{item: item, id: item.id}

	if idx.building {
		idx.pending = append(idx.pending, op)

		return
	}

	if idx.ready {
		idx.applyLocked(op)
	}
}

func (idx *shortQueryIndex) delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	op := shortIndexOp{deleted: true, id: id}

	if idx.building {
		idx.pending = append(idx.pending, op)

		return
	}

	if idx.ready {
		idx.applyLocked(op)
	}
}

func (idx *shortQueryIndex) applyLocked(op shortIndexOp) {
	idx.removeIDLocked(op.id)

	if op.deleted {
		return
	}

	if !isASCII(op.item.textLower) {
		return
	}

	text := op.item.textLower
	idx.generation++

	for i := 0; i < len(text); i++ {
		c := text[i]
		idx.addCharLocked(c, op.id)

		if i+1 < len(text) {
			idx.addBigramLocked([2]byte{c, text[i+1]}, op.id)
		}
	}
}

func (idx *shortQueryIndex) removeIDLocked(id string) {
	for c, set := range idx.char {
		delete(set, id)

		if len(set) == 0 {
			delete(idx.char, c)
		}
	}

	for b, set := range idx.bigram {
		delete(set, id)

		if len(set) == 0 {
			delete(idx.bigram, b)
		}
	}
}

func (idx *shortQueryIndex) addCharLocked(c byte, id string) {
	set, ok := idx.char[c]
	if !ok {
		set = make(map[string]struct{})
		idx.char[c] = set
	}

	set[id] = struct{}{}
}

func (idx *shortQueryIndex) addBigramLocked(b [2]byte, id string) {
	set, ok := idx.bigram[b]
	if !ok {
		set = make(map[string]struct{})
		idx.bigram[b] = set
	}

	set[id] = struct{}{}
}

// candidates returns the deduplicated id set matching a ≤2-byte ASCII
// query: a 1-byte query looks up the char posting, a 2-byte query
// intersects the bigram posting directly (the bigram key already encodes
// both characters).
func (idx *shortQueryIndex) candidates(queryLower string) (ids []string, ready bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.ready || !isASCII(queryLower) {
		return nil, idx.ready
	}

	switch len(queryLower) {
	case 1:
		set := idx.char[queryLower[0]]
		ids = make([]string, 0, len(set))

		for id := range set {
			ids = append(ids, id)
		}
	case 2:
		set := idx.bigram[[2]byte{queryLower[0], queryLower[1]}]
		ids = make([]string, 0, len(set))

		for id := range set {
			ids = append(ids, id)
		}
	default:
		return nil, true
	}

	return ids, true
}
