// Package search implements SearchEngine: a read-only view over the
// clipboard database that answers paged exact/fuzzy/fuzzyPlus/regex
// queries using a recent-items cache, an in-memory full fuzzy index, and an
// ASCII short-query index (spec §4.5). Queries run directly on the
// connection; no prepared-statement cache is kept.
package search

import (
	"container/heap"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scopyapp/scopy/internal/model"
)

// Timeouts applied per search call (spec §4.5, §5): steady state is bounded
// tightly; while the full fuzzy index is under construction a slower
// ceiling avoids spurious failures on a cold cache.
const (
	steadyStateTimeout   = 5 * time.Second
	indexBuildingTimeout = 30 * time.Second
)

// recentCacheLimit bounds how many rows the in-memory recent-items cache
// and the regex scan operate over.
const recentCacheLimit = 20000

// longTextAvgThreshold and longTextMaxThreshold gate the fuzzy prefilter
// decision (spec §4.5: "avg length ≥1024 or max ≥100k").
const (
	longTextAvgThreshold = 1024
	longTextMaxThreshold = 100000
)

// ftsPrefilterMinCandidates, ftsPrefilterMinQueryLen, and
// ftsPrefilterMaxResults gate the fuzzy FTS pre-intersection (spec §4.5).
const (
	ftsPrefilterMinCandidates = 6000
	ftsPrefilterMinQueryLen   = 4
	ftsPrefilterMaxResults    = 20000
)

// ErrTimeout is returned when a search call exceeds its mode-dependent
// deadline.
var ErrTimeout = errors.New("search timed out")

// ErrInvalidRegex is returned when mode=regex is given an uncompilable
// pattern.
var ErrInvalidRegex = errors.New("invalid regular expression")

// checkpointInterval is how often scoring loops check ctx for cancellation
// (spec §5: "every 1024 iterations").
const checkpointInterval = 1024

// SearchEngine owns the read-only connection and in-memory indexes.
type SearchEngine struct {
	mu   sync.Mutex
	db   *sql.DB
	path string

	lastDataVersion int64
	haveDataVersion bool

	recent       []indexedItem
	recentLoaded bool

	fullIndex      *fullFuzzyIndex
	fullIndexBuilt bool

	shortIndex *shortQueryIndex

	sortedCache map[string]sortedCacheEntry

	hasTrigram bool
}

type sortedCacheEntry struct {
	generation int
	ids        []string
}

// Open opens the read-only connection, verifies the schema, and detects
// trigram-FTS availability.
func Open(ctx context.Context, path string) (*SearchEngine, error) {
	db, err := openReadOnly(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	hasTrigram, err := hasTrigramFTS(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &SearchEngine{
		db:          db,
		path:        path,
		shortIndex:  newShortQueryIndex(),
		sortedCache: make(map[string]sortedCacheEntry),
		hasTrigram:  hasTrigram,
	}, nil
}

// Close releases the read-only connection.
func (e *SearchEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.db.Close(); err != nil {
		return fmt.Errorf("search: close: %w", err)
	}

	return nil
}

// InvalidateCache drops every in-memory index, forcing the next search to
// rebuild from the database.
func (e *SearchEngine) InvalidateCache() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.invalidateLocked()
}

func (e *SearchEngine) invalidateLocked() {
	e.recent = nil
	e.recentLoaded = false
	e.fullIndex = nil
	e.fullIndexBuilt = false
	e.sortedCache = make(map[string]sortedCacheEntry)
	e.shortIndex.invalidate()
}

// checkDataVersion implements the external-mutation detection of spec
// §4.5/§9: if PRAGMA data_version changed since last observed, every cache
// is dropped because the DB may have been mutated by another connection.
func (e *SearchEngine) checkDataVersion(ctx context.Context) error {
	v, err := dataVersion(ctx, e.db)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.haveDataVersion {
		e.haveDataVersion = true
		e.lastDataVersion = v

		return nil
	}

	if v != e.lastDataVersion {
		e.lastDataVersion = v
		e.invalidateLocked()
	}

	return nil
}

// HandleUpserted keeps the in-memory indexes in step with an insert or
// update without a full rebuild.
func (e *SearchEngine) HandleUpserted(item model.StoredItem) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := newIndexedItem(item)

	e.recent = upsertRecent(e.recent, idx)

	if e.fullIndexBuilt {
		e.fullIndex.upsert(idx)
	}

	e.shortIndex.upsert(idx)
	e.sortedCache = make(map[string]sortedCacheEntry)
}

// HandlePinnedChange updates is_pinned on the cached copy of id, if present.
func (e *SearchEngine) HandlePinnedChange(id string, pinned bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.recent {
		if e.recent[i].id == id {
			e.recent[i].isPinned = pinned
		}
	}

	if e.fullIndexBuilt {
		if slot, ok := e.fullIndex.idToSlot[id]; ok && e.fullIndex.slots[slot] != nil {
			e.fullIndex.slots[slot].isPinned = pinned
		}
	}

	e.sortedCache = make(map[string]sortedCacheEntry)
}

// HandleDeletion removes id from every in-memory index.
func (e *SearchEngine) HandleDeletion(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recent = removeRecent(e.recent, id)

	if e.fullIndexBuilt {
		e.fullIndex.delete(id)
	}

	e.shortIndex.delete(id)
	e.sortedCache = make(map[string]sortedCacheEntry)
}

// HandleClearAll drops every in-memory cache and index, pinned rows
// included; they are rebuilt from the database on the next search.
func (e *SearchEngine) HandleClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.invalidateLocked()
}

func upsertRecent(recent []indexedItem, item indexedItem) []indexedItem {
	for i := range recent {
		if recent[i].id == item.id {
			recent[i] = item

			return recent
		}
	}

	recent = append(recent, item)
	sort.SliceStable(recent, func(i, j int) bool {
		if recent[i].isPinned != recent[j].isPinned {
			return recent[i].isPinned
		}

		return recent[i].lastUsedAt > recent[j].lastUsedAt
	})

	if len(recent) > recentCacheLimit {
		recent = recent[:recentCacheLimit]
	}

	return recent
}

func removeRecent(recent []indexedItem, id string) []indexedItem {
	for i, it := range recent {
		if it.id == id {
			return append(recent[:i], recent[i+1:]...)
		}
	}

	return recent
}

func (e *SearchEngine) ensureRecentLoaded(ctx context.Context) error {
	e.mu.Lock()
	loaded := e.recentLoaded
	e.mu.Unlock()

	if loaded {
		return nil
	}

	items, err := e.loadIndexable(ctx, recentCacheLimit)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.recent = items
	e.recentLoaded = true
	e.mu.Unlock()

	return nil
}

func (e *SearchEngine) ensureFullIndexBuilt(ctx context.Context) error {
	e.mu.Lock()
	built := e.fullIndexBuilt && !e.fullIndex.isStale()
	e.mu.Unlock()

	if built {
		return nil
	}

	items, err := e.loadIndexable(ctx, 0)
	if err != nil {
		return err
	}

	idx := newFullFuzzyIndex()
	for _, item := range items {
		idx.upsert(item)
	}

	e.mu.Lock()
	e.fullIndex = idx
	e.fullIndexBuilt = true
	e.mu.Unlock()

	return nil
}

// Search dispatches req to the matching algorithm for req.Mode.
func (e *SearchEngine) Search(ctx context.Context, req model.SearchRequest) (model.SearchResultPage, error) {
	if err := e.checkDataVersion(ctx); err != nil {
		return model.SearchResultPage{}, fmt.Errorf("search: %w", err)
	}

	timeout := steadyStateTimeout

	e.mu.Lock()
	building := !e.fullIndexBuilt
	e.mu.Unlock()

	if building {
		timeout = indexBuildingTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := e.dispatch(ctx, req)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.SearchResultPage{}, ErrTimeout
	}

	return page, err
}

func (e *SearchEngine) dispatch(ctx context.Context, req model.SearchRequest) (model.SearchResultPage, error) {
	query := strings.TrimSpace(req.Query)

	if query == "" {
		return e.filteredPage(ctx, req)
	}

	switch req.Mode {
	case model.ModeExact:
		return e.searchExact(ctx, req, query)
	case model.ModeFuzzy, model.ModeFuzzyPlus:
		return e.searchFuzzy(ctx, req, query)
	case model.ModeRegex:
		return e.searchRegex(ctx, req, query)
	default:
		return e.searchExact(ctx, req, query)
	}
}

// filteredPage implements the empty-query page shared by every mode: plain
// filtered rows ordered (is_pinned desc, last_used_at desc).
func (e *SearchEngine) filteredPage(ctx context.Context, req model.SearchRequest) (model.SearchResultPage, error) {
	var (
		clauses []string
		args    []any
	)

	if req.AppFilter != "" {
		clauses = append(clauses, "app_bundle_id = ?")
		args = append(args, req.AppFilter)
	}

	if len(req.TypeFilter) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(req.TypeFilter)), ",")
		clauses = append(clauses, "type IN ("+placeholders+")")

		for _, t := range req.TypeFilter {
			args = append(args, string(t))
		}
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	countRow := e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clipboard_items"+where, args...)

	var total int

	if err := countRow.Scan(&total); err != nil {
		return model.SearchResultPage{}, fmt.Errorf("filtered page count: %w", err)
	}

	limit, offset := pageBounds(req)
	args = append(args, limit, offset)

	rows, err := e.db.QueryContext(ctx,
		selectItemCols+" FROM clipboard_items"+where+" ORDER BY is_pinned DESC, last_used_at DESC, id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return model.SearchResultPage{}, fmt.Errorf("filtered page: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var items []model.StoredItem

	for rows.Next() {
		item, err := scanStoredItem(rows)
		if err != nil {
			return model.SearchResultPage{}, fmt.Errorf("filtered page scan: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return model.SearchResultPage{}, fmt.Errorf("filtered page iterate: %w", err)
	}

	return model.SearchResultPage{
		Items:   items,
		Total:   total,
		HasMore: offset+len(items) < total,
	}, nil
}

func pageBounds(req model.SearchRequest) (limit, offset int) {
	limit = req.Limit
	if limit <= 0 {
		limit = 50
	}

	offset = req.Offset
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// searchExact implements spec §4.5's exact mode.
func (e *SearchEngine) searchExact(ctx context.Context, req model.SearchRequest, query string) (model.SearchResultPage, error) {
	queryLower := toLowerFold(query)

	if len([]rune(query)) <= 2 {
		return e.searchRecentContains(ctx, req, queryLower)
	}

	fts := sanitizeFTSQuery(query)
	if fts == "" {
		return e.filteredPage(ctx, req)
	}

	page, err := e.searchFTS(ctx, req, fts)
	if err != nil {
		return model.SearchResultPage{}, err
	}

	if len(page.Items) == 0 && !isASCII(query) {
		return e.searchSubstringSQL(ctx, req, queryLower)
	}

	return page, nil
}

// searchRecentContains scans the recent-items cache with a case-insensitive
// contains test, used for short exact queries.
func (e *SearchEngine) searchRecentContains(ctx context.Context, req model.SearchRequest, queryLower string) (model.SearchResultPage, error) {
	if err := e.ensureRecentLoaded(ctx); err != nil {
		return model.SearchResultPage{}, err
	}

	e.mu.Lock()
	recent := append([]indexedItem(nil), e.recent...)
	e.mu.Unlock()

	var matched []indexedItem

	for i, it := range recent {
		if i%checkpointInterval == 0 && ctx.Err() != nil {
			return model.SearchResultPage{}, ctx.Err()
		}

		if !it.matchesFilter(req.AppFilter, req.TypeFilter) {
			continue
		}

		if strings.Contains(it.textLower, queryLower) {
			matched = append(matched, it)
		}
	}

	return e.pageFromIndexed(ctx, req, matched, nil)
}

func (e *SearchEngine) searchSubstringSQL(ctx context.Context, req model.SearchRequest, queryLower string) (model.SearchResultPage, error) {
	limit, offset := pageBounds(req)

	rows, err := e.db.QueryContext(ctx,
		selectItemCols+` FROM clipboard_items
			WHERE instr(LOWER(plain_text), ?) > 0 OR instr(LOWER(COALESCE(note, '')), ?) > 0
			ORDER BY is_pinned DESC, last_used_at DESC, id LIMIT ? OFFSET ?`,
		queryLower, queryLower, limit, offset)
	if err != nil {
		return model.SearchResultPage{}, fmt.Errorf("substring search: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var items []model.StoredItem

	for rows.Next() {
		item, err := scanStoredItem(rows)
		if err != nil {
			return model.SearchResultPage{}, fmt.Errorf("substring search scan: %w", err)
		}

		items = append(items, item)
	}

	return model.SearchResultPage{Items: items, Total: -1, HasMore: len(items) == limit}, nil
}

func (e *SearchEngine) searchFTS(ctx context.Context, req model.SearchRequest, ftsQuery string) (model.SearchResultPage, error) {
	limit, offset := pageBounds(req)

	orderBy := "bm25(clipboard_fts)"
	if req.Sort == model.SortRecent {
		orderBy = "c.last_used_at DESC"
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT c.id, c.type, c.content_hash, c.plain_text, c.note, c.app_bundle_id,
			c.created_at, c.last_used_at, c.use_count, c.is_pinned, c.size_bytes,
			c.file_size_bytes, c.storage_ref, c.raw_data
		FROM clipboard_fts f
		JOIN clipboard_items c ON c.id = f.id
		WHERE clipboard_fts MATCH ?
		ORDER BY c.is_pinned DESC, `+orderBy+`
		LIMIT ? OFFSET ?`, ftsQuery, limit, offset)
	if err != nil {
		return model.SearchResultPage{}, fmt.Errorf("fts search: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var items []model.StoredItem

	for rows.Next() {
		item, err := scanStoredItem(rows)
		if err != nil {
			return model.SearchResultPage{}, fmt.Errorf("fts search scan: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return model.SearchResultPage{}, fmt.Errorf("fts search iterate: %w", err)
	}

	return model.SearchResultPage{Items: items, Total: -1, HasMore: len(items) == limit}, nil
}

// searchRegex implements spec §4.5's regex mode: compile case-insensitive,
// scan the recent-items cache.
func (e *SearchEngine) searchRegex(ctx context.Context, req model.SearchRequest, pattern string) (model.SearchResultPage, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return model.SearchResultPage{}, fmt.Errorf("%w: %w", ErrInvalidRegex, err)
	}

	if err := e.ensureRecentLoaded(ctx); err != nil {
		return model.SearchResultPage{}, err
	}

	e.mu.Lock()
	recent := append([]indexedItem(nil), e.recent...)
	e.mu.Unlock()

	var matched []indexedItem

	for i, it := range recent {
		if i%checkpointInterval == 0 && ctx.Err() != nil {
			return model.SearchResultPage{}, ctx.Err()
		}

		if !it.matchesFilter(req.AppFilter, req.TypeFilter) {
			continue
		}

		if re.MatchString(it.textLower) {
			matched = append(matched, it)
		}
	}

	return e.pageFromIndexed(ctx, req, matched, nil)
}

// searchFuzzy implements spec §4.5's fuzzy/fuzzyPlus modes.
func (e *SearchEngine) searchFuzzy(ctx context.Context, req model.SearchRequest, query string) (model.SearchResultPage, error) {
	queryLower := toLowerFold(query)

	if len([]rune(query)) <= 2 {
		return e.searchFuzzyShort(ctx, req, queryLower)
	}

	if !req.ForceFullFuzzy {
		longTextHeavy, err := e.isLongTextHeavy(ctx)
		if err != nil {
			return model.SearchResultPage{}, err
		}

		if longTextHeavy {
			page, err := e.searchFTS(ctx, req, sanitizeFTSQuery(query))
			if err != nil {
				return model.SearchResultPage{}, err
			}

			page.IsPrefilter = true
			page.Total = -1

			return page, nil
		}
	}

	if err := e.ensureFullIndexBuilt(ctx); err != nil {
		return model.SearchResultPage{}, err
	}

	return e.searchFuzzyFullIndex(ctx, req, queryLower)
}

func (e *SearchEngine) isLongTextHeavy(ctx context.Context) (bool, error) {
	avgLen, maxLen, err := e.corpusStats(ctx)
	if err != nil {
		return false, err
	}

	return avgLen >= longTextAvgThreshold || maxLen >= longTextMaxThreshold, nil
}

func (e *SearchEngine) searchFuzzyShort(ctx context.Context, req model.SearchRequest, queryLower string) (model.SearchResultPage, error) {
	ids, ready := e.shortIndex.candidates(queryLower)

	if !ready {
		size, err := e.corpusSize(ctx)
		if err != nil {
			return model.SearchResultPage{}, err
		}

		if size >= shortIndexBuildThreshold {
			e.maybeStartShortIndexBuild(ctx)
		}

		return e.searchSubstringSQL(ctx, req, queryLower)
	}

	if isASCII(queryLower) {
		return e.pageFromIDs(ctx, req, ids, queryLower, scoreShort)
	}

	return e.searchFuzzyShortUnready(ctx, req, queryLower)
}

func (e *SearchEngine) searchFuzzyShortUnready(ctx context.Context, req model.SearchRequest, queryLower string) (model.SearchResultPage, error) {
	if err := e.ensureRecentLoaded(ctx); err != nil {
		return model.SearchResultPage{}, err
	}

	e.mu.Lock()
	recent := append([]indexedItem(nil), e.recent...)
	e.mu.Unlock()

	return e.scoreAndPage(ctx, req, recent, queryLower, scoreShort)
}

func (e *SearchEngine) maybeStartShortIndexBuild(ctx context.Context) {
	if !e.shortIndex.beginBuild() {
		return
	}

	go func() {
		items, err := e.loadIndexable(context.Background(), 0)
		if err != nil {
			e.shortIndex.mu.Lock()
			e.shortIndex.building = false
			e.shortIndex.mu.Unlock()

			return
		}

		char := make(map[byte]map[string]struct{})
		bigram := make(map[[2]byte]map[string]struct{})

		for _, item := range items {
			if !isASCII(item.textLower) {
				continue
			}

			text := item.textLower
			for i := 0; i < len(text); i++ {
				c := text[i]

				set, ok := char[c]
				if !ok {
					set = make(map[string]struct{})
					char[c] = set
				}

				set[item.id] = struct{}{}

				if i+1 < len(text) {
					b := [2]byte{c, text[i+1]}

					bset, ok := bigram[b]
					if !ok {
						bset = make(map[string]struct{})
						bigram[b] = bset
					}

					bset[item.id] = struct{}{}
				}
			}
		}

		e.shortIndex.finishBuild(char, bigram)
	}()

	_ = ctx
}

func (e *SearchEngine) searchFuzzyFullIndex(ctx context.Context, req model.SearchRequest, queryLower string) (model.SearchResultPage, error) {
	e.mu.Lock()
	idx := e.fullIndex
	e.mu.Unlock()

	prefilter := false

	slots, ok := idx.candidateSlots(queryLower)
	if !ok {
		return model.SearchResultPage{Items: nil, Total: 0}, nil
	}

	if len(slots) >= ftsPrefilterMinCandidates && isASCII(queryLower) && len([]rune(queryLower)) >= ftsPrefilterMinQueryLen && !req.ForceFullFuzzy {
		fromFTS, err := e.ftsCandidateIDs(ctx, sanitizeFTSQuery(queryLower), ftsPrefilterMaxResults)
		if err != nil {
			return model.SearchResultPage{}, err
		}

		slots = unionPinnedAndFTS(idx, slots, fromFTS)
		prefilter = true
	}

	var scorer func(q, text string) matchResult
	if req.Mode == model.ModeFuzzyPlus {
		scorer = scoreFuzzyPlus
	} else {
		scorer = scoreFuzzy
	}

	var candidates []indexedItem

	for i, slot := range slots {
		if i%checkpointInterval == 0 && ctx.Err() != nil {
			return model.SearchResultPage{}, ctx.Err()
		}

		item := idx.slots[slot]
		if item == nil {
			continue
		}

		candidates = append(candidates, *item)
	}

	page, err := e.scoreAndPage(ctx, req, candidates, queryLower, scorer)
	if err != nil {
		return model.SearchResultPage{}, err
	}

	if prefilter {
		page.IsPrefilter = true
		page.Total = -1
	}

	return page, nil
}

func (e *SearchEngine) ftsCandidateIDs(ctx context.Context, ftsQuery string, limit int) (map[string]struct{}, error) {
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := e.db.QueryContext(ctx,
		`SELECT id FROM clipboard_fts WHERE clipboard_fts MATCH ? LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("fts candidates: %w", err)
	}

	defer func() { _ = rows.Close() }()

	out := make(map[string]struct{})

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("fts candidates scan: %w", err)
		}

		out[id] = struct{}{}
	}

	return out, rows.Err()
}

func unionPinnedAndFTS(idx *fullFuzzyIndex, slots []int, ftsIDs map[string]struct{}) []int {
	out := make([]int, 0, len(ftsIDs))
	seen := make(map[int]struct{})

	for _, slot := range slots {
		item := idx.slots[slot]
		if item == nil {
			continue
		}

		if item.isPinned {
			out = append(out, slot)
			seen[slot] = struct{}{}
		}
	}

	for id := range ftsIDs {
		slot, ok := idx.idToSlot[id]
		if !ok {
			continue
		}

		if _, already := seen[slot]; already {
			continue
		}

		out = append(out, slot)
		seen[slot] = struct{}{}
	}

	return out
}

// scoredItem pairs a candidate with its score, for paging.
type scoredItem struct {
	item  indexedItem
	score int
}

func (e *SearchEngine) scoreAndPage(ctx context.Context, req model.SearchRequest, candidates []indexedItem, queryLower string, scorer func(q, text string) matchResult) (model.SearchResultPage, error) {
	var scored []scoredItem

	for i, it := range candidates {
		if i%checkpointInterval == 0 && ctx.Err() != nil {
			return model.SearchResultPage{}, ctx.Err()
		}

		if !it.matchesFilter(req.AppFilter, req.TypeFilter) {
			continue
		}

		m := scorer(queryLower, it.textLower)
		if !m.ok {
			continue
		}

		scored = append(scored, scoredItem{item: it, score: m.score})
	}

	return e.pageFromScored(ctx, req, scored)
}

func (e *SearchEngine) pageFromIndexed(ctx context.Context, req model.SearchRequest, items []indexedItem, _ map[string]int) (model.SearchResultPage, error) {
	sortRecentOnly(items)

	limit, offset := pageBounds(req)
	total := len(items)

	end := min(offset+limit, total)
	if offset > end {
		offset = end
	}

	page := items[offset:end]
	ids := make([]string, len(page))

	for i, it := range page {
		ids[i] = it.id
	}

	hydrated, err := e.hydrate(ctx, ids)
	if err != nil {
		return model.SearchResultPage{}, err
	}

	result := orderedItems(ids, hydrated)

	return model.SearchResultPage{Items: result, Total: total, HasMore: end < total}, nil
}

func sortRecentOnly(items []indexedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].isPinned != items[j].isPinned {
			return items[i].isPinned
		}

		if items[i].lastUsedAt != items[j].lastUsedAt {
			return items[i].lastUsedAt > items[j].lastUsedAt
		}

		return items[i].id < items[j].id
	})
}

// pageFromIDs scores the given ids directly (used by the short ASCII
// index path, which already has a deduplicated candidate id list rather
// than indexedItem values).
func (e *SearchEngine) pageFromIDs(ctx context.Context, req model.SearchRequest, ids []string, queryLower string, scorer func(q, text string) matchResult) (model.SearchResultPage, error) {
	e.mu.Lock()
	recent := e.recent
	fullIdx := e.fullIndex
	e.mu.Unlock()

	lookup := make(map[string]indexedItem, len(recent))
	for _, it := range recent {
		lookup[it.id] = it
	}

	if fullIdx != nil {
		for id, slot := range fullIdx.idToSlot {
			if item := fullIdx.slots[slot]; item != nil {
				lookup[id] = *item
			}
		}
	}

	candidates := make([]indexedItem, 0, len(ids))

	for _, id := range ids {
		if it, ok := lookup[id]; ok {
			candidates = append(candidates, it)
		}
	}

	return e.scoreAndPage(ctx, req, candidates, queryLower, scorer)
}

// pageFromScored applies the total order of spec §4.5 and pages using a
// bounded top-K heap for offset==0, or a full sort of the match list for
// offset>0. The sorted list is not cached; every call sorts again.
func (e *SearchEngine) pageFromScored(ctx context.Context, req model.SearchRequest, scored []scoredItem) (model.SearchResultPage, error) {
	limit, offset := pageBounds(req)

	less := lessFor(req.Sort)

	var ordered []scoredItem

	if offset == 0 {
		ordered = topK(scored, offset+limit+1, less)
	} else {
		ordered = sortAll(scored, less)
	}

	total := len(scored)

	end := min(offset+limit, total)
	if offset > end {
		offset = end
	}

	page := ordered[offset:end]
	ids := make([]string, len(page))

	for i, s := range page {
		ids[i] = s.item.id
	}

	hydrated, err := e.hydrate(ctx, ids)
	if err != nil {
		return model.SearchResultPage{}, err
	}

	result := orderedItems(ids, hydrated)

	return model.SearchResultPage{Items: result, Total: total, HasMore: end < total}, nil
}

func orderedItems(ids []string, hydrated map[string]model.StoredItem) []model.StoredItem {
	out := make([]model.StoredItem, 0, len(ids))

	for _, id := range ids {
		if item, ok := hydrated[id]; ok {
			out = append(out, item)
		}
	}

	return out
}

// lessFor returns the total order of spec §4.5: is_pinned desc always
// first, then per sort mode, ties broken by id asc.
func lessFor(sortMode model.SortMode) func(a, b scoredItem) bool {
	return func(a, b scoredItem) bool {
		if a.item.isPinned != b.item.isPinned {
			return a.item.isPinned
		}

		if sortMode == model.SortRecent {
			if a.item.lastUsedAt != b.item.lastUsedAt {
				return a.item.lastUsedAt > b.item.lastUsedAt
			}

			if a.score != b.score {
				return a.score > b.score
			}
		} else {
			if a.score != b.score {
				return a.score > b.score
			}

			if a.item.lastUsedAt != b.item.lastUsedAt {
				return a.item.lastUsedAt > b.item.lastUsedAt
			}
		}

		return a.item.id < b.item.id
	}
}

func sortAll(scored []scoredItem, less func(a, b scoredItem) bool) []scoredItem {
	out := append([]scoredItem(nil), scored...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })

	return out
}

// topKHeap is a max-heap over "worse than" ordering, so popping the root
// evicts the currently-worst kept candidate once the heap exceeds k.
type topKHeap struct {
	items []scoredItem
	less  func(a, b scoredItem) bool
}

func (h topKHeap) Len() int { return len(h.items) }
func (h topKHeap) Less(i, j int) bool {
	// Inverted: the heap root is the worst of the kept items, so a better
	// newcomer can evict it in O(log k).
	return h.less(h.items[j], h.items[i])
}
func (h topKHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *topKHeap) Push(x any) { h.items = append(h.items, x.(scoredItem)) }
func (h *topKHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]

	return item
}

func topK(scored []scoredItem, k int, less func(a, b scoredItem) bool) []scoredItem {
	if k <= 0 {
		return nil
	}

	h := &topKHeap{less: less}
	heap.Init(h)

	for _, s := range scored {
		if h.Len() < k {
			heap.Push(h, s)

			continue
		}

		if less(s, h.items[0]) {
			heap.Pop(h)
			heap.Push(h, s)
		}
	}

	out := make([]scoredItem, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(scoredItem)
	}

	return out
}
