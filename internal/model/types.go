// Package model defines the shared value types, DTOs, and external
// collaborator interfaces used across the clipboard core. It has no
// dependencies on any other internal package so every layer (storage,
// search, the service actor) can import it without cycles.
package model

import "time"

// ClipboardItemType tags the kind of payload a clipboard entry carries.
type ClipboardItemType string

// Recognized item types.
const (
	TypeText  ClipboardItemType = "text"
	TypeRTF   ClipboardItemType = "rtf"
	TypeHTML  ClipboardItemType = "html"
	TypeImage ClipboardItemType = "image"
	TypeFile  ClipboardItemType = "file"
	TypeOther ClipboardItemType = "other"
)

// Valid reports whether t is one of the recognized item types.
func (t ClipboardItemType) Valid() bool {
	switch t {
	case TypeText, TypeRTF, TypeHTML, TypeImage, TypeFile, TypeOther:
		return true
	default:
		return false
	}
}

// PayloadKind tags which variant of Payload is populated.
type PayloadKind string

// Payload variants.
const (
	PayloadNone     PayloadKind = ""
	PayloadInline   PayloadKind = "inline"
	PayloadFileURLs PayloadKind = "file_urls"
)

// Payload carries the raw bytes or file references produced by the monitor
// for a single clipboard event. Exactly one of Inline or FileURLs should be
// set; Kind reports which.
type Payload struct {
	Kind     PayloadKind
	Inline   []byte
	FileURLs []string
}

// ClipboardContent is the ingestion record produced by the external Monitor.
type ClipboardContent struct {
	Type          ClipboardItemType
	PlainText     string
	Payload       Payload
	AppBundleID   string // optional, empty if unknown
	ContentHash   string
	DeclaredSize  int64
	FileSizeBytes *int64 // optional, only meaningful for TypeFile
}

// StoredItem is a persisted clipboard history row.
type StoredItem struct {
	ID            string
	Type          ClipboardItemType
	ContentHash   string
	PlainText     string
	Note          *string
	AppBundleID   *string
	CreatedAt     float64 // seconds since epoch
	LastUsedAt    float64 // seconds since epoch
	UseCount      int64
	IsPinned      bool
	SizeBytes     int64
	FileSizeBytes *int64
	StorageRef    *string // absolute path of external blob, XOR RawData
	RawData       []byte  // inline bytes, XOR StorageRef
}

// HasExternalBlob reports whether the item's payload lives outside the row.
func (s *StoredItem) HasExternalBlob() bool {
	return s.StorageRef != nil && *s.StorageRef != ""
}

// SearchMode selects the matching algorithm used by SearchEngine.
type SearchMode string

// Recognized search modes.
const (
	ModeExact     SearchMode = "exact"
	ModeFuzzy     SearchMode = "fuzzy"
	ModeFuzzyPlus SearchMode = "fuzzyPlus"
	ModeRegex     SearchMode = "regex"
)

// SortMode selects the ordering applied to search results.
type SortMode string

// Recognized sort modes.
const (
	SortRecent    SortMode = "recent"
	SortRelevance SortMode = "relevance"
)

// SearchRequest describes a single search call.
type SearchRequest struct {
	Query          string
	Mode           SearchMode
	Sort           SortMode
	AppFilter      string // optional, empty means "any app"
	TypeFilter     []ClipboardItemType
	ForceFullFuzzy bool
	Limit          int
	Offset         int
}

// SearchResultPage is the paged result of a search call.
//
// Total is -1 when unknown, which happens for a prefilter page
// (IsPrefilter=true): the caller should re-issue with ForceFullFuzzy=true
// to refine.
type SearchResultPage struct {
	Items       []StoredItem
	Total       int
	HasMore     bool
	IsPrefilter bool
}

// SettingsDTO mirrors the opaque settings object owned by the external
// SettingsStore. The core only reads the fields it needs to apply.
type SettingsDTO struct {
	ClipboardPollingIntervalMs int
	MaxItems                   int
	MaxStorageMB               int
	SaveImages                 bool
	SaveFiles                  bool
	ShowImageThumbnails        bool
	ThumbnailHeight            int
	ImagePreviewDelayMs        int
	DefaultSearchMode          SearchMode
	CleanupImagesOnly          bool

	PNGRecompressBinaryPath string
	PNGRecompressMinQuality int
	PNGRecompressMaxQuality int
	PNGRecompressSpeed      int
	PNGRecompressColors     int
	PNGRecompressEnabled    bool

	HotkeyCode      int
	HotkeyModifiers int
}

// StorageStatsDTO is the detailed breakdown returned by
// ClipboardService.GetDetailedStorageStats.
type StorageStatsDTO struct {
	ItemCount       int64
	UnpinnedCount   int64
	TotalSizeBytes  int64
	InlineBytes     int64
	ExternalBytes   int64
	PinnedCount     int64
	CountByType     map[ClipboardItemType]int64
	SizeBytesByType map[ClipboardItemType]int64
}

// OptimizationOutcome is returned by ClipboardService.OptimizeImage.
type OptimizationOutcome struct {
	Changed      bool
	OldSizeBytes int64
	NewSizeBytes int64
	Reason       string
}

// Clock is the injection point for wall-clock time across the core. Tests
// substitute a deterministic clock; production code uses time.Now.
type Clock func() time.Time

// RealClock returns the current wall-clock time.
func RealClock() time.Time { return time.Now() }
