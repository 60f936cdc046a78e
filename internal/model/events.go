package model

// EventKind tags which variant of Event is populated.
type EventKind string

// Recognized event kinds, one per ClipboardService mutation per spec §4.6.
const (
	EventNewItem            EventKind = "newItem"
	EventItemUpdated        EventKind = "itemUpdated"
	EventItemContentUpdated EventKind = "itemContentUpdated"
	EventItemPinned         EventKind = "itemPinned"
	EventItemUnpinned       EventKind = "itemUnpinned"
	EventItemDeleted        EventKind = "itemDeleted"
	EventItemsCleared       EventKind = "itemsCleared"
	EventThumbnailUpdated   EventKind = "thumbnailUpdated"
	EventSettingsChanged    EventKind = "settingsChanged"
)

// Event is the uniform payload enqueued to the UI-facing event stream.
// Exactly the fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind EventKind

	Item *ItemDTO // newItem, itemUpdated, itemContentUpdated

	ItemID string // itemPinned, itemUnpinned, itemDeleted

	KeepPinned bool // itemsCleared

	ThumbnailID   string // thumbnailUpdated
	ThumbnailPath string // thumbnailUpdated
}

// ItemDTO is the outward-facing representation of a StoredItem, with
// thumbnail-scheduling decisions already applied by the mapper.
type ItemDTO struct {
	ID              string
	Type            ClipboardItemType
	PlainText       string
	Note            *string
	AppBundleID     *string
	CreatedAt       float64
	LastUsedAt      float64
	UseCount        int64
	IsPinned        bool
	SizeBytes       int64
	FileSizeBytes   *int64
	ThumbnailPath   *string
	ThumbnailQueued bool
}
