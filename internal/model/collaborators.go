package model

import "context"

// Monitor produces an asynchronous sequence of ClipboardContent and writes
// back to the system clipboard. It is an external collaborator: the core
// only consumes its channel and calls its write-back methods.
type Monitor interface {
	// Start begins polling the OS pasteboard at the configured interval and
	// returns a channel of observed content. The channel is closed when Stop
	// is called.
	Start(ctx context.Context) (<-chan ClipboardContent, error)

	// Stop halts polling and closes the content channel.
	Stop() error

	// SetPollingInterval adjusts the polling cadence for subsequent polls.
	SetPollingInterval(intervalMs int)

	// WriteText copies plain text to the system clipboard.
	WriteText(text string) error

	// WriteBytes copies typed bytes (image/rtf/html) to the system clipboard.
	WriteBytes(itemType ClipboardItemType, data []byte) error

	// WriteFileURLs copies file references to the system clipboard.
	WriteFileURLs(urls []string) error
}

// Thumbnailer produces PNG thumbnail bytes from an image, video, or generic
// file input. It is an external collaborator called off the service's
// actor goroutine.
type Thumbnailer interface {
	// FromBytes decodes raw image bytes and renders a thumbnail no taller
	// than maxHeight.
	FromBytes(ctx context.Context, data []byte, maxHeight int) ([]byte, error)

	// FromImageFile renders a thumbnail for an image file on disk.
	FromImageFile(ctx context.Context, path string, maxHeight int) ([]byte, error)

	// FromVideoFile extracts a representative frame from a video file and
	// renders it as a thumbnail.
	FromVideoFile(ctx context.Context, path string, maxHeight int) ([]byte, error)

	// FromGenericFile renders a QuickLook-style fallback preview for a file
	// whose type isn't a known image or video format.
	FromGenericFile(ctx context.Context, path string, maxHeight int) ([]byte, error)
}

// SettingsStore persists the opaque SettingsDTO. It is an external
// collaborator; the core treats the DTO's schema as fixed only by the
// fields it reads (see SettingsDTO).
type SettingsStore interface {
	Load(ctx context.Context) (SettingsDTO, error)
	Save(ctx context.Context, settings SettingsDTO) error
}

// PNGRecompressor is the optional external helper invoked before storing a
// freshly ingested PNG payload. A non-zero exit or error means "no change":
// callers must preserve the original payload.
type PNGRecompressor interface {
	Recompress(ctx context.Context, data []byte, opts SettingsDTO) (out []byte, changed bool, err error)
}

// FileStater probes the aggregate size of referenced file paths, used by
// the file-size probe (spec §4.6). Kept as an interface so tests can stub
// the filesystem walk independently of internal/fs.
type FileStater interface {
	AggregateSize(ctx context.Context, paths []string) (int64, error)
}
