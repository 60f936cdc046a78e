// Package settingsfile implements model.SettingsStore against a local
// JSONC file, in the teacher's `config.go` style: hujson standardizes
// comments/trailing commas down to plain JSON before unmarshaling, and
// writes go through a single atomic whole-file replace (spec §A.3,
// §6 "SettingsStore").
package settingsfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"github.com/scopyapp/scopy/internal/model"
)

// fileSettings mirrors model.SettingsDTO with JSON tags, the on-disk shape
// of the settings file.
type fileSettings struct {
	ClipboardPollingIntervalMs int    `json:"clipboard_polling_interval_ms"` //nolint:tagliatelle // snake_case on disk
	MaxItems                   int    `json:"max_items"`
	MaxStorageMB               int    `json:"max_storage_mb"`
	SaveImages                 bool   `json:"save_images"`
	SaveFiles                  bool   `json:"save_files"`
	ShowImageThumbnails        bool   `json:"show_image_thumbnails"`
	ThumbnailHeight            int    `json:"thumbnail_height"`
	ImagePreviewDelayMs        int    `json:"image_preview_delay_ms"`
	DefaultSearchMode          string `json:"default_search_mode"`
	CleanupImagesOnly          bool   `json:"cleanup_images_only"`

	PNGRecompressBinaryPath string `json:"png_recompress_binary_path,omitempty"`
	PNGRecompressMinQuality int    `json:"png_recompress_min_quality"`
	PNGRecompressMaxQuality int    `json:"png_recompress_max_quality"`
	PNGRecompressSpeed      int    `json:"png_recompress_speed"`
	PNGRecompressColors     int    `json:"png_recompress_colors"`
	PNGRecompressEnabled    bool   `json:"png_recompress_enabled"`

	HotkeyCode      int `json:"hotkey_code"`
	HotkeyModifiers int `json:"hotkey_modifiers"`
}

func toFile(s model.SettingsDTO) fileSettings {
	return fileSettings{
		ClipboardPollingIntervalMs: s.ClipboardPollingIntervalMs,
		MaxItems:                   s.MaxItems,
		MaxStorageMB:               s.MaxStorageMB,
		SaveImages:                 s.SaveImages,
		SaveFiles:                  s.SaveFiles,
		ShowImageThumbnails:        s.ShowImageThumbnails,
		ThumbnailHeight:            s.ThumbnailHeight,
		ImagePreviewDelayMs:        s.ImagePreviewDelayMs,
		DefaultSearchMode:          string(s.DefaultSearchMode),
		CleanupImagesOnly:          s.CleanupImagesOnly,
		PNGRecompressBinaryPath:    s.PNGRecompressBinaryPath,
		PNGRecompressMinQuality:    s.PNGRecompressMinQuality,
		PNGRecompressMaxQuality:    s.PNGRecompressMaxQuality,
		PNGRecompressSpeed:         s.PNGRecompressSpeed,
		PNGRecompressColors:        s.PNGRecompressColors,
		PNGRecompressEnabled:       s.PNGRecompressEnabled,
		HotkeyCode:                 s.HotkeyCode,
		HotkeyModifiers:            s.HotkeyModifiers,
	}
}

func (f fileSettings) toDTO() model.SettingsDTO {
	return model.SettingsDTO{
		ClipboardPollingIntervalMs: f.ClipboardPollingIntervalMs,
		MaxItems:                   f.MaxItems,
		MaxStorageMB:               f.MaxStorageMB,
		SaveImages:                 f.SaveImages,
		SaveFiles:                  f.SaveFiles,
		ShowImageThumbnails:        f.ShowImageThumbnails,
		ThumbnailHeight:            f.ThumbnailHeight,
		ImagePreviewDelayMs:        f.ImagePreviewDelayMs,
		DefaultSearchMode:          model.SearchMode(f.DefaultSearchMode),
		CleanupImagesOnly:          f.CleanupImagesOnly,
		PNGRecompressBinaryPath:    f.PNGRecompressBinaryPath,
		PNGRecompressMinQuality:    f.PNGRecompressMinQuality,
		PNGRecompressMaxQuality:    f.PNGRecompressMaxQuality,
		PNGRecompressSpeed:         f.PNGRecompressSpeed,
		PNGRecompressColors:        f.PNGRecompressColors,
		PNGRecompressEnabled:       f.PNGRecompressEnabled,
		HotkeyCode:                 f.HotkeyCode,
		HotkeyModifiers:            f.HotkeyModifiers,
	}
}

// Default mirrors the teacher's DefaultConfig: sane defaults used when no
// settings file exists yet.
func Default() model.SettingsDTO {
	return model.SettingsDTO{
		ClipboardPollingIntervalMs: 500,
		MaxItems:                   2000,
		MaxStorageMB:               512,
		SaveImages:                 true,
		SaveFiles:                  true,
		ShowImageThumbnails:        true,
		ThumbnailHeight:            200,
		ImagePreviewDelayMs:        500,
		DefaultSearchMode:          model.ModeFuzzy,
		PNGRecompressMinQuality:    65,
		PNGRecompressMaxQuality:    90,
		PNGRecompressSpeed:         3,
		PNGRecompressColors:        256,
	}
}

// Store is a model.SettingsStore backed by a JSONC file on disk.
type Store struct {
	path string
}

// New constructs a Store rooted at path. The file need not exist yet;
// Load returns Default() in that case.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads and parses the settings file, tolerating JSONC comments and
// trailing commas. A missing file yields Default() rather than an error.
func (s *Store) Load(ctx context.Context) (model.SettingsDTO, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Default(), nil
	}

	if err != nil {
		return model.SettingsDTO{}, fmt.Errorf("settingsfile: read: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return model.SettingsDTO{}, fmt.Errorf("settingsfile: invalid JSONC: %w", err)
	}

	var f fileSettings

	if err := json.Unmarshal(standardized, &f); err != nil {
		return model.SettingsDTO{}, fmt.Errorf("settingsfile: invalid JSON: %w", err)
	}

	_ = ctx

	return f.toDTO(), nil
}

// Save atomically replaces the settings file with the marshaled DTO.
func (s *Store) Save(ctx context.Context, settings model.SettingsDTO) error {
	encoded, err := json.MarshalIndent(toFile(settings), "", "  ")
	if err != nil {
		return fmt.Errorf("settingsfile: marshal: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(encoded)); err != nil {
		return fmt.Errorf("settingsfile: write: %w", err)
	}

	_ = ctx

	return nil
}
