package processor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestThumbnailProcessor_Process(t *testing.T) {
	tests := []struct {
		name          string
		imageData     []byte
		expectedError string
	}{
		{
			name:      "Success - Square JPEG",
			imageData: createTestJPEG(500, 500, color.RGBA{R: 255, A: 255}),
		},
		{
			name:      "Success - Wide JPEG Cropped",
			imageData: createTestJPEG(800, 300, color.RGBA{G: 255, A: 255}),
		},
		{
			name:      "Success - PNG Upscaled",
			imageData: createTestPNG(64, 64),
		},
		{
			name:          "Error - Invalid Image Data",
			imageData:     []byte("not-an-image"),
			expectedError: "failed to decode image",
		},
		{
			name:          "Error - Empty Data",
			imageData:     []byte{},
			expectedError: "failed to decode image",
		},
		{
			name:          "Error - Corrupted JPEG",
			imageData:     []byte{0xFF, 0xD8, 0xFF, 0x00, 0x00},
			expectedError: "failed to decode image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := NewThumbnailProcessor(zap.NewNop(), &mockConfig{outputDir: t.TempDir()})
			result, err := processor.Process(context.Background(), tt.imageData)

			if tt.expectedError != "" {
				if err == nil {
					t.Fatalf("expected error containing '%s', got nil", tt.expectedError)
				}
				if !strings.Contains(err.Error(), tt.expectedError) {
					t.Errorf("expected error '%s' to contain '%s'", err.Error(), tt.expectedError)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			img, format, err := image.Decode(bytes.NewReader(result))
			if err != nil {
				t.Fatalf("result is not a valid image: %v", err)
			}
			if format != "jpeg" {
				t.Errorf("expected jpeg, got %s", format)
			}
			if b := img.Bounds(); b.Dx() != defaultThumbnailSize || b.Dy() != defaultThumbnailSize {
				t.Errorf("expected %dx%d, got %dx%d", defaultThumbnailSize, defaultThumbnailSize, b.Dx(), b.Dy())
			}
		})
	}
}

func TestThumbnailProcessor_Generate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "art")
	processor := NewThumbnailProcessor(zap.NewNop(), &mockConfig{outputDir: dir})

	path, err := processor.Generate(createTestJPEG(100, 100, color.White), "azuratest-radio")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "azuratest-radio.jpg" {
		t.Errorf("unexpected file name %s", path)
	}
	if !filepath.IsAbs(path) {
		t.Errorf("expected absolute path, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("thumbnail not written: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be gone")
	}

	// a second song replaces the file
	if _, err := processor.Generate(createTestJPEG(50, 80, color.Black), "azuratest-radio"); err != nil {
		t.Fatalf("unexpected error on overwrite: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected one file per station, got %d", len(entries))
	}
}

func TestThumbnailProcessor_GenerateErrors(t *testing.T) {
	tests := []struct {
		name          string
		data          []byte
		thumbName     string
		expectedError string
	}{
		{name: "Bad Image", data: []byte("nope"), thumbName: "a", expectedError: "failed to process image"},
		{name: "Empty Name", data: createTestJPEG(10, 10, color.White), thumbName: "", expectedError: "invalid thumbnail name"},
		{name: "Root Name", data: createTestJPEG(10, 10, color.White), thumbName: "/", expectedError: "invalid thumbnail name"},
	}

	processor := NewThumbnailProcessor(zap.NewNop(), &mockConfig{outputDir: t.TempDir()})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := processor.Generate(tt.data, tt.thumbName)
			if err == nil || !strings.Contains(err.Error(), tt.expectedError) {
				t.Errorf("expected error containing '%s', got %v", tt.expectedError, err)
			}
		})
	}
}

// createTestJPEG generates a simple JPEG image for testing
func createTestJPEG(width, height int, col color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, col)
		}
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 80}); err != nil {
		panic("failed to create test JPEG: " + err.Error())
	}
	return buf.Bytes()
}

func createTestPNG(width, height int) []byte {
	img := image.NewGray(image.Rect(0, 0, width, height))
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		panic("failed to create test PNG: " + err.Error())
	}
	return buf.Bytes()
}

type mockConfig struct {
	outputDir string
}

func (m *mockConfig) GetOutputDir() string {
	return m.outputDir
}
