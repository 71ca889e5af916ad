package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG format support
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const (
	defaultThumbnailSize = 300
	thumbnailQuality     = 90
)

// OutputConfig is the part of the configuration the processor needs
type OutputConfig interface {
	GetOutputDir() string
}

// ThumbnailProcessor turns album art into a square JPEG per station
type ThumbnailProcessor struct {
	logger *zap.Logger
	cfg    OutputConfig
	size   int
}

// NewThumbnailProcessor creates a processor writing into the configured output dir
func NewThumbnailProcessor(logger *zap.Logger, cfg OutputConfig) *ThumbnailProcessor {
	return &ThumbnailProcessor{
		logger: logger,
		cfg:    cfg,
		size:   defaultThumbnailSize,
	}
}

// Process decodes the artwork, crops it to a centered square and encodes
// it as JPEG
func (p *ThumbnailProcessor) Process(ctx context.Context, imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	p.logger.Debug("Creating thumbnail",
		zap.Int("srcW", bounds.Dx()), zap.Int("srcH", bounds.Dy()), zap.Int("size", p.size))
	thumb := imaging.Fill(img, p.size, p.size, imaging.Center, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate writes <output_dir>/<name>.jpg and returns its absolute path.
// name is a station class and is reduced to its base name.
func (p *ThumbnailProcessor) Generate(imgData []byte, name string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("invalid thumbnail name %q", name)
	}

	data, err := p.Process(context.Background(), imgData)
	if err != nil {
		return "", fmt.Errorf("failed to process image: %w", err)
	}

	outputDir := p.cfg.GetOutputDir()
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(outputDir, base+".jpg")
	// write then rename so the HTTP surface never serves a partial file
	tmp := outputPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		return "", fmt.Errorf("failed to move thumbnail into place: %w", err)
	}

	p.logger.Info("Thumbnail generated",
		zap.String("path", outputPath),
		zap.Int("size", len(data)))

	absPath, err := filepath.Abs(outputPath)
	if err != nil {
		return outputPath, nil
	}
	return absPath, nil
}
