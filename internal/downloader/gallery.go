package downloader

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aizhuhelper/recipevision/internal/domain"
)

// galleryPartialSuccess is the gallery-dl exit code meaning some assets
// failed while most succeeded. Treated as success.
const galleryPartialSuccess = 4

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// downloadCarousel fetches a photo carousel using the secondary gallery
// tool. Used when yt-dlp reports the URL as an unsupported photo asset.
func (d *Downloader) downloadCarousel(ctx context.Context, url, outputDir string) (*domain.DownloadResult, error) {
	d.logger.Info("switching to gallery tool for photo carousel", "url", url)

	res, err := d.runner.Run(ctx, d.cfg.GalleryDlPath, "-d", outputDir, "-q", url)
	if err != nil && res.ExitCode != galleryPartialSuccess {
		return nil, fmt.Errorf("%w: gallery tool failed: %v: %s", domain.ErrContentUnavailable, err, string(res.Stderr))
	}
	if res.ExitCode == galleryPartialSuccess {
		d.logger.Warn("gallery tool reported partial success", "url", url)
	}

	photos, err := collectImages(outputDir)
	if err != nil {
		return nil, fmt.Errorf("collect carousel images: %w", err)
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("%w: gallery tool produced no images", domain.ErrContentUnavailable)
	}

	d.logger.Info("carousel downloaded", "url", url, "photos", len(photos))
	return &domain.DownloadResult{PhotoPaths: photos}, nil
}

// collectImages walks dir for image files, ordered by filename. The
// gallery tool numbers its output, so filename order is carousel order.
func collectImages(dir string) ([]string, error) {
	var photos []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			photos = append(photos, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(photos)
	return photos, nil
}
