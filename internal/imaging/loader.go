package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
)

// DefaultCacheSize is the number of decoded images kept when no size is given.
const DefaultCacheSize = 64

// ImageCache keeps recently loaded images in memory, keyed by path.
//
// The cache is bounded: once it holds maxImages entries, loading a new image
// evicts the least recently used one. Evicted images are simply decoded again
// on the next Load.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewImageCache(32)
//	img, err := cache.Load("/path/to/plate.jpg")
//	if err != nil {
//	    return err
//	}
//	cache.Evict("/path/to/plate.jpg") // Optional: free memory
type ImageCache struct {
	images *lru.Cache[string, image.Image]
}

// NewImageCache creates an empty cache holding at most maxImages images.
// Non-positive sizes fall back to DefaultCacheSize.
func NewImageCache(maxImages int) *ImageCache {
	if maxImages <= 0 {
		maxImages = DefaultCacheSize
	}
	// lru.New only fails for non-positive sizes.
	images, _ := lru.New[string, image.Image](maxImages)
	return &ImageCache{images: images}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Decoding goes through imaging.Open with EXIF auto-orientation enabled, so
// phone and camera photos come out the right way up. Supported formats are
// PNG, JPEG and GIF.
//
// # Errors
//
//   - apperr image_not_found if the file does not exist or cannot be read
//   - apperr image_not_found if the file is not a decodable image
func (c *ImageCache) Load(path string) (image.Image, error) {
	if img, ok := c.images.Get(path); ok {
		return img, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, apperr.ImageNotFound(path, err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.ImageNotFound(path, fmt.Errorf("failed to decode image: %w", err))
	}

	c.images.Add(path, img)
	return img, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	return c.images.Len()
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.images.Purge()
}

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.images.Remove(path)
}
