// Package imaging provides the image-side collaborators of the colony counter:
// loading and caching source images, grayscale conversion, the fixed 5x5
// preprocessing filters used before blob detection, and circle overlays for
// exported images.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//
// Grayscale planes produced here always have their origin at (0, 0), whatever
// the bounds of the source image were.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. The filter functions are
// stateless and never modify their input, so they can run concurrently on
// different images (the batch coordinator relies on this).
//
// # Filters
//
//   - GaussianBlur5: 5x5 binomial kernel (1 4 6 4 1 outer product, sum 256)
//   - Erode5 / Dilate5: 5x5 square structuring element, min / max
//   - Open5: one erosion followed by one dilation
//
// Borders are handled by clamping for the blur and by ignoring out-of-image
// neighbours for the morphology.
//
// # Error Handling
//
// Load reports missing or undecodable files as apperr image_not_found errors.
package imaging
