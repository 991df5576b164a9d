// Package detection finds colony blobs in grayscale images.
//
// The detector sweeps an intensity threshold from Params.MinThreshold to
// Params.MaxThreshold in steps of one. At every level it binarises the image
// (pixels strictly darker than the level are foreground), labels 8-connected
// components and measures each one:
//
//   - Area: pixel count
//   - Circularity: 4π·A/P² over the traced contour polygon
//   - Convexity: contour area divided by convex hull area
//   - Inertia ratio: minor/major axis length of the best-fit ellipse
//
// Components that pass every filter are linked to the chains of the previous
// level whose centroid lies within Params.MinDistBetweenBlobs. Each chain
// yields one Blob taken from its last instance, so a colony that stays visible
// across many levels is reported once.
//
// # Coordinate System
//
// Coordinates are pixel indices with the origin at the top-left corner:
//   - X increases rightward
//   - Y increases downward
//
// A Blob's centre is the centroid of its pixels and may be fractional.
//
// # Determinism
//
// Detect performs no randomness and no concurrency. For a given image and
// Params it always returns the same blobs in the same order: the order in
// which their chains were first observed during the sweep.
package detection
