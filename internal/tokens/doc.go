// Package tokens extracts design tokens from a reference image.
//
// The heuristic pass is pure Go: dominant colors by k-means in RGB converted
// to OKLCH, grid structure from projection histograms, elevation from the
// Laplacian of luminance, and spacing, radius and stroke measurements from
// the connected components of an Otsu-thresholded image. An optional
// generation.Analyzer contributes AI measurements and typography. All
// measurements are snapped to fixed design scales.
//
// Pipeline caches the whole result by content hash and each step by
// cache.StepKey, and collapses concurrent extractions of the same bytes.
package tokens
