package domain

import (
	"encoding/json"
	"time"
)

// OKLCH is a perceptual color in the OKLCH space.
type OKLCH struct {
	Space string  `json:"space"`
	L     float64 `json:"l"`
	C     float64 `json:"c"`
	H     float64 `json:"h"`
}

// Grid describes the detected column/row structure of a layout.
type Grid struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// Elevation is the heuristic shadow level of an image.
type Elevation struct {
	Level          int     `json:"elevation"`
	ShadowStrength float64 `json:"shadowStrength"`
}

// Typography holds the type hints returned by the AI analyzer.
type Typography struct {
	FontFamilies []string  `json:"fontFamilies,omitempty"`
	FontSizes    []float64 `json:"fontSizes,omitempty"`
	FontWeights  []int     `json:"fontWeights,omitempty"`
}

// TokenMeta records how a token set was produced.
type TokenMeta struct {
	Method       string `json:"method"`
	Confidence   string `json:"confidence"`
	RealtimeSafe bool   `json:"realtimeSafe"`
	ContentHash  string `json:"contentHash,omitempty"`
}

// TokenSet is the design-token payload extracted from one image.
type TokenSet struct {
	Color        []OKLCH     `json:"color"`
	Spacing      []float64   `json:"spacing"`
	BorderRadius []float64   `json:"borderRadius"`
	Grid         Grid        `json:"grid"`
	Elevation    Elevation   `json:"elevation"`
	StrokeWidth  []float64   `json:"strokeWidth"`
	Typography   *Typography `json:"typography,omitempty"`
	Meta         TokenMeta   `json:"meta"`
}

// CacheEntry is one row of the persistent content-addressed cache.
type CacheEntry struct {
	Key              string          `json:"key"`
	Value            json.RawMessage `json:"value"`
	Method           string          `json:"method"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	CreatedAt        time.Time       `json:"created_at"`
	ExpiresAt        time.Time       `json:"expires_at"`
}

// Expired reports whether a lookup at now must be treated as a miss.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
