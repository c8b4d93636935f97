// Package generation defines the boundary to the AI provider: image analysis,
// style naming and derived-asset rendering. The Gemini implementation lives in
// internal/platform/gemini; Synthetic is a deterministic stand-in used when no
// API key is configured.
package generation
