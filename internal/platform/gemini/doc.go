// Package gemini implements the generation.Provider interface on top of
// Google's Gemini API via google.golang.org/genai.
//
// Text calls (image analysis and naming) request JSON responses and are
// decoded into the generation types. Asset rendering asks an image-capable
// model for inline image data. Transient API failures are retried with
// exponential backoff and jitter; safety blocks and malformed responses are
// returned immediately.
package gemini
