// Package generation defines the boundary between the practice service and
// the external AI/LLM services that synthesize practice items. The Gemini
// implementation lives in internal/platform/gemini; callers depend only on
// the Generator interface and the error taxonomy declared here.
package generation
