// Package gemini implements generation.Generator on top of Google's Gemini
// API through the google.golang.org/genai SDK. Prompts are rendered from a
// text template and the model is asked for a JSON list of practice items.
package gemini
