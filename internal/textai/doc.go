// Package textai implements the text and media services on top of the OpenAI
// API: incident classification, content safety, profile extraction, candidate
// selection, voice-note transcription and image description.
package textai
