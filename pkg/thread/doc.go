// Package thread bridges inbound actor messages to the intake engine.
//
// An Adapter decides whether a message starts a new thread or resumes a
// suspended one. It intercepts admin commands and keeps the conversation
// rows and the message log up to date.
package thread
