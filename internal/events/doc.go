// Package events carries presentation triggers and session lifecycle
// notifications from the practice service to whatever renders them.
//
// The practice service never talks to audio players or drawing widgets
// directly; it emits an Event and moves on. Handlers registered on an
// InMemoryEventEmitter decide what to do with it: log it, buffer it in a
// Feed for clients to poll, or forward it elsewhere.
package events
