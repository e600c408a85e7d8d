// Package stream defines the per-turn event protocol: a strictly ordered
// sequence of typed events pushed to the client over SSE.
package stream

import "inquest/internal/models"

// EventType names the wire event types. Per turn the order is start,
// status*, chunk*, sources?, suggestions?, then exactly one of done or
// error.
type EventType string

const (
	EventStart       EventType = "start"
	EventStatus      EventType = "status"
	EventChunk       EventType = "chunk"
	EventSources     EventType = "sources"
	EventSuggestions EventType = "suggestions"
	EventDone        EventType = "done"
	EventError       EventType = "error"
)

// Event is one typed unit pushed to the client.
type Event struct {
	Type EventType
	Data any
}

// EmitFunc delivers one event to the client. A returned error means the
// client is gone and the turn must stop without appending.
type EmitFunc func(Event) error

type startPayload struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type statusPayload struct {
	Message string `json:"message"`
}

type chunkPayload struct {
	Text string `json:"text"`
}

type sourcesPayload struct {
	Sources []models.Source `json:"sources"`
}

type suggestionsPayload struct {
	Queries []string `json:"queries"`
}

type donePayload struct {
	SessionID string `json:"session_id"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func Start(sessionID, query string) Event {
	return Event{Type: EventStart, Data: startPayload{SessionID: sessionID, Query: query}}
}

func Status(message string) Event {
	return Event{Type: EventStatus, Data: statusPayload{Message: message}}
}

func Chunk(text string) Event {
	return Event{Type: EventChunk, Data: chunkPayload{Text: text}}
}

func Sources(sources []models.Source) Event {
	return Event{Type: EventSources, Data: sourcesPayload{Sources: sources}}
}

func Suggestions(queries []string) Event {
	return Event{Type: EventSuggestions, Data: suggestionsPayload{Queries: queries}}
}

func Done(sessionID string) Event {
	return Event{Type: EventDone, Data: donePayload{SessionID: sessionID}}
}

func Error(message string) Event {
	return Event{Type: EventError, Data: errorPayload{Message: message}}
}
