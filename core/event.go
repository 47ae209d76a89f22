package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventActions carries the side effects attached to an Event.
type EventActions struct {
	// StateDelta lists run state keys published together with the event.
	StateDelta map[string]any `json:"state_delta,omitempty"`
}

// Event is what agents emit while a run progresses: model messages, tool
// calls and responses, final answers and errors. Treat it as immutable once
// emitted.
type Event struct {
	ID           string       `json:"id"`
	InvocationID string       `json:"invocation_id"`
	Author       string       `json:"author"`
	Actions      EventActions `json:"actions"`
	Branch       *string      `json:"branch,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	Content      *Content     `json:"content,omitempty"`
	Partial      *bool        `json:"partial,omitempty"`
	TurnComplete *bool        `json:"turn_complete,omitempty"`
	ErrorCode    *string      `json:"error_code,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by author.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
	}
}

// NewMessageEvent creates an assistant message event with a single text part.
func NewMessageEvent(author, message string) Event {
	e := NewEvent("", author)
	e.Content = &Content{Role: RoleAssistant, Parts: []Part{TextPart{Text: message}}}

	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	return NewUserContentEvent(invocationID, &Content{Role: RoleUser, Parts: []Part{TextPart{Text: message}}})
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
func NewUserContentEvent(invocationID string, content *Content) Event {
	e := NewEvent(invocationID, RoleUser)
	e.Content = content

	return e
}

// NewFunctionCallEvent records an agent requesting one or more tool calls.
func NewFunctionCallEvent(author string, calls ...FunctionCall) Event {
	e := NewEvent("", author)
	parts := make([]Part, 0, len(calls))

	for _, c := range calls {
		parts = append(parts, FunctionCallPart{FunctionCall: c})
	}

	e.Content = &Content{Role: RoleAssistant, Parts: parts}

	return e
}

// NewFunctionResponseEvent records the result of a tool call. A non-nil err
// is copied into the response Error field.
func NewFunctionResponseEvent(author, id, functionName string, result any, err error) Event {
	e := NewEvent("", author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}

	if err != nil {
		fr.Error = err.Error()
	}

	e.Content = &Content{Role: RoleTool, Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}

	return e
}

// NewErrorEvent records a terminal failure of an agent.
func NewErrorEvent(author, code string, err error) Event {
	e := NewEvent("", author)
	msg := err.Error()
	e.ErrorCode = &code
	e.ErrorMessage = &msg

	return e
}

// NewID returns a new random identifier.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event is a streaming fragment.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// IsError reports whether the event carries an error.
func (e Event) IsError() bool { return e.ErrorCode != nil }

// GetFunctionCalls returns the FunctionCall parts in order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}

	var calls []FunctionCall

	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}

	return calls
}

// GetFunctionResponses returns the FunctionResponse parts in order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}

	var responses []FunctionResponse

	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}

	return responses
}

// IsFinalResponse reports whether the event completes an agent turn: no
// pending tool calls or responses, not partial and not an error.
func (e Event) IsFinalResponse() bool {
	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial() &&
		!e.IsError()
}

// Text concatenates the text parts of the event content.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}

	return e.Content.Text()
}

// Text concatenates the text parts of c.
func (c Content) Text() string {
	var sb strings.Builder

	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}

	return sb.String()
}
