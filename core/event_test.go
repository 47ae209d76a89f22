package core

import (
	"errors"
	"testing"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("run-123", "authorA")
	if e.Author != "authorA" || e.InvocationID != "run-123" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	msg := NewMessageEvent("agent1", "hello world")
	if msg.Content == nil || msg.Content.Role != RoleAssistant || msg.Text() != "hello world" {
		t.Fatalf("NewMessageEvent malformed: %+v", msg)
	}

	user := NewUserMessageEvent("run-123", "hi")
	if user.Content == nil || user.Content.Role != RoleUser || user.Author != RoleUser {
		t.Fatalf("NewUserMessageEvent malformed: %+v", user)
	}

	fCall := NewFunctionCallEvent("agent2",
		FunctionCall{ID: "c1", Name: "get_current_date", Arguments: "{}"},
		FunctionCall{ID: "c2", Name: "get_weather_data", Arguments: `{"city":"Lahore"}`},
	)
	calls := fCall.GetFunctionCalls()
	if len(calls) != 2 || calls[1].Name != "get_weather_data" {
		t.Fatalf("GetFunctionCalls extraction failed: %+v", calls)
	}

	fRespOK := NewFunctionResponseEvent("agent2", "c1", "get_current_date", 42, nil)
	resps := fRespOK.GetFunctionResponses()
	if len(resps) != 1 || resps[0].Response.(int) != 42 || resps[0].Error != "" {
		t.Fatalf("Function response success extraction failed: %+v", resps)
	}

	fRespErr := NewFunctionResponseEvent("agent2", "c2", "get_weather_data", nil, errors.New("boom"))
	if fRespErr.GetFunctionResponses()[0].Error != "boom" {
		t.Fatalf("Expected error message in function response: %+v", fRespErr)
	}
}

func TestEvent_IsFinalResponseLogic(t *testing.T) {
	if !NewMessageEvent("a", "done").IsFinalResponse() {
		t.Error("plain message should be final")
	}

	partial := true
	e := NewMessageEvent("a", "frag")
	e.Partial = &partial
	if e.IsFinalResponse() {
		t.Error("partial event should not be final")
	}

	if NewFunctionCallEvent("a", FunctionCall{Name: "f"}).IsFinalResponse() {
		t.Error("function call should not be final")
	}

	if NewFunctionResponseEvent("a", "id", "f", "ok", nil).IsFinalResponse() {
		t.Error("function response should not be final")
	}

	if NewErrorEvent("a", "UNKNOWN_TOOL", errors.New("x")).IsFinalResponse() {
		t.Error("error event should not be final")
	}
}

func TestEvent_IDUniqueness(t *testing.T) {
	if NewID() == NewID() {
		t.Error("expected unique IDs")
	}
}

func TestParts_ClosedSet(t *testing.T) {
	parts := []Part{
		TextPart{Text: "hello"},
		DataPart{Data: map[string]any{"k": "v"}},
		FunctionCallPart{FunctionCall: FunctionCall{Name: "f"}},
		FunctionResponsePart{FunctionResponse: FunctionResponse{Name: "f"}},
	}
	for _, p := range parts {
		switch pt := p.(type) {
		case TextPart, DataPart, FunctionCallPart, FunctionResponsePart:
		default:
			t.Fatalf("unexpected part type: %T (%v)", pt, pt)
		}
	}
}
