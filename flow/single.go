package flow

// SingleAgentFlow is the flow used by model agents: instructions are
// rendered, history and user content added and tools declared.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates the default flow for agent.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewToolsProcessor())

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
