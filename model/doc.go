// Package model defines the provider independent Model interface used by
// agents to talk to language models, plus helpers shared by every provider:
//
//   - Request/Response shapes with normalised tool definitions
//   - Consume for draining the streaming channel pair
//   - RetryModel, an exponential backoff decorator for transient failures
//   - MockModel and Func for offline runs and tests
//
// Vendor adapters live in the gemini, openai and anthropic sub-packages.
package model
