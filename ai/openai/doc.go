// Package openai provides ai.Embedder and ai.Generator implementations for
// OpenAI-compatible APIs, including local servers such as Ollama and
// llama.cpp that expose the /v1 surface.
//
// The embedder supports optional client-side rate limiting for upstream
// services with call quotas. The generator performs chat-completion answer
// synthesis; it reports its context window but never truncates input, which
// is the caller's responsibility.
package openai
