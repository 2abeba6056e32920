// Package model defines the provider-agnostic abstractions for the language
// model collaborators that drive extraction, classification, generation and
// detection.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Normalize tool / function call representation (ToolDefinition)
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so the agent layer remains decoupled from vendor SDKs.
package model
