// Package llm provides the model provider layer for the agent. It wraps
// the gollm library (github.com/teilomillet/gollm) behind a small
// provider-agnostic Client so the agent loop depends on a single
// request/response contract rather than any concrete provider SDK.
//
// # Architecture
//
//   - ProviderAdapter: the interface every provider backend implements.
//   - Client: provider routing by name (or model catalog lookup) plus a
//     middleware chain for cross-cutting concerns such as retries.
//   - GollmAdapter: translates between the package types and gollm's
//     prompt API; classifies provider errors into the typed taxonomy.
//
// # Quick Start
//
//	adapter, _ := llm.NewGollmAdapter("anthropic", os.Getenv("ANTHROPIC_API_KEY"))
//	client := llm.NewClient(
//	    llm.WithProvider("anthropic", adapter),
//	    llm.WithMiddleware(llm.RetryMiddleware(llm.DefaultRetryPolicy())),
//	)
//
//	resp, err := client.Complete(ctx, llm.Request{
//	    Model:    "claude-sonnet-4-5",
//	    Messages: []llm.Message{llm.UserMessage("Hello")},
//	})
//
// Errors returned by Complete are classified: IsRetryable reports whether
// a failure is transient (rate limits, server errors, timeouts) or fatal
// to the run (authentication, invalid request, context length).
package llm
