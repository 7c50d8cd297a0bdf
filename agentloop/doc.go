// Package agentloop implements an autonomous problem-solving loop for
// research questions.
//
// It pairs a large language model with a persistent code execution
// session and research tools, cycling model calls and tool dispatch
// within an iteration budget until the model commits to a final answer.
// An optional critic pass reviews the answer and drives refinement
// rounds.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - Loop: The orchestrator driving the question -> model -> tools
//     cycle, enforcing the iteration budget and recording the transcript.
//   - ExecutionEnvironment: A persistent code session. PythonEnvironment
//     runs one long-lived interpreter whose namespace survives across
//     calls and across faults.
//   - ToolRegistry: Registration and dispatch of tool definitions, with
//     typed dispatch errors the loop turns into error observations.
//   - Critic: A tool-free review call plus keyword classification that
//     decides whether the answer needs another pass.
//   - EventEmitter: Typed event stream for host application integration.
//
// # Quick Start
//
//	client := llm.NewClientFromEnv()
//	env := agentloop.NewPythonEnvironment()
//	defer env.Close()
//
//	registry := agentloop.NewToolRegistry()
//	agentloop.RegisterCoreTools(registry, env, nil, nil)
//
//	loop := agentloop.NewLoop(client, registry, env, nil)
//	defer loop.Close()
//
//	result, err := loop.Run(ctx, "What is the GC content of this sequence?", 15)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Answer)
package agentloop
