// Command coscientist answers research questions with an autonomous
// agent loop: model calls, persistent Python execution, local datasets,
// and PubMed search, with an optional critic pass.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coscientist-ai/coscientist/agentloop"
	"github.com/coscientist-ai/coscientist/config"
	"github.com/coscientist-ai/coscientist/llm"
)

var (
	configFlag   string
	modelFlag    string
	providerFlag string
	dataFlag     string
	verboseFlag  bool

	withCriticFlag    bool
	maxIterationsFlag int
	roundsFlag        int
)

var rootCmd = &cobra.Command{
	Use:   "coscientist",
	Short: "coscientist - autonomous research assistant",
	Long: `coscientist answers multi-step research questions by pairing a
language model with a persistent Python session, local research
datasets, and PubMed search.`,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single research question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive mode; the Python session persists between questions",
	RunE:  runRepl,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "Model to use")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "Provider (anthropic, openai)")
	rootCmd.PersistentFlags().StringVar(&dataFlag, "data", "", "Directory of research datasets")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Stream loop events to stderr")

	askCmd.Flags().BoolVar(&withCriticFlag, "with-critic", false, "Review and refine the answer")
	askCmd.Flags().IntVar(&maxIterationsFlag, "max-iterations", 0, "Iteration budget per run")
	askCmd.Flags().IntVar(&roundsFlag, "rounds", -1, "Maximum refinement rounds")
	replCmd.Flags().BoolVar(&withCriticFlag, "with-critic", false, "Review and refine each answer")

	rootCmd.AddCommand(askCmd, replCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file with command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return cfg, err
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if dataFlag != "" {
		cfg.DataDir = dataFlag
	}
	if verboseFlag {
		cfg.Verbose = true
	}
	if maxIterationsFlag > 0 {
		cfg.MaxIterations = maxIterationsFlag
	}
	if roundsFlag >= 0 {
		cfg.RefinementRounds = roundsFlag
	}
	return cfg, cfg.Validate()
}

// buildLoop wires the loop, its tools, and the execution environment.
func buildLoop(cfg config.Config) (*agentloop.Loop, func(), error) {
	adapter, err := llm.NewGollmAdapter(cfg.Provider, "", llm.WithModel(cfg.Model))
	if err != nil {
		return nil, nil, fmt.Errorf("provider setup: %w", err)
	}
	client := llm.NewClient(
		llm.WithProvider(cfg.Provider, adapter),
		llm.WithMiddleware(llm.RetryMiddleware(llm.DefaultRetryPolicy())),
	)

	env := agentloop.NewPythonEnvironment(
		agentloop.WithPythonPath(cfg.PythonPath),
		agentloop.WithWorkingDirectory(cfg.WorkingDir),
	)

	registry := agentloop.NewToolRegistry()
	var catalog *agentloop.DatasetCatalog
	if cfg.DataDir != "" {
		catalog = agentloop.NewDatasetCatalog(cfg.DataDir)
	}
	var searcher agentloop.Searcher
	if cfg.EntrezAPIKey != "" {
		searcher = agentloop.NewEntrezClient(agentloop.WithEntrezAPIKey(cfg.EntrezAPIKey))
	} else {
		searcher = agentloop.NewEntrezClient()
	}
	agentloop.RegisterCoreTools(registry, env, catalog, searcher)

	loopCfg := agentloop.DefaultLoopConfig()
	loopCfg.Model = cfg.Model
	loopCfg.Provider = cfg.Provider
	loopCfg.Temperature = llm.Float64(cfg.Temperature)
	loopCfg.MaxTokens = llm.Int(cfg.MaxTokens)
	loopCfg.ToolTimeout = cfg.ToolTimeout()

	loop := agentloop.NewLoop(client, registry, env, &loopCfg)

	cleanup := func() {
		loop.Close()
		env.Close()
		client.Close()
	}
	return loop, cleanup, nil
}

// streamEvents prints loop events to stderr until the channel closes.
func streamEvents(loop *agentloop.Loop) {
	for ev := range loop.Events() {
		switch ev.Kind {
		case agentloop.EventToolCallStart:
			fmt.Fprintf(os.Stderr, "[%s] %v\n", ev.Kind, ev.Data["tool_name"])
		case agentloop.EventModelCall:
			fmt.Fprintf(os.Stderr, "[%s] iteration %v\n", ev.Kind, ev.Data["iteration"])
		case agentloop.EventCritiqueStart, agentloop.EventRefinement:
			fmt.Fprintf(os.Stderr, "[%s] round %v\n", ev.Kind, ev.Data["round"])
		case agentloop.EventError, agentloop.EventWarning, agentloop.EventLoopDetection, agentloop.EventBudgetExhausted:
			fmt.Fprintf(os.Stderr, "[%s] %v\n", ev.Kind, ev.Data)
		}
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	loop, cleanup, err := buildLoop(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Verbose {
		go streamEvents(loop)
	}

	question := strings.Join(args, " ")
	return answer(cmd.Context(), loop, cfg, question, os.Stdout)
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	loop, cleanup, err := buildLoop(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Verbose {
		go streamEvents(loop)
	}

	fmt.Println("coscientist repl (type 'exit' to quit, 'reset' to clear the Python session)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n? ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		if input == "reset" {
			if err := loop.ResetSession(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			} else {
				fmt.Println("Session reset.")
			}
			continue
		}

		if err := answer(cmd.Context(), loop, cfg, input, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return nil
}

// answer runs one question through the loop, with or without the critic.
func answer(ctx context.Context, loop *agentloop.Loop, cfg config.Config, question string, out *os.File) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if withCriticFlag {
		classifier := agentloop.NewKeywordClassifier(cfg.CritiqueKeywords)
		result, err := loop.RunWithCritic(ctx, question, cfg.MaxIterations, cfg.RefinementRounds, classifier)
		if err != nil {
			return err
		}
		printIncomplete(result.Complete)
		fmt.Fprintln(out, result.Answer)
		if cfg.Verbose && result.Rounds > 0 {
			fmt.Fprintf(os.Stderr, "(refined %d time(s); initial answer: %s)\n", result.Rounds, result.InitialAnswer)
		}
		return nil
	}

	result, err := loop.Run(ctx, question, cfg.MaxIterations)
	if err != nil {
		return err
	}
	printIncomplete(result.Complete)
	fmt.Fprintln(out, result.Answer)
	return nil
}

func printIncomplete(complete bool) {
	if !complete {
		fmt.Fprintln(os.Stderr, "[iteration budget exhausted; answer may be incomplete]")
	}
}
