package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"crosswarped.com/mastermind"
	"crosswarped.com/mastermind/internal/stats"
	"crosswarped.com/mastermind/internal/strategy"
	"crosswarped.com/mastermind/pkg/primitives"
)

var (
	configPath string
	verbose    bool
	alphabet   int
	columns    int
	repetition bool
	symbols    string
	strat      string
	limit      int
	seed       uint64
	timeout    time.Duration

	profile           bool
	profileFile       string
	memoryProfileFile string

	runs       int
	strategies []string
	export     bool
	history    int

	head int

	rootCmd = &cobra.Command{
		Use:           "mamicli",
		Short:         "Solve Mastermind codes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	solveCmd = &cobra.Command{
		Use:   "solve [secret]",
		Short: "Let the engine find a secret, random if none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSolve,
	}

	breakCmd = &cobra.Command{
		Use:   "break",
		Short: "Think of a code and answer the engine's guesses",
		Args:  cobra.NoArgs,
		RunE:  runBreak,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Play many random games with each strategy and summarize them",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	universeCmd = &cobra.Command{
		Use:   "universe",
		Short: "Describe the code space and its openings",
		Args:  cobra.NoArgs,
		RunE:  runUniverse,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "mami.yaml", "YAML configuration file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log every round")
	pf.IntVarP(&alphabet, "alphabet", "k", 6, "Number of symbols")
	pf.IntVarP(&columns, "columns", "n", 4, "Code length")
	pf.BoolVarP(&repetition, "repetition", "r", true, "Allow a symbol more than once")
	pf.StringVar(&symbols, "symbols", "digits", "Symbol set: digits or letters")
	pf.StringVarP(&strat, "strategy", "s", "random", "Strategy: random, minimax, most-parts or expected-size")
	pf.IntVarP(&limit, "limit", "l", 10, "Rounds before giving up")
	pf.Uint64Var(&seed, "seed", 0, "Seed for the random strategy and secrets")
	pf.DurationVar(&timeout, "timeout", 10*time.Minute, "Give up after this long")
	pf.BoolVar(&profile, "profile", false, "Profile the solver")
	pf.StringVar(&profileFile, "profile-file", "cpu.pprof", "The file to write the CPU profile to")
	pf.StringVar(&memoryProfileFile, "memory-profile-file", "mem.pprof", "The file to write the memory profile to")

	statsCmd.Flags().IntVar(&runs, "runs", 0, "Games per strategy")
	statsCmd.Flags().StringSliceVar(&strategies, "strategies", nil, "Strategies to compare")
	statsCmd.Flags().BoolVar(&export, "export", false, "Append the summaries to the configured BigQuery table")
	statsCmd.Flags().IntVar(&history, "history", 0, "Print the latest exported summaries per strategy instead of playing")

	universeCmd.Flags().IntVar(&head, "head", 10, "Print the first codes")

	rootCmd.AddCommand(solveCmd, breakCmd, statsCmd, universeCmd)
}

func main() {
	_ = godotenv.Load(".env")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig layers the flags the user set over the file and environment.
func loadConfig(cmd *cobra.Command) (mastermind.Config, error) {
	cfg, err := mastermind.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("alphabet") {
		cfg.Alphabet = alphabet
	}
	if flags.Changed("columns") {
		cfg.Columns = columns
	}
	if flags.Changed("repetition") {
		cfg.Repetition = repetition
	}
	if flags.Changed("symbols") {
		cfg.Symbols = symbols
	}
	if flags.Changed("strategy") {
		cfg.Strategy = strat
	}
	if flags.Changed("limit") {
		cfg.Limit = limit
	}
	if flags.Changed("seed") {
		cfg.Seed = &seed
	}
	if flags.Changed("runs") {
		cfg.Stats.Runs = runs
	}
	if flags.Changed("strategies") {
		cfg.Stats.Strategies = strategies
	}
	return cfg, cfg.Validate()
}

func openEngine(ctx context.Context, cfg mastermind.Config) (*mastermind.Engine, error) {
	space, err := cfg.Space()
	if err != nil {
		return nil, err
	}
	return mastermind.OpenEngine(ctx, cfg, space, slog.Default())
}

func closeEngine(e *mastermind.Engine) {
	if err := e.Close(context.Background()); err != nil {
		slog.Warn("closing engine", "error", err)
	}
}

func startProfile() (stop func(), err error) {
	if !profile {
		return func() {}, nil
	}

	f, err := os.Create(profileFile)
	if err != nil {
		return nil, fmt.Errorf("creating profile file: %w", err)
	}
	mf, err := os.Create(memoryProfileFile)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating memory profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		mf.Close()
		return nil, fmt.Errorf("starting CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		f.Close()
		if err := pprof.WriteHeapProfile(mf); err != nil {
			slog.Warn("writing heap profile", "error", err)
		}
		mf.Close()
	}, nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	rng := mastermind.NewRand(cfg)
	var secret primitives.Code
	if len(args) == 1 {
		if secret, err = engine.Space.ParseCode(args[0]); err != nil {
			return err
		}
	} else {
		secret = engine.Space.Random(rng)
		fmt.Println("Secret:", secret)
	}

	stop, err := startProfile()
	if err != nil {
		return err
	}
	defer stop()

	t, err := mastermind.Solve(ctx, cfg, secret, mastermind.WithEngine(engine), mastermind.WithRand(rng))
	fmt.Println(t.Repr())
	if err != nil {
		return err
	}
	if verbose {
		fmt.Println(t.DebugString())
	}
	return nil
}

func runBreak(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	s, err := mastermind.NewSession(ctx, cfg, mastermind.WithEngine(engine))
	if err != nil {
		return err
	}

	fmt.Printf("Think of %d symbols from %s", cfg.Columns, engine.Space.Alphabet())
	if !cfg.Repetition {
		fmt.Print(", all different")
	}
	fmt.Println(". Answer each guess with black,white.")

	return playBreaker(ctx, s, os.Stdin, os.Stdout)
}

// playBreaker asks for feedback on each guess until the session ends. Running out of input
// before that is an error naming the unanswered round.
func playBreaker(ctx context.Context, s *mastermind.Session, r io.Reader, w io.Writer) error {
	in := bufio.NewScanner(r)
	for !s.State().Terminal() {
		guess, err := s.NextGuess(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Round %d, %d candidates. Guess %s: ", s.Round()+1, s.Remaining(), guess)
		if !in.Scan() {
			fmt.Fprintln(w)
			if t := s.Transcript(); t.Len() > 0 {
				fmt.Fprintln(w, t.Repr())
			}
			if err := in.Err(); err != nil {
				return fmt.Errorf("round %d: reading feedback: %w", s.Round()+1, err)
			}
			return fmt.Errorf("round %d: input ended before the code was found", s.Round()+1)
		}

		line := strings.TrimSpace(in.Text())
		if line == "s" || line == "S" {
			fmt.Fprintln(w, s.Pool())
			continue
		}
		fb, err := primitives.ParseFeedback(line)
		if err != nil {
			fmt.Fprintln(w, err)
			continue
		}
		if err := s.ApplyFeedback(guess, fb); err != nil {
			if errors.Is(err, mastermind.ErrInconsistentFeedback) {
				fmt.Fprintln(w, "No code agrees with every answer so far, check this one again.")
				continue
			}
			fmt.Fprintln(w, err)
			continue
		}
	}

	fmt.Fprintln(w, "--------------------------------")
	fmt.Fprintln(w, s.Transcript().Repr())
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if history > 0 {
		return printHistory(ctx, cfg)
	}

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	var kinds []strategy.Kind
	for _, name := range cfg.Stats.Strategies {
		k, err := strategy.ParseKind(name)
		if err != nil {
			return err
		}
		kinds = append(kinds, k)
	}

	stop, err := startProfile()
	if err != nil {
		return err
	}
	summaries, err := stats.Run(ctx, stats.Params{
		Config:     cfg,
		Strategies: kinds,
		Engine:     engine,
		Logger:     slog.Default(),
	})
	stop()
	for _, s := range summaries {
		fmt.Println("--------------------------------")
		fmt.Println(s.Repr())
	}
	if err != nil {
		return err
	}

	if !export {
		return nil
	}
	if cfg.Stats.BigQuery.Project == "" {
		return errors.New("--export needs stats.bigquery.project in the configuration")
	}
	exporter, err := stats.NewExporter(ctx, cfg.Stats.BigQuery)
	if err != nil {
		return err
	}
	defer exporter.Close()
	if err := exporter.Export(ctx, summaries); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Printf("Exported %d summaries to %s.%s\n", len(summaries), cfg.Stats.BigQuery.Dataset, cfg.Stats.BigQuery.Table)
	return nil
}

func printHistory(ctx context.Context, cfg mastermind.Config) error {
	if cfg.Stats.BigQuery.Project == "" {
		return errors.New("--history needs stats.bigquery.project in the configuration")
	}
	space, err := cfg.Space()
	if err != nil {
		return err
	}
	exporter, err := stats.NewExporter(ctx, cfg.Stats.BigQuery)
	if err != nil {
		return err
	}
	defer exporter.Close()

	for _, name := range cfg.Stats.Strategies {
		k, err := strategy.ParseKind(name)
		if err != nil {
			return err
		}
		rows, err := exporter.History(ctx, k.String(), space.Signature(), history)
		if err != nil {
			return fmt.Errorf("history of %s: %w", k, err)
		}
		fmt.Println("--------------------------------")
		fmt.Printf("%s over %s, %d exported runs\n", k, space.Signature(), len(rows))
		for _, r := range rows {
			fmt.Println(r.Repr())
		}
	}
	return nil
}

func runUniverse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	space, err := cfg.Space()
	if err != nil {
		return err
	}
	fmt.Println(space)
	fmt.Println("Signature:", space.Signature())
	fmt.Println("Codes:", space.Size())
	for _, sc := range []mastermind.Scheme{mastermind.SchemeAABB, mastermind.SchemeAABC, mastermind.SchemeABCD} {
		fmt.Printf("Opening %s: %s\n", sc, space.Opening(sc))
	}

	if head <= 0 {
		return nil
	}
	universe, err := space.Universe(cmd.Context())
	if err != nil {
		return err
	}
	for _, c := range universe[:min(head, len(universe))] {
		fmt.Println(c)
	}
	return nil
}
