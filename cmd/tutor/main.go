package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edaccel/tutor/internal/evaluator"
	"github.com/edaccel/tutor/internal/handler"
	appI18n "github.com/edaccel/tutor/internal/i18n"
	"github.com/edaccel/tutor/internal/llm"
	"github.com/edaccel/tutor/internal/llm/prompts"
	"github.com/edaccel/tutor/internal/orchestrator"
	"github.com/edaccel/tutor/internal/passage"
	"github.com/edaccel/tutor/internal/pool"
	"github.com/edaccel/tutor/internal/quiz"
	"github.com/edaccel/tutor/internal/store"
	"github.com/edaccel/tutor/internal/teach"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tutor",
		Short: "Guided reading tutor powered by LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, passageCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `tutor --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP tutoring server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("questions", "q", "", "Path to a question bank JSON file (default: built-in bank)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Duration("llm-timeout", llm.DefaultTimeout, "Per-attempt timeout for LLM calls")
	f.Int("llm-retries", 2, "Retries after a failed LLM call")
	f.StringP("lang", "l", "en", "Response language (en, ru)")
	f.Int("teach-exchanges", teach.DefaultExchanges, "Teaching exchanges before the quiz")
	f.Int("quiz-time-limit", quiz.DefaultTimeLimit, "Quiz time limit in seconds")
	f.Duration("session-ttl", store.DefaultTTL, "Idle time before a session is dropped (0 = never)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func passageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passage",
		Short: "Print the reading passage and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := passage.Default()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", p.Title, p.Content)
			return nil
		},
	}
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("TUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("tutor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/tutor")
	v.AddConfigPath("/etc/tutor")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	// Load the question bank.
	var bank *pool.Bank
	var err error
	if path := v.GetString("questions"); path != "" {
		bank, err = pool.LoadFile(path)
	} else {
		bank, err = pool.Load()
	}
	if err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}

	// Parse prompt templates up front so a broken template fails at startup.
	if err := prompts.Load(); err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Create LLM client.
	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetDuration("llm-timeout"),
		v.GetInt("llm-retries"),
	)
	if err := llmClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))

	p := passage.Default()
	st := store.New(v.GetDuration("session-ttl"))
	defer st.Close()

	orch := orchestrator.New(
		st,
		evaluator.New(llmClient, bank, p),
		teach.New(llmClient, p, v.GetInt("teach-exchanges")),
		quiz.NewGenerator(bank, v.GetInt("quiz-time-limit")),
		quiz.NewGrader(llmClient, p),
		p,
	)

	h := handler.New(orch, version)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"teach_exchanges", v.GetInt("teach-exchanges"),
		"quiz_time_limit", v.GetInt("quiz-time-limit"),
		"session_ttl", v.GetDuration("session-ttl"),
	)
	return http.ListenAndServe(addr, r)
}
