package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/examhall/internal/auth"
	"github.com/pavelanni/examhall/internal/cache"
	"github.com/pavelanni/examhall/internal/exam"
	"github.com/pavelanni/examhall/internal/handler"
	appI18n "github.com/pavelanni/examhall/internal/i18n"
	"github.com/pavelanni/examhall/internal/llm"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/reaper"
	"github.com/pavelanni/examhall/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examhall",
		Short: "Online multiple-choice exams for teachers and students",
	}

	serve := serveCmd()
	root.AddCommand(serve, userCmd(), tokenCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examhall --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// dbFlags registers the flags every database-backed command shares.
func dbFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", store.DriverSQLite, "Database driver (sqlite, postgres)")
	f.String("db", "examhall.db", "SQLite database path or PostgreSQL DSN")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	dbFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("jwt-secret", "", "HS256 secret for bearer tokens (or set EXAMHALL_JWT_SECRET)")
	f.String("jwt-issuer", "examhall", "Issuer claim of bearer tokens")
	f.StringP("lang", "l", "en", "Fallback language for messages (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /exams-api)")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (repeatable)")
	f.Duration("submit-grace", exam.DefaultSubmitGrace, "Allowed lateness past the exam deadline")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty disables question drafting)")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("redis-addr", "", "Redis address for the leaderboard cache (empty disables)")
	f.Duration("leaderboard-ttl", time.Minute, "Leaderboard cache TTL")
	f.String("reaper-schedule", "@every 1h", "Cron spec for purging orphaned attempts (empty disables)")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a teacher or student account",
		RunE:  runUserAdd,
	}
	dbFlags(add)
	f := add.Flags()
	f.String("name", "", "Display name (required)")
	f.String("email", "", "Email address (required)")
	f.String("password", "", "Password (required)")
	f.String("role", string(model.UserRoleStudent), "Role (teacher, student)")
	f.String("class", "", "Class name (students only)")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE:  runUserList,
	}
	dbFlags(list)
	list.Flags().String("role", "", "Only list this role (teacher, student)")

	cmd.AddCommand(add, list)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an existing account",
		RunE:  runToken,
	}
	dbFlags(cmd)
	f := cmd.Flags()
	f.String("user", "", "Email or public ID of the account (required)")
	f.String("password", "", "Account password (required)")
	f.String("jwt-secret", "", "HS256 secret for bearer tokens (or set EXAMHALL_JWT_SECRET)")
	f.String("jwt-issuer", "examhall", "Issuer claim of bearer tokens")
	f.Duration("ttl", auth.DefaultTTL, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export published exam results as JSON",
		RunE:  runExport,
	}
	dbFlags(cmd)
	f := cmd.Flags()
	f.String("exam-id", "", "Exam ID (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
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

// viperForCmd binds a command's flags and environment to a fresh viper
// instance. A .env file in the working directory is loaded first.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error reading .env file", "error", err)
	}

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMHALL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examhall")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examhall")
	v.AddConfigPath("/etc/examhall")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db-driver"), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuer, err := auth.NewIssuer(v.GetString("jwt-secret"), v.GetString("jwt-issuer"), 0)
	if err != nil {
		return fmt.Errorf("token issuer: %w (set --jwt-secret or EXAMHALL_JWT_SECRET)", err)
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if n, err := db.UserCount(ctx); err != nil {
		return fmt.Errorf("count users: %w", err)
	} else if n == 0 {
		slog.Warn("no accounts yet; create them with `examhall user add`")
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	opts := []exam.Option{exam.WithSubmitGrace(v.GetDuration("submit-grace"))}

	if addr := v.GetString("redis-addr"); addr != "" {
		client, err := cache.Dial(ctx, addr)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		opts = append(opts, exam.WithCache(cache.NewLeaderboard(client, v.GetDuration("leaderboard-ttl"))))
		slog.Info("leaderboard cache enabled", "redis_addr", addr)
	}

	if url := v.GetString("llm-url"); url != "" {
		llmClient, err := llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"))
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		if err := llmClient.Ping(ctx); err != nil {
			slog.Warn("LLM health check failed, question drafting disabled", "url", url, "error", err)
		} else {
			opts = append(opts, exam.WithDrafter(llmClient))
			slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
		}
	}

	if schedule := v.GetString("reaper-schedule"); schedule != "" {
		c, err := reaper.Start(db, schedule)
		if err != nil {
			return err
		}
		defer func() { <-c.Stop().Done() }()
	}

	cfg := model.ExamConfig{
		BasePath:    v.GetString("base-path"),
		CORSOrigins: v.GetStringSlice("cors-origins"),
	}
	h, err := handler.New(exam.NewService(db, opts...), db, issuer, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"db_driver", v.GetString("db-driver"),
		"lang", lang,
		"languages", appI18n.Languages(),
		"base_path", cfg.BasePath,
		"submit_grace", v.GetDuration("submit-grace"),
		"cors_origins", cfg.CORSOrigins,
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	role := model.UserRole(strings.ToLower(v.GetString("role")))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q: must be teacher or student", role)
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	hash, err := auth.HashPassword(v.GetString("password"))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u, err := db.CreateUser(cmd.Context(), model.User{
		Name:         v.GetString("name"),
		Email:        v.GetString("email"),
		PasswordHash: hash,
		Role:         role,
		ClassName:    v.GetString("class"),
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", u.PublicID, u.Role, u.Email)
	return nil
}

func runUserList(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := db.ListUsers(cmd.Context(), model.UserRole(v.GetString("role")))
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	w := cmd.OutOrStdout()
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.PublicID, u.Role, u.Name, u.Email, u.ClassName)
	}
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	issuer, err := auth.NewIssuer(v.GetString("jwt-secret"), v.GetString("jwt-issuer"), v.GetDuration("ttl"))
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	u, err := findUser(cmd.Context(), db, v.GetString("user"))
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, v.GetString("password")) {
		return errors.New("invalid credentials")
	}

	token, err := issuer.Issue(u)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

// findUser resolves an email address or a public ID.
func findUser(ctx context.Context, db *store.Store, ref string) (model.User, error) {
	var (
		u   model.User
		err error
	)
	if strings.Contains(ref, "@") {
		u, err = db.GetUserByEmail(ctx, ref)
	} else {
		u, err = db.GetUserByPublicID(ctx, strings.ToUpper(ref))
	}
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, errors.New("invalid credentials")
	}
	if err != nil {
		return model.User{}, fmt.Errorf("look up user: %w", err)
	}
	return u, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportPublishedResults(cmd.Context(), v.GetString("exam-id"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "exam_id", export.ExamID, "results", len(export.Results))
	return nil
}
