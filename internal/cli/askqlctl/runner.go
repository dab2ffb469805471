// Package askqlctl implements the askqlctl command line: remote calls to the
// askql API, offline SQL linting and demo data seeding.
package askqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/artevida/askql/internal/catalog"
	"github.com/artevida/askql/internal/config"
	"github.com/artevida/askql/internal/conversation"
	"github.com/artevida/askql/internal/sqlguard"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	// Lookup reads configuration for seed; nil means the process environment.
	Lookup config.LookupFunc
	Seeder Seeder
}

// exitError carries a specific process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: 2, err: err}
}

// Run executes one command line and returns the process exit code: 0 on
// success, 1 on failure or an invalid lint verdict, 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	defaults.Stdout, defaults.Stderr = stdout, stderr

	root := NewRootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			_, _ = fmt.Fprintln(stderr, exit.err)
		}
		if exit.code == 2 {
			_, _ = fmt.Fprintln(stderr, root.UsageString())
		}
		return exit.code
	}
	_, _ = fmt.Fprintln(stderr, err)
	if strings.HasPrefix(err.Error(), "unknown command") {
		_, _ = fmt.Fprintln(stderr, root.UsageString())
		return 2
	}
	return 1
}

func NewRootCommand(defaults Options) *cobra.Command {
	opts := defaults
	root := &cobra.Command{
		Use:           "askqlctl",
		Short:         "Command line client for the askql API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&opts.BaseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "askql API base URL")
	flags.StringVar(&opts.APIKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	flags.DurationVar(&opts.Timeout, "timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")

	root.AddCommand(
		newGetCommand(&opts, "health", "/v1/health", "Check that the API is up"),
		newGetCommand(&opts, "ready", "/v1/ready", "Check that the API dependencies are reachable"),
		newAskCommand(&opts),
		newLintCommand(&opts),
		newSeedCommand(&opts),
	)
	return root
}

func newGetCommand(opts *Options, name, path, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return callAPI(cmd.Context(), opts, http.MethodGet, path, nil)
		},
	}
}

func newAskCommand(opts *Options) *cobra.Command {
	var contextFile string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question and print the answer as JSON",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := map[string]any{"question": strings.Join(args, " ")}
			if contextFile != "" {
				turns, err := readTurns(contextFile)
				if err != nil {
					return usageError(err)
				}
				request["conversationContext"] = turns
			}
			body, err := json.Marshal(request)
			if err != nil {
				return err
			}
			return callAPI(cmd.Context(), opts, http.MethodPost, "/v1/ask", body)
		},
	}
	cmd.Flags().StringVar(&contextFile, "context", "", "JSON file with previous turns [{question, sql, summary}]")
	return cmd
}

func readTurns(path string) ([]conversation.Turn, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}
	var turns []conversation.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("parse context file: %w", err)
	}
	return conversation.Window(turns), nil
}

type lintOutput struct {
	Valid        bool   `json:"valid"`
	SanitizedSQL string `json:"sanitizedSql,omitempty"`
	ErrorKind    string `json:"errorKind,omitempty"`
	Message      string `json:"message,omitempty"`
}

func newLintCommand(opts *Options) *cobra.Command {
	var defaultLimit int
	cmd := &cobra.Command{
		Use:   "lint [file|-]",
		Short: "Validate SQL offline against the query safety rules",
		Long: `lint reads one SQL statement from a file, or from standard input when the
argument is "-" or missing, and prints the validator verdict as JSON. The exit
code is 1 when the statement would be rejected.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			sql, err := readSource(source, opts.Stdin)
			if err != nil {
				return err
			}

			validator := sqlguard.New(catalog.Default(), sqlguard.WithDefaultLimit(defaultLimit))
			result := validator.Validate(sql)
			out := lintOutput{Valid: result.Valid, SanitizedSQL: result.SanitizedSQL}
			if result.Err != nil {
				out.ErrorKind = string(result.Err.Kind)
				out.Message = result.Err.Message
			}
			if err := printJSON(opts.Stdout, out); err != nil {
				return err
			}
			if !result.Valid {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&defaultLimit, "default-limit", sqlguard.DefaultLimit, "LIMIT appended when missing (0 disables)")
	return cmd
}

func readSource(source string, stdin io.Reader) (string, error) {
	if source == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", source, err)
	}
	return string(raw), nil
}

func callAPI(ctx context.Context, opts *Options, method, path string, body []byte) error {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	endpoint := strings.TrimRight(opts.BaseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, opts.APIKey, body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if code >= 400 {
		return fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(responseBody)))
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(opts.Stdout, pretty)
		return nil
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(opts.Stdout, string(responseBody))
	}
	return nil
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func printJSON(w io.Writer, value any) error {
	formatted, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(formatted))
	return err
}

// usageArgs reports positional argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
