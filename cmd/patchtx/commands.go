package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"github.com/viant/patchtx"
	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/service/parser"
	"gopkg.in/yaml.v3"
)

// flags shared by apply and check
type txFlags struct {
	root        string
	configURL   string
	batchURL    string
	verify      string
	workdir     string
	host        string
	credentials string
	timeout     time.Duration
	window      int
	jsonOutput  bool
	verbose     bool
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "patchtx",
		Short:         "Apply unified-diff patches atomically with verification and rollback",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newApplyCmd(), newCheckCmd(), newDiffCmd())
	return rootCmd
}

func newApplyCmd() *cobra.Command {
	flags := &txFlags{}
	cmd := &cobra.Command{
		Use:   "apply [patch-file|-]",
		Short: "Apply a patch or batch file as one transaction",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, flags, args)
		},
	}
	bindTxFlags(cmd, flags)
	cmd.Flags().StringVar(&flags.verify, "verify", "", "verification command; a non-zero exit rolls back")
	cmd.Flags().StringVar(&flags.workdir, "workdir", "", "verification working directory, relative to root")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "verification timeout (default 2m)")
	cmd.Flags().StringVar(&flags.host, "host", "", "run verification in a session on this host (localhost or ssh://host:port)")
	cmd.Flags().StringVar(&flags.credentials, "credentials", "", "ssh credentials reference for --host")
	return cmd
}

func newCheckCmd() *cobra.Command {
	flags := &txFlags{}
	cmd := &cobra.Command{
		Use:   "check [patch-file|-]",
		Short: "Validate a patch or batch file without writing anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, flags, args)
		},
	}
	bindTxFlags(cmd, flags)
	return cmd
}

func newDiffCmd() *cobra.Command {
	var path string
	var contextLines int
	cmd := &cobra.Command{
		Use:   "diff old-file new-file",
		Short: "Print a unified diff between two files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fs := afs.New()
			oldContent, err := fs.DownloadWithURL(ctx, args[0])
			if err != nil {
				return err
			}
			newContent, err := fs.DownloadWithURL(ctx, args[1])
			if err != nil {
				return err
			}
			if path == "" {
				path = filepath.Base(args[1])
			}
			srv, err := patchtx.New(".")
			if err != nil {
				return err
			}
			text, _, err := srv.Diff(oldContent, newContent, path, contextLines)
			if errors.Is(err, parser.ErrNoChange) {
				return nil
			}
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "path shown in diff headers")
	cmd.Flags().IntVarP(&contextLines, "context", "U", 3, "context lines")
	return cmd
}

func bindTxFlags(cmd *cobra.Command, flags *txFlags) {
	cmd.Flags().StringVarP(&flags.root, "root", "r", ".", "project root (directory or afs URL)")
	cmd.Flags().StringVarP(&flags.configURL, "config", "c", "", "YAML config file")
	cmd.Flags().StringVarP(&flags.batchURL, "batch", "b", "", "YAML or JSON batch file (changes and verify)")
	cmd.Flags().IntVarP(&flags.window, "window", "w", -1, "fuzzy match window in lines (default from config)")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "print the result as JSON")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log every state transition")
}

func runApply(cmd *cobra.Command, flags *txFlags, args []string) error {
	ctx := cmd.Context()
	srv, request, err := prepare(ctx, cmd, flags, args)
	if err != nil {
		return err
	}
	defer srv.Close()
	if flags.verify != "" {
		request.Verify = &model.Verification{Command: flags.verify, Workdir: flags.workdir, TimeoutMs: int(flags.timeout / time.Millisecond)}
	}
	result, err := srv.Apply(ctx, request)
	if printErr := printApply(cmd.OutOrStdout(), flags.jsonOutput, result); printErr != nil {
		return printErr
	}
	if err != nil {
		return err
	}
	if !result.Success {
		return &exitCodeError{code: exitFailed}
	}
	return nil
}

func runCheck(cmd *cobra.Command, flags *txFlags, args []string) error {
	ctx := cmd.Context()
	srv, request, err := prepare(ctx, cmd, flags, args)
	if err != nil {
		return err
	}
	defer srv.Close()
	result := srv.Check(ctx, request)
	if err := printCheck(cmd.OutOrStdout(), flags.jsonOutput, result); err != nil {
		return err
	}
	if !result.Success {
		return &exitCodeError{code: exitFailed}
	}
	return nil
}

func prepare(ctx context.Context, cmd *cobra.Command, flags *txFlags, args []string) (*patchtx.Service, *model.Request, error) {
	config := patchtx.DefaultConfig()
	if flags.configURL != "" {
		var err error
		if config, err = patchtx.LoadConfig(ctx, flags.configURL); err != nil {
			return nil, nil, err
		}
	}
	if flags.window >= 0 {
		config.Window = flags.window
	}
	if flags.host != "" {
		config.Oracle = &patchtx.OracleConfig{Host: flags.host, Credentials: flags.credentials}
	}
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	srv, err := patchtx.New(flags.root, patchtx.WithConfig(config), patchtx.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	request, err := loadRequest(ctx, cmd, flags, args)
	if err != nil {
		srv.Close()
		return nil, nil, err
	}
	return srv, request, nil
}

// loadRequest reads the batch file and appends the patch argument, if any.
func loadRequest(ctx context.Context, cmd *cobra.Command, flags *txFlags, args []string) (*model.Request, error) {
	request := &model.Request{}
	fs := afs.New()
	if flags.batchURL != "" {
		data, err := fs.DownloadWithURL(ctx, flags.batchURL)
		if err != nil {
			return nil, fmt.Errorf("failed to read batch %v: %w", flags.batchURL, err)
		}
		if err := yaml.Unmarshal(data, request); err != nil {
			return nil, fmt.Errorf("failed to decode batch %v: %w", flags.batchURL, err)
		}
	}
	if len(args) == 1 {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = fs.DownloadWithURL(ctx, args[0])
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read patch: %w", err)
		}
		request.Changes = append(request.Changes, parser.Changes(string(data))...)
	}
	if len(request.Changes) == 0 {
		return nil, fmt.Errorf("nothing to apply: pass a patch file, - for stdin, or --batch")
	}
	return request, nil
}

func printApply(w io.Writer, asJSON bool, result *model.TransactionResult) error {
	if result == nil {
		return nil
	}
	if asJSON {
		return writeJSON(w, result)
	}
	if result.Success {
		added, deleted := result.NetLines()
		fmt.Fprintf(w, "committed %s: %d files, +%d -%d\n", result.ID, len(result.Files), added, deleted)
		for _, stat := range result.Files {
			fmt.Fprintf(w, "  %-7s %s (+%d -%d)\n", stat.Operation, stat.Path, stat.LinesAdded, stat.LinesDeleted)
		}
		return nil
	}
	fmt.Fprintf(w, "rolled back %s (restored: %v)\n", result.ID, result.RollbackPerformed)
	printError(w, result.Error)
	if result.VerificationOutput != "" {
		fmt.Fprintf(w, "verification output (exit %d):\n%s\n", result.ExitCode, result.VerificationOutput)
	}
	return nil
}

func printCheck(w io.Writer, asJSON bool, result *model.CheckResult) error {
	if asJSON {
		return writeJSON(w, result)
	}
	for _, match := range result.Matches {
		status := "ok"
		if !match.Result.Success {
			status = "failed"
		}
		fmt.Fprintf(w, "  %-6s %s (+%d -%d)\n", status, match.Path, match.Result.LinesAdded, match.Result.LinesDeleted)
	}
	if result.Success {
		fmt.Fprintln(w, "check passed")
		return nil
	}
	printError(w, result.Error)
	return nil
}

func printError(w io.Writer, failure *model.Error) {
	if failure == nil {
		return
	}
	fmt.Fprintf(w, "error: %v\n", failure)
	if failure.Line > 0 {
		fmt.Fprintf(w, "  at line %d (offset %d)\n", failure.Line, failure.Offset)
	}
	if failure.Expected != "" || failure.Found != "" {
		fmt.Fprintf(w, "  expected:\n%s\n  found:\n%s\n", indent(failure.Expected), indent(failure.Found))
	}
}

func indent(text string) string {
	if text == "" {
		return "    <nothing>"
	}
	return "    " + strings.ReplaceAll(text, "\n", "\n    ")
}

func writeJSON(w io.Writer, value interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
