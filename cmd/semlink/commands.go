package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/c360studio/semstreams/agentic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semlink/config"
	semlinktools "github.com/c360studio/semlink/processor/semlink-tools"
	"github.com/c360studio/semlink/rdf"
	"github.com/c360studio/semlink/shacl"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// loadConfig applies the config layers and the --config file.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.NewLoader(newLogger(o.logLevel)).Load(o.configPath)
}

// newApp loads the config and builds the components.
func (o *rootOptions) newApp(ctx context.Context) (*App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApp(ctx, cfg, newLogger(o.logLevel))
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}
	var runTool toolArgs

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Linked data tools for agents",
		Long: `Semlink exposes linked data tools to agents.

It provides:
- SPARQL querying, query checks and local graph queries
- JSON-LD vocabulary lookup, context composition and LOD retrieval
- SHACL and SPARQL CONSTRUCT reasoning over JSON-LD
- Knowledge sessions with graph exploration and evidence collection

Tools run from the command line, over HTTP (serve) or as a NATS
JetStream worker (serve --worker).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runTool.name == "" {
				return cmd.Help()
			}
			return runToolCommand(cmd, opts, runTool)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&runTool.name, "run-tool", "", "Run a single tool and exit")
	runTool.bind(cmd)

	cmd.AddCommand(
		newRunToolCmd(opts),
		newListToolsCmd(opts),
		newServeCmd(opts),
		newValidateCmd(opts),
		newConfigCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// toolArgs holds the argument flags of a tool run.
type toolArgs struct {
	name     string
	json     string
	file     string
	pairs    []string
	asResult bool
}

func (t *toolArgs) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.json, "args", "", "Tool arguments as a JSON object")
	cmd.Flags().StringVar(&t.file, "args-file", "", "File holding the tool arguments as a JSON object (- for stdin)")
	cmd.Flags().StringArrayVar(&t.pairs, "arg", nil, "Single argument as key=value, applied over --args")
	cmd.Flags().BoolVar(&t.asResult, "result", false, "Print the full tool result as JSON")
}

// arguments merges --args or --args-file with the --arg pairs.
func (t *toolArgs) arguments(stdin io.Reader) (map[string]any, error) {
	args := map[string]any{}
	raw := t.json
	switch {
	case t.file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read arguments: %w", err)
		}
		raw = string(data)
	case t.file != "":
		data, err := os.ReadFile(t.file)
		if err != nil {
			return nil, fmt.Errorf("read arguments: %w", err)
		}
		raw = string(data)
	}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}
	for _, pair := range t.pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q, want key=value", pair)
		}
		args[key] = value
	}
	return args, nil
}

func newRunToolCmd(opts *rootOptions) *cobra.Command {
	var ta toolArgs
	cmd := &cobra.Command{
		Use:   "run-tool <name>",
		Short: "Run a single tool and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ta.name = args[0]
			return runToolCommand(cmd, opts, ta)
		},
	}
	ta.bind(cmd)
	return cmd
}

func runToolCommand(cmd *cobra.Command, opts *rootOptions, ta toolArgs) error {
	args, err := ta.arguments(cmd.InOrStdin())
	if err != nil {
		return err
	}

	app, err := opts.newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Shutdown(5 * time.Second)

	if _, ok := app.Registry().Lookup(ta.name); !ok {
		return fmt.Errorf("unknown tool: %s", ta.name)
	}

	result, err := app.Registry().Execute(cmd.Context(), agentic.ToolCall{
		ID:        "cli-" + ta.name,
		Name:      ta.name,
		Arguments: args,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ta.asResult {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else if result.Content != "" {
		fmt.Fprintln(out, result.Content)
	}
	if result.Error != "" {
		return fmt.Errorf("%s: %s", ta.name, result.Error)
	}
	return nil
}

func newListToolsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list-tools",
		Short: "List the available tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Shutdown(5 * time.Second)

			defs := app.Registry().ListTools()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(defs)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, def := range defs {
				fmt.Fprintf(tw, "%s\t%s\n", def.Name, firstSentence(def.Description))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tool definitions as JSON")
	return cmd
}

// firstSentence trims a description to its first sentence.
func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr         string
		withWorker   bool
		workerSuffix string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over HTTP and optionally NATS JetStream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := newLogger(opts.logLevel)

			app, err := NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Shutdown(10 * time.Second)

			if withWorker {
				wcfg := semlinktools.DefaultConfig()
				wcfg.ConsumerNameSuffix = workerSuffix
				wcfg.Timeout = cfg.SPARQL.DefaultTimeout.String()
				if err := app.StartWorker(ctx, wcfg); err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           newHandler(app, cfg.Server.MetricsEnabled),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("Serving tools", "addr", cfg.Server.Addr, "tools", len(app.Registry().ListTools()))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
				logger.Info("Received shutdown signal")
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&withWorker, "worker", false, "Also consume tool calls from NATS JetStream")
	cmd.Flags().StringVar(&workerSuffix, "worker-suffix", "", "Suffix for the JetStream consumer names")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var (
		shapes    []string
		root      string
		format    string
		inference string
	)
	cmd := &cobra.Command{
		Use:   "validate <data-file>",
		Short: "Validate an RDF file against the configured SHACL shapes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if len(shapes) > 0 {
				cfg.Shapes.Patterns = shapes
			}

			data, err := readGraph(args[0], format)
			if err != nil {
				return err
			}

			files, err := cfg.ShapeFiles(root)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no shape files match %s under %s", strings.Join(cfg.Shapes.Patterns, ", "), root)
			}
			shapesGraph := rdf.NewGraph()
			for _, file := range files {
				g, err := readGraph(file, "")
				if err != nil {
					return err
				}
				shapesGraph.Merge(g)
			}

			outcome, err := shacl.Validate(cmd.Context(), data, shapesGraph,
				shacl.WithInference(shacl.Inference(inference)),
				shacl.WithLogger(newLogger(opts.logLevel)))
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), outcome.Report.Text())
			if !outcome.Conforms {
				return fmt.Errorf("%s does not conform (%d violations)", args[0], len(outcome.Report.Violations()))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&shapes, "shapes", nil, "Shape file globs (overrides shapes.patterns)")
	cmd.Flags().StringVar(&root, "root", ".", "Directory the shape globs are relative to")
	cmd.Flags().StringVar(&format, "format", "", "Data format (default: from the extension or content)")
	cmd.Flags().StringVar(&inference, "inference", string(shacl.InferenceNone), "Entailment before validation (none, rdfs)")
	return cmd
}

// readGraph parses an RDF file. The format comes from the name given,
// then the file extension, then the content.
func readGraph(path, format string) (*rdf.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)

	var f rdf.Format
	switch {
	case format != "":
		if f, err = rdf.ParseFormat(format); err != nil {
			return nil, fmt.Errorf("%s: %w", format, err)
		}
	default:
		if f, err = rdf.ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err != nil {
			var ok bool
			if f, ok = rdf.SniffFormat(content); !ok {
				return nil, fmt.Errorf("%s: cannot tell the RDF format", path)
			}
		}
	}

	base := path
	if abs, err := filepath.Abs(path); err == nil {
		base = "file://" + filepath.ToSlash(abs)
	}
	g, err := rdf.ParseGraph(content, f, &rdf.ParseOptions{Base: base})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return g, nil
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialise configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create the user config file with defaults",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return config.NewLoader(newLogger(opts.logLevel)).EnsureUserConfig()
			},
		},
	)
	return cmd
}
