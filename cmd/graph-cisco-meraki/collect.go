package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmountifield/graph-cisco-meraki/internal/collector"
	"github.com/jmountifield/graph-cisco-meraki/pkg/startup"
)

type collectOptions struct {
	output string
	format string
}

func newCollectCmd(a *app) *cobra.Command {
	var opts collectOptions

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection and export it to the enabled backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCollect(cmd, a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the collected graph to a file, '-' for stdout")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format: yaml or json (default from the file extension, else yaml)")

	return cmd
}

func runCollect(cmd *cobra.Command, a *app, opts collectOptions) error {
	ctx := cmd.Context()
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	format, err := outputFormat(opts.output, opts.format)
	if err != nil {
		return err
	}

	deps := &infra{cfg: a.cfg, logger: a.logger}
	s := startup.NewStartup(a.logger, a.cfg.StartupMaxAttempts)
	deps.register(s)
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := shutdownContext()
		defer cancel()
		_ = s.Stop(stopCtx)
	}()

	svc, _, err := deps.collector()
	if err != nil {
		return err
	}

	result, runErr := svc.Collect(ctx)
	if result != nil && opts.output != "" {
		if err := writeOutput(cmd.OutOrStdout(), opts.output, format, result); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if result != nil {
		a.logger.WithFields(map[string]any{
			"run_id":        result.Report.RunID.String(),
			"status":        result.Report.Status,
			"entities":      result.Report.Entities,
			"relationships": result.Report.Relationships,
		}).Info("Collection finished")
	}
	return runErr
}

func outputFormat(output, format string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".json":
			format = "json"
		default:
			format = "yaml"
		}
	}
	switch format {
	case "yaml", "json":
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format '%s'", format)
	}
}

func writeOutput(stdout io.Writer, output, format string, result *collector.Result) error {
	if output == "-" {
		return encodeResult(stdout, format, result)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := encodeResult(f, format, result); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encodeResult(w io.Writer, format string, result *collector.Result) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return err
	}
	return enc.Close()
}
