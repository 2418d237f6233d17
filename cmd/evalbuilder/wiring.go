package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/BrowserOperator/web-agent/internal/config"
	"github.com/BrowserOperator/web-agent/internal/gateway"
	"github.com/BrowserOperator/web-agent/internal/oracle"
)

// newGateway builds the configured browser backend. The returned shutdown
// function is a no-op for backends whose browser outlives the process.
func newGateway(ctx context.Context, cfg *config.Config) (gateway.Gateway, func() error, error) {
	switch cfg.Gateway.Mode {
	case config.GatewayHTTP:
		logger.Info("using HTTP gateway", zap.String("base_url", cfg.Gateway.HTTP.BaseURL))
		return gateway.NewHTTPGateway(cfg.Gateway.HTTP), func() error { return nil }, nil

	case config.GatewayRod:
		gw := gateway.NewRodGateway(cfg.Gateway.Rod)
		if err := gw.Start(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("using rod gateway", zap.Bool("headless", cfg.Gateway.Rod.Headless))
		return gw, gw.Shutdown, nil

	default:
		return nil, nil, fmt.Errorf("unknown gateway mode %q", cfg.Gateway.Mode)
	}
}

// newOracle builds the configured code-generation backend for one task.
func newOracle(ctx context.Context, cfg *config.Config, taskID string) (oracle.Oracle, error) {
	switch cfg.Oracle.Provider {
	case config.OracleClaudeCLI:
		return oracle.NewCLIOracle(cfg.Oracle.Model, cfg.Oracle.Timeout()), nil

	case config.OracleGemini:
		return oracle.NewGeminiOracle(ctx, cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.Timeout())

	case config.OracleFile:
		o := oracle.NewArtifactOracle(cfg.OracleWorkDir(taskID), cfg.Oracle.WaitTimeout())
		fmt.Printf("Oracle requests will be written to %s\n", o.RequestPath())
		fmt.Printf("Save the validation script to %s\n", o.ArtifactPath())
		return o, nil

	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}
}

// prompt prints msg and blocks until the operator presses Enter, returning
// the trimmed line.
func prompt(in io.Reader, msg string) (string, error) {
	fmt.Print(msg)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
