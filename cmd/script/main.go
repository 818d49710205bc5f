// SPDX-License-Identifier: MIT

// Command script is the one-shot CLI entry point spec.md §6 names: it
// issues a single sync/import/export request to a running daemon and
// exits. Grounded in original_source/script.py's verb table and argument
// handling, translated from a Kodi RunScript invocation (which calls
// jsonrpc.notify() in-process) into a standalone process that reaches the
// same host JSONRPC.NotifyAll RPC hostclient.Client.Notify wraps, so a
// running cmd/daemon observes the request exactly as it would from the
// original addon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nfosync/nfosync/internal/bus"
	"github.com/nfosync/nfosync/internal/cache"
	"github.com/nfosync/nfosync/internal/config"
	"github.com/nfosync/nfosync/internal/hostclient"
	"github.com/nfosync/nfosync/internal/log"
)

// notifyConfigError is the "invalid script arguments" notification
// code from internal/actions.NotifyConfigError, duplicated here (rather
// than imported) to avoid pulling the actions package into a CLI binary
// that otherwise only needs hostclient.
const notifyConfigError = 32074

func main() {
	log.Configure(log.Config{Level: "info", Service: "nfosync-script"})
	logger := log.WithComponent("script")

	configPath := os.Getenv("NFOSYNC_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	args := os.Args[1:]
	command := "sync_all"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	host := hostclient.New(hostclient.Config{
		BaseURL:  cfg.Server.HostBaseURL,
		Cache:    cache.NewNoOpCache(),
		Timeout:  10 * time.Second,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := dispatch(ctx, host, command, args); err != nil {
		logger.Error().Err(err).Str("command", command).Msg("script command failed")
		_ = host.NotifyUser(ctx, notifyConfigError, err.Error())
		os.Exit(1)
	}
}

// notifier is the subset of hostclient.Client used by dispatch, to keep
// it testable without a live host connection.
type notifier interface {
	Notify(ctx context.Context, method string, data any) error
}

func dispatch(ctx context.Context, host notifier, command string, args []string) error {
	switch command {
	case "sync_all":
		return host.Notify(ctx, bus.Send(bus.MethodSyncAll), patientPayload(args, 0))
	case "sync_one":
		item, err := itemArgs(args)
		if err != nil {
			return fmt.Errorf("sync_one: %w", err)
		}
		return host.Notify(ctx, bus.Send(bus.MethodSyncOne), item)
	case "import_all":
		return host.Notify(ctx, bus.Send(bus.MethodImportAll), patientPayload(args, 0))
	case "export_one":
		item, err := itemArgs(args)
		if err != nil {
			return fmt.Errorf("export_one: %w", err)
		}
		return host.Notify(ctx, bus.Send(bus.MethodExportOne), item)
	case "export_all":
		return host.Notify(ctx, bus.Send(bus.MethodExportAll), patientPayload(args, 0))
	default:
		return fmt.Errorf("unknown command %q (want one of sync_all, sync_one, import_all, export_one, export_all)", command)
	}
}

// itemPayload mirrors the {type,id,patient} shape internal/service's
// trigger handlers decode.
type itemPayload struct {
	Type    json.RawMessage `json:"type"`
	ID      int              `json:"id"`
	Patient bool             `json:"patient"`
}

func itemArgs(args []string) (itemPayload, error) {
	if len(args) < 2 {
		return itemPayload{}, fmt.Errorf("missing arguments, requires: media type, library id")
	}
	var id int
	if _, err := fmt.Sscanf(args[1], "%d", &id); err != nil {
		return itemPayload{}, fmt.Errorf("invalid library id %q: %w", args[1], err)
	}
	typeJSON, err := json.Marshal(args[0])
	if err != nil {
		return itemPayload{}, err
	}
	return itemPayload{Type: typeJSON, ID: id, Patient: hasPatientFlag(args[2:])}, nil
}

func patientPayload(args []string, skip int) map[string]any {
	return map[string]any{"patient": hasPatientFlag(args[skip:])}
}

func hasPatientFlag(args []string) bool {
	for _, a := range args {
		if a == "patient" {
			return true
		}
	}
	return false
}
