// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildcell/lib/buildspec"
	"github.com/bureau-foundation/buildcell/lib/process"
	"github.com/bureau-foundation/buildcell/lib/version"
	"github.com/bureau-foundation/buildcell/sandbox"
)

func main() {
	// The init stage is dispatched before flag parsing: it is the
	// re-executed PID 1 of the new namespaces, not part of the CLI
	// surface. InitMain never returns.
	if len(os.Args) > 1 && os.Args[1] == sandbox.InitCommandName() {
		sandbox.InitMain(os.Args[2:], newLogger())
	}

	if err := run(); err != nil {
		if code, ok := sandbox.IsExitError(err); ok {
			os.Exit(code)
		}
		var stepErr *sandbox.StepError
		if errors.As(err, &stepErr) {
			process.FatalCode(err, sandbox.SetupFailureCode)
		}
		process.Fatal(err)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("BUILDCELL_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func run() error {
	flagSet := pflag.NewFlagSet("buildcell", pflag.ContinueOnError)
	check := flagSet.Bool("check", false, "run preflight checks instead of executing")
	dryRun := flagSet.Bool("dry-run", false, "print the mount plan and command without executing")
	showVersion := flagSet.Bool("version", false, "show version")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.Usage = printHelp

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp()
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp()
		return nil
	}
	if *showVersion {
		fmt.Printf("buildcell %s\n", version.Full())
		return nil
	}

	args := flagSet.Args()
	if len(args) != 1 {
		printHelp()
		return fmt.Errorf("exactly one specification file is required")
	}

	// A malformed or unreadable document fails here, before any
	// namespace or mount operation.
	spec, err := buildspec.Load(args[0])
	if err != nil {
		return err
	}

	if *check {
		validator := sandbox.NewValidator()
		validator.ValidateAll(spec)
		validator.PrintResults(os.Stdout)
		if validator.HasErrors() {
			return fmt.Errorf("preflight validation failed")
		}
		return nil
	}

	if *dryRun {
		printPlan(spec)
		return nil
	}

	return sandbox.Run(spec, args[0], newLogger())
}

// printPlan shows what the init stage would do, without creating any
// namespace or performing any mount.
func printPlan(spec *buildspec.Spec) {
	resolvConf, err := sandbox.ResolveResolvConf()
	if err != nil {
		// The dry run shows the template even when the host file is
		// missing; the real run would fail on it.
		resolvConf = "/etc/resolv.conf"
	}

	fmt.Printf("clone into user, pid, mount namespaces (uid %d gid %d mapped from invoking user)\n",
		spec.User.UID, spec.User.GID)
	for _, step := range sandbox.BuildMountPlan(spec, resolvConf) {
		fmt.Println(step)
	}
	fmt.Printf("chroot %s && cd /\n", spec.Rootfs)
	fmt.Printf("PATH=%s\n", sandbox.PathFor(spec.User.UID))
	fmt.Printf("exec %v\n", spec.Process.Args)
}

func printHelp() {
	fmt.Print(`buildcell - Run one build command in an unprivileged namespace sandbox

USAGE
    buildcell [flags] <spec-file>

The specification file is JSON (comments and trailing commas tolerated)
or YAML when the extension is .yaml/.yml:

    rootfs       absolute path that becomes the sandbox's /
    user         uid and gid the command runs as inside the sandbox
    process      args, the command line (args[0] resolved via sandbox PATH)
    bindMounts   source/destination pairs, destination relative to rootfs

FLAGS
    --check      Run preflight checks instead of executing
    --dry-run    Print the mount plan and command without executing
    --version    Show version
    -h, --help   Show help

EXIT CODES
    The sandboxed command's exit code is propagated verbatim. A command
    that cannot be executed exits 1. A sandbox setup fault exits 125.

ENVIRONMENT
    BUILDCELL_DEBUG   Enable debug logging
`)
}
