package commands

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dapgui/dapgui/internal/dap/session"
	"github.com/dapgui/dapgui/internal/dapconfig"
	"github.com/dapgui/dapgui/internal/launchconfig"
	"github.com/dapgui/dapgui/internal/sink"
	"github.com/dapgui/dapgui/internal/sshtunnel"
)

// NewRunCommand drives a debug session interactively from the terminal:
// dial the adapter, run the handshake, and let the operator step through
// stops with single-key commands.
func NewRunCommand() *cobra.Command {
	var (
		launchJSONPath string
		configName     string
		endpoint       string
		breakpointArgs []string
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Attach or launch a debug session and drive it from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			prefs, err := dapconfig.Load()
			if err != nil {
				return fmt.Errorf("load preferences: %w", err)
			}

			file, err := launchconfig.Load(launchJSONPath)
			if err != nil {
				return fmt.Errorf("load launch configuration: %w", err)
			}
			selected, err := file.Select(configName)
			if err != nil {
				return err
			}

			if endpoint == "" {
				endpoint = fmt.Sprintf("%s:%d", prefs.Adapter.Host, prefs.Adapter.Port)
			}

			breakpoints, err := parseBreakpoints(breakpointArgs)
			if err != nil {
				return err
			}

			out := sink.New(prefs.Output.BufferSize)
			go streamOutput(cmd, out)

			params := session.Params{
				Endpoint:               endpoint,
				Config:                 selected,
				Breakpoints:            breakpoints,
				HandshakeTimeout:       prefs.Adapter.HandshakeTimeoutDuration(),
				MaxVariableExpandDepth: 1,
				Sink:                   out,
				Logger:                 logger,
			}
			if selected.JumpHost != nil {
				tunnel, err := sshtunnel.Dial(sshtunnel.FromLaunchConfig(*selected.JumpHost), logger)
				if err != nil {
					return fmt.Errorf("dial jump host: %w", err)
				}
				defer tunnel.Close()
				params.Dialer = tunnel.Dialer()
			}

			sess, res, err := session.New(params)
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			defer sess.Close()

			return driveInteractively(cmd, sess, res)
		},
	}

	cmd.Flags().StringVar(&launchJSONPath, "config", "launch.json", "path to a VS Code-style launch.json")
	cmd.Flags().StringVar(&configName, "config-name", "", "configuration name to select (defaults to the first)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "adapter host:port (defaults to preferences, then 127.0.0.1:5678)")
	cmd.Flags().StringArrayVar(&breakpointArgs, "break", nil, "breakpoint as file:line, repeatable")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func parseBreakpoints(args []string) (map[string][]int, error) {
	out := make(map[string][]int)
	for _, a := range args {
		idx := strings.LastIndex(a, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid --break %q, want file:line", a)
		}
		file, lineStr := a[:idx], a[idx+1:]
		line, err := strconv.Atoi(lineStr)
		if err != nil {
			return nil, fmt.Errorf("invalid line in --break %q: %w", a, err)
		}
		out[file] = append(out[file], line)
	}
	return out, nil
}

func streamOutput(cmd *cobra.Command, out *sink.Sink) {
	_, lines := out.Subscribe()
	for line := range lines {
		w := cmd.ErrOrStderr()
		if line.Category == "stdout" {
			w = cmd.OutOrStdout()
		}
		fmt.Fprintf(w, "[%s] %s", line.Category, line.Text)
	}
}

func driveInteractively(cmd *cobra.Command, sess *session.Session, res session.Result) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		printResult(cmd, res)
		if res.Terminated {
			return res.Err
		}

		fmt.Fprint(cmd.OutOrStdout(), "(c)ontinue, (n)ext, (q)uit> ")
		if !scanner.Scan() {
			return nil
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "c":
			res = sess.Resume()
		case "n":
			res = sess.StepOver()
		case "q":
			return nil
		}
	}
}

func printResult(cmd *cobra.Command, res session.Result) {
	if res.Terminated {
		if res.Err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "session terminated: %v\n", res.Err)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "session terminated")
		}
		return
	}

	snap := res.Snapshot
	frames := snap.StackPerThread[snap.PausedThreadID]
	fmt.Fprintf(cmd.OutOrStdout(), "stopped, thread %d\n", snap.PausedThreadID)
	for _, f := range frames {
		fmt.Fprintf(cmd.OutOrStdout(), "  #%d %s at %s:%d\n", f.ID, f.Name, f.SourcePath, f.Line)
	}
}
