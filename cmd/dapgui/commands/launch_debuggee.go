package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"github.com/spf13/cobra"
)

// NewLaunchDebuggeeCommand starts a sample debuggee under a PTY and streams
// its output to stdout, mirroring what a launch configuration's `program`
// would run — used to exercise a session against a real process without a
// separate terminal. Adapted from the teacher's PTY-backed process
// launcher, trimmed to one foreground command instead of a managed pool.
func NewLaunchDebuggeeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch-debuggee -- <command> [args...]",
		Short: "Run a sample debuggee under a PTY for manual session testing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := exec.Command(args[0], args[1:]...)
			ptmx, err := pty.Start(c)
			if err != nil {
				return fmt.Errorf("start under pty: %w", err)
			}
			defer ptmx.Close()

			go func() {
				reader := bufio.NewReader(ptmx)
				for {
					line, err := reader.ReadString('\n')
					if len(line) > 0 {
						fmt.Fprint(cmd.OutOrStdout(), line)
					}
					if err != nil {
						if err != io.EOF {
							fmt.Fprintf(cmd.ErrOrStderr(), "debuggee output error: %v\n", err)
						}
						return
					}
				}
			}()

			if err := c.Wait(); err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					os.Exit(exitErr.ExitCode())
				}
				return fmt.Errorf("debuggee: %w", err)
			}
			return nil
		},
	}
	return cmd
}
