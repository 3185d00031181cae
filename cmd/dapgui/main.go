package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dapgui/dapgui/cmd/dapgui/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "dapgui",
		Short:   "Drive a Debug Adapter Protocol session from the command line",
		Version: "0.1.0",
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewLaunchDebuggeeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
