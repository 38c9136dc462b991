// Package cli implements the bridgeclaw command tree.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/BridgeClaw/BridgeClaw/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"  ____       _     _             ____ _\n" +
		" | __ ) _ __(_) __| | __ _  ___ / ___| | __ ___      __\n" +
		" |  _ \\| '__| |/ _` |/ _` |/ _ \\ |   | |/ _` \\ \\ /\\ / /\n" +
		" | |_) | |  | | (_| | (_| |  __/ |___| | (_| |\\ V  V /\n" +
		" |____/|_|  |_|\\__,_|\\__, |\\___|\\____|_|\\__,_| \\_/\\_/\n" +
		"                     |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "bridgeclaw",
	Short: "BridgeClaw - multi-channel assistant gateway",
	Long:  color.CyanString(logo) + "\nA durable dispatch and authorization gateway between chat surfaces and an external agent.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bridgeclaw version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("bridgeclaw " + version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(queueCmd)
}
