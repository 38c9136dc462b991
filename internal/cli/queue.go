package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BridgeClaw/BridgeClaw/internal/config"
	"github.com/BridgeClaw/BridgeClaw/internal/ipc"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and operate the IPC message queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending and quarantined message counts",
	RunE:  runQueueStatus,
}

var queueRequeueCmd = &cobra.Command{
	Use:   "requeue <quarantine-file>",
	Short: "Return a quarantined message to its group inbox",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueRequeue,
}

func init() {
	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueRequeueCmd)
}

func runQueueStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	root := cfg.QueueRoot()

	pending, err := ipc.PendingByGroup(root)
	if err != nil {
		return err
	}
	quarantined, err := ipc.Quarantined(root)
	if err != nil {
		return err
	}

	groups := make([]string, 0, len(pending))
	for g := range pending {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	cmd.Println(color.CyanString("Queue root: %s", root))
	if len(groups) == 0 {
		cmd.Println("No group inboxes.")
	}
	for _, g := range groups {
		cmd.Println(fmt.Sprintf("  %-24s %d pending", g, pending[g]))
	}
	if len(quarantined) > 0 {
		cmd.Println(color.YellowString("Quarantined: %d", len(quarantined)))
		for _, name := range quarantined {
			cmd.Println("  " + name)
		}
	}
	return nil
}

func runQueueRequeue(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := ipc.Requeue(cfg.QueueRoot(), args[0]); err != nil {
		return err
	}
	cmd.Println(color.GreenString("Requeued %s", args[0]))
	return nil
}
