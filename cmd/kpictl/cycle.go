package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kpieval/internal/domain/auth"
	"kpieval/internal/domain/evaluation"
)

var gatesCmd = &cobra.Command{
	Use:   "gates <cycle-id>",
	Short: "Show which phases of a cycle are open now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *evaluation.Service, admin auth.UserContext) error {
			view, err := svc.GetCycle(cmd.Context(), admin, args[0])
			if err != nil {
				return err
			}
			return printCycle(cmd.OutOrStdout(), view)
		})
	},
}

var (
	activityEnabled bool
	activityStart   string
	activityEnd     string
)

var activityCmd = &cobra.Command{
	Use:   "activity <cycle-id> <DEFINE|EVALUATE|SUMMARY>",
	Short: "Set the window of one cycle phase",
	Long: `Set whether a phase is enabled and its optional window. Bounds accept
RFC3339 or YYYY-MM-DD; omit a bound to leave that side open.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := evaluation.ActivityInput{Type: strings.ToUpper(args[1]), Enabled: activityEnabled}
		var err error
		if in.StartAt, err = parseBound("start", activityStart, false); err != nil {
			return err
		}
		if in.EndAt, err = parseBound("end", activityEnd, true); err != nil {
			return err
		}
		return withService(cmd.Context(), func(svc *evaluation.Service, admin auth.UserContext) error {
			if _, err := svc.UpsertActivity(cmd.Context(), admin, args[0], in); err != nil {
				return err
			}
			view, err := svc.GetCycle(cmd.Context(), admin, args[0])
			if err != nil {
				return err
			}
			return printCycle(cmd.OutOrStdout(), view)
		})
	},
}

var closeCycleCmd = &cobra.Command{
	Use:   "close-cycle <cycle-id>",
	Short: "Close a cycle: DEFINE and EVALUATE off, SUMMARY on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *evaluation.Service, admin auth.UserContext) error {
			view, err := svc.CloseCycle(cmd.Context(), admin, args[0])
			if err != nil {
				return err
			}
			return printCycle(cmd.OutOrStdout(), view)
		})
	},
}

func init() {
	activityCmd.Flags().BoolVar(&activityEnabled, "enabled", false, "Enable the phase")
	activityCmd.Flags().StringVar(&activityStart, "start", "", "Window start (inclusive)")
	activityCmd.Flags().StringVar(&activityEnd, "end", "", "Window end (inclusive)")
}

// parseBound reads a window flag. A date-only end covers that whole day.
func parseBound(name, value string, end bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("--%s: expected RFC3339 or YYYY-MM-DD", name)
	}
	if end {
		t = evaluation.EndOfDay(t)
	}
	return &t, nil
}

func printCycle(w io.Writer, view evaluation.CycleView) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	status := "open"
	if view.Cycle.IsClosed() {
		status = "closed " + view.Cycle.ClosedAt.Format(time.RFC3339)
	}
	fmt.Fprintf(w, "%s (%d/%d) %s\n", view.Cycle.Name, view.Cycle.Year, view.Cycle.Round, status)
	for _, gate := range []struct {
		name string
		open bool
	}{
		{evaluation.GateDefine, view.Gates.Define},
		{evaluation.GateEvaluate, view.Gates.Evaluate},
		{evaluation.GateSummary, view.Gates.Summary},
	} {
		state := "closed"
		if gate.open {
			state = "open"
		}
		fmt.Fprintf(w, "  %-8s %s\n", gate.name, state)
	}
	return nil
}
