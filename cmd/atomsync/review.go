package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atomsync/atomsync/internal/cliformat"
)

var (
	rejectReason      string
	autoApproveMinPct float64
	autoApprove       bool
	editFront         string
	editBack          string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the AI-rewrite review queue",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review items",
	RunE:  runReviewList,
}

var reviewShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one review item in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewShow,
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve one pending item, or auto-approve all above a confidence floor",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReviewApprove,
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending item",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewReject,
}

var reviewEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Apply an operator-edited front/back instead of the suggestion",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewEdit,
}

func init() {
	reviewRejectCmd.Flags().StringVar(&rejectReason, "reason", "", "reason recorded against the rejection")
	reviewApproveCmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "approve every pending item meeting --min-improvement")
	reviewApproveCmd.Flags().Float64Var(&autoApproveMinPct, "min-improvement", 20, "minimum estimated grade improvement percent (rewrite.ImprovementPercent) for --auto-approve")
	reviewEditCmd.Flags().StringVar(&editFront, "front", "", "replacement front text")
	reviewEditCmd.Flags().StringVar(&editBack, "back", "", "replacement back text")
	reviewCmd.AddCommand(reviewListCmd, reviewShowCmd, reviewApproveCmd, reviewRejectCmd, reviewEditCmd)
	rootCmd.AddCommand(reviewCmd)
}

func runReviewList(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.store.ListPendingReviews(cmd.Context())
	if err != nil {
		return runtimeErr(err)
	}

	if output == "json" {
		return printJSON(cmd, items)
	}
	t := cliformat.NewTable(cmd.OutOrStdout(), "ID", "TYPE", "SOURCE_ATOM", "EST_GRADE", "ISSUES")
	for _, it := range items {
		t.AddRow(it.ID, string(it.RewriteType), it.SourceAtomID, string(it.EstimatedNewGrade), fmt.Sprint(len(it.OriginalIssues)))
	}
	return t.Render()
}

func runReviewShow(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	item, err := a.store.GetReviewItem(cmd.Context(), args[0])
	if err != nil {
		return runtimeErr(err)
	}
	return printJSON(cmd, item)
}

func runReviewApprove(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.rewrite == nil {
		return usageErr(fmt.Errorf("ai.base_url is not configured, no rewrite engine to approve against"))
	}

	if autoApprove {
		n, err := a.rewrite.AutoApprove(cmd.Context(), autoApproveMinPct)
		if err != nil {
			return runtimeErr(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "auto-approved %d item(s)\n", n)
		return nil
	}

	if len(args) != 1 {
		return usageErr(fmt.Errorf("review approve requires an <id> unless --auto-approve is set"))
	}
	if err := a.rewrite.Approve(cmd.Context(), args[0]); err != nil {
		return runtimeErr(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "approved %s\n", args[0])
	return nil
}

func runReviewReject(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.rewrite == nil {
		return usageErr(fmt.Errorf("ai.base_url is not configured, no rewrite engine to reject against"))
	}
	if err := a.rewrite.Reject(cmd.Context(), args[0], rejectReason); err != nil {
		return runtimeErr(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rejected %s\n", args[0])
	return nil
}

func runReviewEdit(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.rewrite == nil {
		return usageErr(fmt.Errorf("ai.base_url is not configured, no rewrite engine to edit against"))
	}
	if editFront == "" || editBack == "" {
		return usageErr(fmt.Errorf("review edit requires both --front and --back"))
	}
	if err := a.rewrite.Edit(cmd.Context(), args[0], editFront, editBack); err != nil {
		return runtimeErr(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "edited %s\n", args[0])
	return nil
}
