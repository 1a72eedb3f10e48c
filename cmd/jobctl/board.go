package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored jobs as board cards",
	RunE:  runList,
}

var listStatus string

var moveCmd = &cobra.Command{
	Use:   "move <job_id> <status>",
	Short: "Move a job to another board column",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <job_id>",
	Short: "Delete a stored job",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Only list jobs in this column")
	rootCmd.AddCommand(listCmd, moveCmd, deleteCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Close()

	ctx := cmd.Context()
	svc, store, err := openBoard(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	if listStatus == "" {
		views, err := svc.ListAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), views)
	}

	views, err := svc.ListByStatus(ctx, listStatus)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), views)
}

func runMove(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Close()

	ctx := cmd.Context()
	svc, store, err := openBoard(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	view, err := svc.Move(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), view)
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Close()

	ctx := cmd.Context()
	svc, store, err := openBoard(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	deleted, err := svc.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("job %s not found", args[0])
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
