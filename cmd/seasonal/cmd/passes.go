package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Reconcile trading windows against seasonal rules once",
	RunE:  runMaterialize,
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run one execution pass over the active trading windows",
	RunE:  runExecute,
}

func init() {
	rootCmd.AddCommand(materializeCmd)
	rootCmd.AddCommand(executeCmd)
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.materializer.Reconcile(cmd.Context(), time.Now())
	if err != nil {
		return fmt.Errorf("materialization failed: %w", err)
	}
	return printJSON(cmd, res)
}

func runExecute(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.RunPass(cmd.Context())
	if err != nil {
		return fmt.Errorf("execution pass failed: %w", err)
	}
	return printJSON(cmd, res)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
