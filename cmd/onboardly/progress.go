package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rahul/onboardly/internal/store"
	"github.com/rahul/onboardly/pkg/config"
)

var progressTourID string

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect or clear stored tour progress",
}

var progressShowCmd = &cobra.Command{
	Use:   "show --tour ID",
	Short: "Print the stored progress of a tour",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, release, err := progressStore()
		if err != nil {
			return err
		}
		defer release()

		p, ok, err := st.Load(progressTourID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: no stored progress\n", progressTourID)
			return nil
		}
		data, err := json.MarshalIndent(map[string]any{
			"key":      store.Key(progressTourID),
			"progress": p,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var progressResetCmd = &cobra.Command{
	Use:   "reset --tour ID",
	Short: "Forget the stored progress of a tour",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, release, err := progressStore()
		if err != nil {
			return err
		}
		defer release()

		if err := st.Clear(progressTourID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: progress cleared\n", progressTourID)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{progressShowCmd, progressResetCmd} {
		c.Flags().StringVarP(&progressTourID, "tour", "t", "", "tour id")
		_ = c.MarkFlagRequired("tour")
		progressCmd.AddCommand(c)
	}
}

func progressStore() (store.Store, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, func() {}, err
	}
	return openStore(cfg, nil)
}
