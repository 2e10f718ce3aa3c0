package main

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/pyrolite-go/pickle"
)

func newDisCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:          "dis [file]",
		Short:        "Print a symbolic listing of a pickle",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := s.readPickle(cmd, args)
			if err != nil {
				return err
			}
			return pickle.Dis(cmd.OutOrStdout(), bytes.NewReader(data))
		},
	}
}
