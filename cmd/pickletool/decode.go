package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pyrolite-go/pickle"
	"github.com/pyrolite-go/pickle/internal/jsonconv"
)

func newDecodeCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "decode [file]",
		Short:        "Decode a pickle and print it as JSON or Go syntax",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := s.readPickle(cmd, args)
			if err != nil {
				return err
			}

			obj, err := pickle.LoadsWithConfig(data, &pickle.DecoderConfig{
				PyDict:        s.cfg.Decode.PyDict,
				StrictUnicode: s.cfg.Decode.StrictUnicode,
			})
			if err != nil {
				return err
			}
			s.log.Debug("decoded", zap.String("type", fmt.Sprintf("%T", obj)))

			out := cmd.OutOrStdout()
			if s.cfg.Decode.Format == "go" {
				_, err = fmt.Fprintf(out, "%#v\n", jsonconv.Acyclic(obj))
				return err
			}
			text, err := jsonconv.Marshal(obj, true)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%s\n", text)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&s.cfg.Decode.Format, "format", "f", s.cfg.Decode.Format, "output format: json or go")
	flags.BoolVar(&s.cfg.Decode.PyDict, "pydict", false, "decode dicts with Python key equality")
	flags.BoolVar(&s.cfg.Decode.StrictUnicode, "strict-unicode", false, "keep py2 str apart from unicode")
	return cmd
}
