package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pyrolite-go/pickle"
	"github.com/pyrolite-go/pickle/internal/cli"
	"github.com/pyrolite-go/pickle/internal/jsonconv"
)

func newEncodeCmd(s *session) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:          "encode [file]",
		Short:        "Encode a JSON or YAML document as a pickle",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := s.read(cmd, args, false)
			if err != nil {
				return err
			}

			var v any
			if s.cfg.Encode.From == "yaml" {
				v, err = jsonconv.FromYAML(data)
			} else {
				v, err = jsonconv.FromJSON(data)
			}
			if err != nil {
				return err
			}

			pk, err := pickle.DumpsWithConfig(v, &pickle.EncoderConfig{
				DisableMemo: s.cfg.Encode.NoMemo,
				MaxDepth:    s.cfg.Encode.MaxDepth,
			})
			if err != nil {
				return err
			}
			s.log.Debug("encoded", zap.String("size", cli.Size(len(pk))))

			w, err := cli.Create(outPath, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := cli.WritePayload(s.log, w, pk, s.cfg.Zlib); err != nil {
				w.Close()
				return err
			}
			return w.Close()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&s.cfg.Encode.From, "from", s.cfg.Encode.From, "input format: json or yaml")
	flags.StringVarP(&outPath, "out", "o", "", "write the pickle to the given file instead of stdout")
	flags.BoolVar(&s.cfg.Encode.NoMemo, "no-memo", false, "do not memoize shared values")
	flags.IntVar(&s.cfg.Encode.MaxDepth, "max-depth", 0, "nesting limit; 0 for the default, -1 for none")
	return cmd
}
