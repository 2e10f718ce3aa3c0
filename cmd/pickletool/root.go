package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pyrolite-go/pickle/internal/cli"
	"github.com/pyrolite-go/pickle/internal/config"
)

var version = "development"

// session is the state of one pickletool invocation.
type session struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	s := &session{cfg: config.Default(), log: zap.NewNop()}

	cmd := &cobra.Command{
		Version:       version,
		Use:           "pickletool",
		Short:         "pickletool inspects and converts protocol 2 pickles.",
		Long:          `Disassemble, decode to JSON, and encode from JSON or YAML, Python pickles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.loadConfig(cmd.Flags()); err != nil {
				return err
			}
			s.log = cli.NewLogger(cmd.ErrOrStderr(), s.cfg.Verbose)
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = s.log.Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&s.configPath, "config", "c", "", "read default settings from the given TOML file")
	flags.BoolVarP(&s.cfg.Zlib, "zlib", "z", false, "pickles are zlib-compressed")
	flags.BoolVarP(&s.cfg.Verbose, "verbose", "v", false, "log sizes and steps to stderr")

	cmd.AddCommand(newDisCmd(s))
	cmd.AddCommand(newDecodeCmd(s))
	cmd.AddCommand(newEncodeCmd(s))
	return cmd
}

// loadConfig fills the settings not given on the command line from the
// config file, if there is one.
func (s *session) loadConfig(flags *pflag.FlagSet) error {
	if s.configPath == "" {
		return s.cfg.Validate()
	}
	file, err := config.LoadFile(s.configPath)
	if err != nil {
		return err
	}

	unset := func(name string) bool {
		f := flags.Lookup(name)
		return f == nil || !f.Changed
	}
	if unset("zlib") {
		s.cfg.Zlib = file.Zlib
	}
	if unset("verbose") {
		s.cfg.Verbose = file.Verbose
	}
	if unset("format") {
		s.cfg.Decode.Format = file.Decode.Format
	}
	if unset("pydict") {
		s.cfg.Decode.PyDict = file.Decode.PyDict
	}
	if unset("strict-unicode") {
		s.cfg.Decode.StrictUnicode = file.Decode.StrictUnicode
	}
	if unset("from") {
		s.cfg.Encode.From = file.Encode.From
	}
	if unset("no-memo") {
		s.cfg.Encode.NoMemo = file.Encode.NoMemo
	}
	if unset("max-depth") {
		s.cfg.Encode.MaxDepth = file.Encode.MaxDepth
	}
	return s.cfg.Validate()
}

// readPickle reads the pickle named by args, or stdin.
func (s *session) readPickle(cmd *cobra.Command, args []string) ([]byte, error) {
	return s.read(cmd, args, s.cfg.Zlib)
}

func (s *session) read(cmd *cobra.Command, args []string, compressed bool) ([]byte, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	r, err := cli.Open(path, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return cli.ReadPayload(s.log.With(zap.String("input", path)), r, compressed)
}
