package cli

import (
	"github.com/spf13/cobra"

	"github.com/calder-labs/hypermem/internal/model"
)

func init() {
	consolidate := &cobra.Command{
		Use:   "consolidate [tier]",
		Short: "Merge related entries (all tiers when omitted)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runConsolidate,
	}

	compress := &cobra.Command{
		Use:   "compress [tier]",
		Short: "Compress aged entry payloads (all tiers when omitted)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runCompress,
	}

	RootCmd.AddCommand(consolidate, compress)
}

func tierArg(args []string) model.Tier {
	if len(args) == 0 {
		return ""
	}
	return model.Tier(args[0])
}

func runConsolidate(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	res, err := s.core.Consolidate(tierArg(args))
	if err != nil {
		exitErr("consolidate", err)
	}
	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
	printJSON(res)
}

func runCompress(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	res, err := s.core.Compress(tierArg(args))
	if err != nil {
		exitErr("compress", err)
	}
	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
	printJSON(res)
}
