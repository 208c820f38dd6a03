package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	learn := &cobra.Command{
		Use:   "learn",
		Short: "Track learning progress against semantic memories",
	}

	record := &cobra.Command{
		Use:   "record [concept]",
		Short: "Record a performance score for a concept",
		Args:  cobra.ExactArgs(1),
		Run:   runLearnRecord,
	}
	record.Flags().Float64P("score", "s", 0, "Performance score in [0,1]")
	record.Flags().StringP("memory", "m", "", "Linked semantic memory id (required)")
	record.MarkFlagRequired("memory")

	list := &cobra.Command{
		Use:   "list",
		Short: "List learning records",
		Run:   runLearnList,
	}

	learn.AddCommand(record, list)
	RootCmd.AddCommand(learn)
}

func runLearnRecord(cmd *cobra.Command, args []string) {
	score, _ := cmd.Flags().GetFloat64("score")
	memID, _ := cmd.Flags().GetString("memory")

	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	if err := s.core.RecordLearning(args[0], score, memID); err != nil {
		exitErr("record learning", err)
	}
	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
}

func runLearnList(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	printJSON(s.core.LearningProgress())
}
