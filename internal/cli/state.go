package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/calder-labs/hypermem/internal/model"
)

func init() {
	checkpoint := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage state checkpoints",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the current state under a name",
		Run:   runCheckpointCreate,
	}
	create.Flags().StringP("name", "n", "", "Checkpoint name (required)")
	create.Flags().String("desc", "", "Description")
	create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List checkpoints",
		Run:   runCheckpointList,
	}

	last := &cobra.Command{
		Use:   "last",
		Short: "Show the most recent checkpoint",
		Run:   runCheckpointLast,
	}

	restore := &cobra.Command{
		Use:   "restore [id]",
		Short: "Roll the live state back to a checkpoint",
		Args:  cobra.ExactArgs(1),
		Run:   runCheckpointRestore,
	}

	checkpoint.AddCommand(create, list, last, restore)

	state := &cobra.Command{
		Use:   "state",
		Short: "Persist or inspect the full system state",
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Encrypt and persist the current state",
		Run:   runStateSave,
	}

	stateRestore := &cobra.Command{
		Use:   "restore",
		Short: "Reload the persisted state, replacing memory",
		Run:   runStateRestore,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Dump the full system state",
		Run:   runStateShow,
	}

	state.AddCommand(save, stateRestore, show)
	RootCmd.AddCommand(checkpoint, state)
}

// checkpointSummary keeps listings readable; full snapshots are dumped
// only by `state show`.
type checkpointSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Identities  int       `json:"identities"`
	Memories    int       `json:"memories"`
}

func summarize(cp *model.Checkpoint) checkpointSummary {
	var memories int
	for _, entries := range cp.State.Memories {
		memories += len(entries)
	}
	return checkpointSummary{
		ID:          cp.ID,
		Name:        cp.Name,
		Description: cp.Description,
		CreatedAt:   cp.CreatedAt,
		Identities:  len(cp.State.Identities),
		Memories:    memories,
	}
}

func runCheckpointCreate(cmd *cobra.Command, args []string) {
	name, _ := cmd.Flags().GetString("name")
	desc, _ := cmd.Flags().GetString("desc")

	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	cp, err := s.core.CreateCheckpoint(name, desc, nil)
	if err != nil {
		exitErr("create checkpoint", err)
	}
	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
	printJSON(summarize(cp))
}

func runCheckpointList(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	var out []checkpointSummary
	for _, cp := range s.core.ListCheckpoints() {
		out = append(out, summarize(cp))
	}
	printJSON(out)
}

func runCheckpointLast(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	cp, err := s.core.GetLastCheckpoint()
	if err != nil {
		exitErr("last checkpoint", err)
	}
	printJSON(summarize(cp))
}

func runCheckpointRestore(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	if err := s.core.RestoreCheckpoint(args[0]); err != nil {
		exitErr("restore checkpoint", err)
	}
	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
}

func runStateSave(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
}

func runStateRestore(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	if err := s.core.RestoreState(cmd.Context()); err != nil {
		exitErr("restore state", err)
	}
}

func runStateShow(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	printJSON(s.core.GetState())
}
