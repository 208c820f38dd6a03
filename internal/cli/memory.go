package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calder-labs/hypermem/internal/core"
	"github.com/calder-labs/hypermem/internal/model"
)

func init() {
	store := &cobra.Command{
		Use:   "store [content]",
		Short: "Store a memory",
		Long:  "Store a memory entry. Content can be a positional arg or piped via stdin.",
		Run:   runStore,
	}
	store.Flags().StringP("tier", "t", "episodic", "Tier: episodic, semantic, procedural, working, meta")
	store.Flags().String("source", "", "Metadata source")
	store.Flags().Float64("quality", 0.5, "Quality score in [0,1]")
	store.Flags().Float64("confidence", 0.5, "Confidence score in [0,1]")
	store.Flags().Float64("importance", 0.5, "Importance score in [0,1]")
	store.Flags().String("tags", "", "Comma-separated tags")
	store.Flags().String("context", "", "Context pairs, k=v comma-separated")

	retrieve := &cobra.Command{
		Use:   "retrieve",
		Short: "Retrieve memories, most relevant first",
		Run:   runRetrieve,
	}
	retrieve.Flags().StringP("tier", "t", "", "Restrict to one tier")
	retrieve.Flags().String("contains", "", "Content substring filter")
	retrieve.Flags().String("near", "", "Rank by proximity to this entry or identity id")
	retrieve.Flags().Float64("within", 0, "With --near, only return entries within this hyperbolic distance")
	retrieve.Flags().IntP("limit", "l", 20, "Maximum results")

	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one memory entry",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}
	get.Flags().Bool("decode", false, "Decompress the payload of a compressed entry")

	rm := &cobra.Command{
		Use:   "rm [id]",
		Short: "Retire a memory entry",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(store, retrieve, get, rm)
}

func readContent(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return string(b)
	}
	return ""
}

func parseContext(s string) map[string]string {
	if s == "" {
		return nil
	}
	ctx := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			ctx[k] = v
		}
	}
	return ctx
}

func runStore(cmd *cobra.Command, args []string) {
	content := readContent(args)
	if strings.TrimSpace(content) == "" {
		exitErr("store", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	tier, _ := cmd.Flags().GetString("tier")
	source, _ := cmd.Flags().GetString("source")
	quality, _ := cmd.Flags().GetFloat64("quality")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	importance, _ := cmd.Flags().GetFloat64("importance")
	tags, _ := cmd.Flags().GetString("tags")
	contextStr, _ := cmd.Flags().GetString("context")

	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	id, err := s.core.StoreMemory(core.EntryParams{
		Tier:    model.Tier(tier),
		Content: content,
		Metadata: model.Metadata{
			Source:     source,
			Quality:    quality,
			Confidence: confidence,
			Importance: importance,
			Tags:       splitCSV(tags),
			Context:    parseContext(contextStr),
		},
	})
	if err != nil {
		exitErr("store memory", err)
	}
	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
	printJSON(map[string]string{"id": id})
}

func runRetrieve(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("tier")
	contains, _ := cmd.Flags().GetString("contains")
	near, _ := cmd.Flags().GetString("near")
	within, _ := cmd.Flags().GetFloat64("within")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	q := core.Query{
		Tier:             model.Tier(tier),
		ContentSubstring: contains,
		Limit:            limit,
	}
	if near != "" {
		q.Near, err = resolvePoint(s, near)
		if err != nil {
			exitErr("resolve --near", err)
		}
		q.Radius = within
	}

	entries, err := s.core.RetrieveMemory(q)
	if err != nil {
		exitErr("retrieve", err)
	}
	printJSON(entries)
}

// resolvePoint maps an entry or identity id to its coordinate.
func resolvePoint(s *session, id string) ([]float64, error) {
	if e, err := s.core.GetMemory(id); err == nil {
		return e.Embedding, nil
	}
	ident, err := s.core.GetIdentity(id)
	if err != nil {
		return nil, err
	}
	return ident.Address.Point, nil
}

func runGet(cmd *cobra.Command, args []string) {
	decode, _ := cmd.Flags().GetBool("decode")

	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	e, err := s.core.GetMemory(args[0])
	if err != nil {
		exitErr("get memory", err)
	}
	if decode {
		content, err := core.DecodePayload(e)
		if err != nil {
			exitErr("decode payload", err)
		}
		e.Content = content
		e.Payload = nil
	}
	printJSON(e)
}

func runRm(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	if err := s.core.DeleteMemory(args[0]); err != nil {
		exitErr("delete memory", err)
	}
	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
}
