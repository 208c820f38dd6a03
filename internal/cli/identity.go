package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/calder-labs/hypermem/internal/core"
	"github.com/calder-labs/hypermem/internal/model"
)

func init() {
	identityCmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage identities",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an identity and assign its hyperbolic address",
		Run:   runIdentityCreate,
	}
	create.Flags().String("id", "", "Explicit id (generated when omitted)")
	create.Flags().StringP("name", "n", "", "Display name (required)")
	create.Flags().StringP("type", "t", "ai", "Type: human, ai, system, hybrid")
	create.Flags().String("capabilities", "", "Comma-separated capability set")
	create.Flags().String("language", "", "Preferred language")
	create.Flags().String("timezone", "", "Preferred timezone")
	create.MarkFlagRequired("name")

	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Show an identity",
		Args:  cobra.ExactArgs(1),
		Run:   runIdentityGet,
	}

	update := &cobra.Command{
		Use:   "update [id]",
		Short: "Update an identity's mutable fields",
		Args:  cobra.ExactArgs(1),
		Run:   runIdentityUpdate,
	}
	update.Flags().StringP("name", "n", "", "New display name")
	update.Flags().String("capabilities", "", "Replacement capability set (comma-separated)")

	rm := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete an identity (the id is tombstoned, never reused)",
		Args:  cobra.ExactArgs(1),
		Run:   runIdentityRm,
	}

	identityCmd.AddCommand(create, get, update, rm)
	RootCmd.AddCommand(identityCmd)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runIdentityCreate(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	id, _ := cmd.Flags().GetString("id")
	name, _ := cmd.Flags().GetString("name")
	typ, _ := cmd.Flags().GetString("type")
	caps, _ := cmd.Flags().GetString("capabilities")
	lang, _ := cmd.Flags().GetString("language")
	tz, _ := cmd.Flags().GetString("timezone")

	ident, err := s.core.CreateIdentity(core.IdentityParams{
		ID:           id,
		Name:         name,
		Type:         model.IdentityType(typ),
		Capabilities: splitCSV(caps),
		Preferences:  model.Preferences{Language: lang, Timezone: tz},
	})
	if err != nil {
		exitErr("create identity", err)
	}
	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
	printJSON(ident)
}

func runIdentityGet(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	ident, err := s.core.GetIdentity(args[0])
	if err != nil {
		exitErr("get identity", err)
	}
	printJSON(ident)
}

func runIdentityUpdate(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	var upd core.IdentityUpdate
	if cmd.Flags().Changed("name") {
		name, _ := cmd.Flags().GetString("name")
		upd.Name = &name
	}
	if cmd.Flags().Changed("capabilities") {
		caps, _ := cmd.Flags().GetString("capabilities")
		upd.Capabilities = splitCSV(caps)
	}

	ident, err := s.core.UpdateIdentity(args[0], upd)
	if err != nil {
		exitErr("update identity", err)
	}
	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
	printJSON(ident)
}

func runIdentityRm(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context())
	if err != nil {
		exitErr("open", err)
	}
	defer s.close()

	if err := s.core.DeleteIdentity(args[0]); err != nil {
		exitErr("delete identity", err)
	}
	if err := s.save(cmd.Context()); err != nil {
		exitErr("save state", err)
	}
}
