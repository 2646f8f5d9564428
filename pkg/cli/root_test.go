package cli

import "testing"

func TestNewRootCmdHasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"capture", "replay", "inspect", "generate"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not found: %v", name, err)
		}
	}
}
