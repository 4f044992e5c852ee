package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/diarize/pkg/cli"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage diarize configuration.

Configuration is stored in ~/.giztoy/diarize/config.yaml`,
}

// contextCmd represents the context subcommand
var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage contexts",
	Long:  `Manage contexts, each with its own engine tuning and profile store.`,
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := globalConfig.ListContexts()
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No contexts configured.")
			fmt.Fprintln(cmd.OutOrStdout(), "\nCreate one with:")
			fmt.Fprintln(cmd.OutOrStdout(), "  diarize config context set office store.kind=badger engine.sensitivity=0.5")
			return nil
		}
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			ctx, _ := globalConfig.GetContext(name)
			current := ""
			if name == globalConfig.CurrentContext {
				current = "*"
			}
			rows = append(rows, []string{current, name, ctx.StoreKind(), valueOrNotSet(ctx.Store.Location), ctx.SessionName()})
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(cli.NewStyles(cli.DefaultTheme),
			[]string{"CURRENT", "NAME", "STORE", "LOCATION", "SESSION"}, rows))
		return nil
	},
}

var contextUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch to a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := globalConfig.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q", args[0])
		return nil
	},
}

var contextSetCmd = &cobra.Command{
	Use:   "set <name> <key=value>...",
	Short: "Create or update a context",
	Long: `Create or update a context. Unspecified keys keep their value; zero
engine values use the built-in defaults.

Run 'diarize config context keys' for the accepted keys.

Examples:
  diarize config context set office store.kind=badger store.location=/var/lib/diarize
  diarize config context set remote store.location=s3://voices/office store.s3.region=us-east-1
  diarize config context set office engine.sensitivity=0.5 engine.stability_window=7`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		ctx, err := globalConfig.GetContext(name)
		if err != nil {
			ctx = &cli.Context{Name: name}
		}
		for _, kv := range args[1:] {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got %q", kv)
			}
			if err := ctx.Set(key, value); err != nil {
				return err
			}
		}
		if err := globalConfig.AddContext(name, ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q saved", name)
		return nil
	},
}

var contextKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List keys accepted by 'context set'",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range cli.SettableKeys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var contextDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := globalConfig.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q deleted", args[0])
		return nil
	},
}

var contextShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show context details",
	Long:  `Show details of a context. If no name is provided, shows the resolved context.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := contextName
		if len(args) > 0 {
			name = args[0]
		}
		ctx, err := globalConfig.ResolveContext(name)
		if err != nil {
			return err
		}
		shown := *ctx
		shown.Store.S3.SecretKey = cli.MaskSecret(shown.Store.S3.SecretKey)
		if outputFormat == string(cli.FormatTable) {
			return cli.Output(shown, cli.OutputOptions{Format: cli.FormatYAML})
		}
		return output(shown)
	},
}

var contextCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show current context name",
	RunE: func(cmd *cobra.Command, args []string) error {
		if globalConfig.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No current context set")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), globalConfig.CurrentContext)
		return nil
	},
}

func valueOrNotSet(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

func init() {
	configCmd.AddCommand(contextCmd)

	contextCmd.AddCommand(contextListCmd)
	contextCmd.AddCommand(contextUseCmd)
	contextCmd.AddCommand(contextSetCmd)
	contextCmd.AddCommand(contextKeysCmd)
	contextCmd.AddCommand(contextDeleteCmd)
	contextCmd.AddCommand(contextShowCmd)
	contextCmd.AddCommand(contextCurrentCmd)
}
