package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/diarize/pkg/cli"
	"github.com/haivivi/diarize/pkg/diarize"
	"github.com/haivivi/diarize/pkg/speaker"
)

var profilesSession string

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect and manage saved speaker profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved speakers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessionEngine(cmd.Context(), func(e *diarize.Engine) error {
			return output(e.Statistics())
		})
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <speaker>",
	Short: "Show one speaker's voice characteristics",
	Example: `  diarize profiles show "Speaker 2"
  diarize profiles show 2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if !strings.HasPrefix(id, "Speaker ") {
			id = "Speaker " + id
		}
		return withSessionEngine(cmd.Context(), func(e *diarize.Engine) error {
			c, ok := e.Characteristics(id)
			if !ok {
				return fmt.Errorf("no saved speaker %q", id)
			}
			if outputFormat == string(cli.FormatTable) {
				fmt.Fprintln(cmd.OutOrStdout(), cli.KeyValues(cli.NewStyles(cli.DefaultTheme), characteristicPairs(c)...))
				return nil
			}
			return output(c)
		})
	},
}

var profilesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all saved speakers for the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, stores, err := openContextStores(ctx)
		if err != nil {
			return err
		}
		defer stores.Close()
		session := sessionFor(c)
		store, err := stores.Open(ctx, session)
		if err != nil {
			return err
		}
		if err := store.Clear(ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Profiles for session %q cleared", session)
		return nil
	},
}

var profilesSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions with saved profiles (badger stores)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, stores, err := openContextStores(ctx)
		if err != nil {
			return err
		}
		defer stores.Close()
		names, err := stores.Sessions(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var profilesExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the session's profiles to a .msgpack or .json file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := codecForFile(args[0])
		if err != nil {
			return err
		}
		return withSessionEngine(cmd.Context(), func(e *diarize.Engine) error {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := codec.Encode(f, e.Snapshot()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			cli.PrintSuccess("Exported %d speakers to %s", len(e.Profiles()), args[0])
			return nil
		})
	},
}

var profilesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the session's profiles with an exported file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := codecForFile(args[0])
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		snap, err := codec.Decode(f)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		c, stores, err := openContextStores(ctx)
		if err != nil {
			return err
		}
		defer stores.Close()
		store, err := stores.Open(ctx, sessionFor(c))
		if err != nil {
			return err
		}
		if err := store.Save(ctx, snap); err != nil {
			return err
		}
		cli.PrintSuccess("Imported %d speakers into session %q", len(snap.Profiles), sessionFor(c))
		return nil
	},
}

func init() {
	profilesCmd.PersistentFlags().StringVar(&profilesSession, "session", "", "profile session (default: context store.session)")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesResetCmd)
	profilesCmd.AddCommand(profilesSessionsCmd)
	profilesCmd.AddCommand(profilesExportCmd)
	profilesCmd.AddCommand(profilesImportCmd)
}

func sessionFor(c *cli.Context) string {
	if profilesSession != "" {
		return profilesSession
	}
	return c.SessionName()
}

// withSessionEngine loads the session's saved profiles into an engine
// configured from the active context.
func withSessionEngine(ctx context.Context, fn func(*diarize.Engine) error) error {
	c, stores, err := openContextStores(ctx)
	if err != nil {
		return err
	}
	defer stores.Close()
	store, err := stores.Open(ctx, sessionFor(c))
	if err != nil {
		return err
	}

	cfg := c.Engine
	cfg.Logger = slog.Default()
	e := diarize.New(cfg)
	if _, err := e.Load(ctx, store); err != nil {
		return err
	}
	return fn(e)
}

func codecForFile(name string) (speaker.Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return 0, fmt.Errorf("%s: add a .msgpack or .json extension", name)
	}
	return speaker.ParseCodec(ext)
}

// characteristicPairs lays out one speaker for key/value display.
func characteristicPairs(c speaker.Characteristics) [][2]string {
	pitch := "-"
	if c.VoiceType != speaker.VoiceUnknown {
		pitch = fmt.Sprintf("%.1f ± %.1f Hz", c.PitchMean, c.PitchStd)
	}
	cluster := "-"
	if c.ClusterID != nil {
		cluster = strconv.Itoa(*c.ClusterID)
	}
	return [][2]string{
		{"speaker", c.ID},
		{"voice", string(c.VoiceType)},
		{"pitch", pitch},
		{"energy", fmt.Sprintf("%.4f ± %.4f", c.EnergyMean, c.EnergyStd)},
		{"centroid", fmt.Sprintf("%.0f Hz", c.CentroidMean)},
		{"samples", strconv.Itoa(c.Samples)},
		{"speech", c.TotalSpeech.Round(100 * time.Millisecond).String()},
		{"cluster", cluster},
		{"last seen", c.LastSeen.Format(time.DateTime)},
	}
}
