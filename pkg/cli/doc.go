// Package cli holds the configuration, paths and output helpers shared by
// the diarize command.
//
// Configuration lives in ~/.giztoy/<app>/config.yaml and supports
// multiple named contexts, similar to kubectl. Each context carries
// engine tuning and a profile store location:
//
//	current_context: office
//	contexts:
//	  office:
//	    name: office
//	    engine:
//	      sensitivity: 0.5
//	    store:
//	      kind: badger
//	      location: /var/lib/diarize
//	      session: office
//
// Results are written as YAML, JSON or a lipgloss table:
//
//	cli.Output(stats, cli.OutputOptions{Format: cli.FormatTable})
package cli
