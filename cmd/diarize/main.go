// diarize labels who is speaking in a 16 kHz PCM audio stream.
//
// Usage:
//
//	diarize run meeting.wav              # Diarize a file, print speaker changes
//	arecord -f S16_LE -r 16000 | diarize run -   # Diarize stdin
//	diarize serve                        # WebSocket endpoint on :8790
//	diarize profiles list                # Saved speakers for the current context
//	diarize config context use office    # Switch to the office context
//
// Configuration is stored in ~/.giztoy/diarize/
package main

import (
	"os"

	"github.com/haivivi/diarize/cmd/diarize/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
