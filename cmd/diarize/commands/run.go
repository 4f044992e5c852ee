package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/diarize/pkg/audio/pcm"
	"github.com/haivivi/diarize/pkg/audio/resampler"
	"github.com/haivivi/diarize/pkg/audio/wav"
	"github.com/haivivi/diarize/pkg/cli"
	"github.com/haivivi/diarize/pkg/diarize"
	"github.com/haivivi/diarize/pkg/speaker"
)

var (
	runRate     int
	runChannels int
	runChunk    time.Duration
	runSession  string
	runNoSave   bool
	runEvents   bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [file|-]",
	Short: "Diarize a WAV or raw PCM stream",
	Long: `Diarize a WAV file or raw 16-bit little-endian PCM.

With no file, or "-", audio is read from stdin. WAV input is described by
its header; raw input defaults to 16 kHz mono and can be described with
--rate and --channels. Other rates and stereo are converted to 16 kHz mono.

Saved profiles for the context's session are loaded before the run and
saved after it, so speakers keep their names between runs.

Examples:
  diarize run meeting.wav
  arecord -q -f S16_LE -r 48000 -c 2 | diarize run --rate 48000 --channels 2
  diarize run call.pcm --events | jq .`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiarize,
}

func init() {
	runCmd.Flags().IntVar(&runRate, "rate", 0, "raw input sample rate (default: engine rate)")
	runCmd.Flags().IntVar(&runChannels, "channels", 1, "raw input channel count")
	runCmd.Flags().DurationVar(&runChunk, "chunk", 100*time.Millisecond, "analysis chunk length")
	runCmd.Flags().StringVar(&runSession, "session", "", "profile session (default: context store.session)")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "do not load or save profiles")
	runCmd.Flags().BoolVar(&runEvents, "events", false, "print every chunk result as a JSON line")
}

func runDiarize(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, stores, err := openContextStores(ctx)
	if err != nil {
		return err
	}
	defer stores.Close()

	engineCfg := c.Engine
	engineCfg.Logger = slog.Default()
	engine := diarize.New(engineCfg)

	var store speaker.Store
	if !runNoSave && stores.Opener() != nil {
		session := c.SessionName()
		if runSession != "" {
			session = runSession
		}
		if store, err = stores.Open(ctx, session); err != nil {
			return err
		}
		// Unusable profiles are logged by the engine; the run starts empty.
		_, _ = engine.Load(ctx, store)
	}

	in, err := openInput(args)
	if err != nil {
		return err
	}
	defer in.Close()

	src, format, err := decodeInput(in, runRate, runChannels, engine.Config().SampleRate)
	if err != nil {
		return err
	}
	slog.Debug("input", "format", format.String(), "chunk", runChunk)

	w := cmd.OutOrStdout()
	styles := cli.NewStyles(cli.DefaultTheme)
	enc := json.NewEncoder(w)
	err = diarizeStream(ctx, src, engine, runChunk, func(at time.Duration, res diarize.Result) error {
		if runEvents {
			return enc.Encode(chunkEvent{At: at, Result: res})
		}
		if res.Changed {
			_, err := fmt.Fprintf(w, "%s  %s\n", styles.Help.Render(clock(at)), styles.Change.Render(res.Current))
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if store != nil {
		if err := engine.Save(context.WithoutCancel(ctx), store); err != nil {
			return err
		}
	}
	if runEvents {
		return nil
	}
	return output(engine.Statistics())
}

type chunkEvent struct {
	At time.Duration `json:"at"`
	diarize.Result
}

func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// decodeInput detects a WAV header and returns a reader of mono PCM at
// dstRate. Raw input is described by rate (0 means dstRate) and channels.
func decodeInput(r io.Reader, rate, channels, dstRate int) (io.Reader, resampler.Format, error) {
	br := bufio.NewReader(r)
	src := resampler.Format{SampleRate: rate, Channels: channels}
	if src.SampleRate <= 0 {
		src.SampleRate = dstRate
	}
	if magic, err := br.Peek(4); err == nil && string(magic) == "RIFF" {
		h, err := wav.ReadHeader(br)
		if err != nil {
			return nil, src, err
		}
		src = resampler.Format{SampleRate: h.SampleRate, Channels: h.Channels}
	}

	conv, err := resampler.New(src, dstRate)
	if err != nil {
		return nil, src, err
	}
	if conv.Passthrough() {
		return br, src, nil
	}
	return conv.Reader(br), src, nil
}

// diarizeStream feeds r to engine in chunks of d and reports each result
// with its offset into the stream. A trailing partial chunk is processed.
func diarizeStream(ctx context.Context, r io.Reader, engine *diarize.Engine, d time.Duration, fn func(at time.Duration, res diarize.Result) error) error {
	f, ok := pcm.FormatForRate(engine.Config().SampleRate)
	if !ok {
		return fmt.Errorf("unsupported engine sample rate %d", engine.Config().SampleRate)
	}
	if d <= 0 {
		return fmt.Errorf("invalid chunk length %v", d)
	}
	var at time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf, err := f.ReadChunk(r, d)
		if len(buf) > 0 {
			if ferr := fn(at, engine.Process(buf)); ferr != nil {
				return ferr
			}
			at += f.Duration(int64(len(buf)))
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("read input: %w", err)
		}
	}
}

// clock formats d as mm:ss.mmm.
func clock(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}
