package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/kikitori/internal/transcript"
	"github.com/MrWong99/kikitori/pkg/provider/stt"
)

// Warmup prepares the providers before the first run. The recogniser model
// load and the formatter probe happen concurrently because both can take
// seconds. A failed model load is fatal; a failed formatter probe only means
// the first real run pays the LLM cold-start cost, so it is logged and
// swallowed.
func Warmup(ctx context.Context, transcriber stt.Transcriber, formatter *transcript.Formatter) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := transcriber.Load(ctx); err != nil {
			return fmt.Errorf("load recogniser: %w", err)
		}
		slog.Info("speech recogniser loaded")
		return nil
	})

	if formatter != nil {
		g.Go(func() error {
			if err := formatter.Warmup(ctx); err != nil {
				slog.Warn("formatter warmup failed, first run will be slow", "error", err)
				return nil
			}
			slog.Info("formatter warmed up")
			return nil
		})
	}

	return g.Wait()
}
