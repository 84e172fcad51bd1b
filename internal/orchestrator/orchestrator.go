// Package orchestrator runs the client's long-lived loops together and
// stops all of them as soon as one returns.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"
)

// Loop is one long-running component. Release, when set, runs after the
// loop returned and the shared context has been cancelled.
type Loop struct {
	Name    string
	Run     func(ctx context.Context) error
	Release func()
}

// Run starts every loop and waits for all of them. The first loop to
// return, with or without an error, cancels the others. Cancellation is a
// clean stop: loops returning context.Canceled count as success. The first
// real error is returned.
func Run(ctx context.Context, loops ...Loop) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		g.Go(func() error {
			err := l.Run(gctx)
			cancel()
			if l.Release != nil {
				l.Release()
			}
			switch {
			case err == nil:
				log.Printf("orchestrator: %s stopped", l.Name)
				return nil
			case errors.Is(err, context.Canceled):
				return nil
			default:
				log.Printf("orchestrator: %s failed: %v", l.Name, err)
				return fmt.Errorf("%s: %w", l.Name, err)
			}
		})
	}
	return g.Wait()
}
