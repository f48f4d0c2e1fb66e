package backup

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"
)

// Multi returns a Sink that ships each artifact to every given sink. The
// stream is duplicated chunk by chunk, not buffered, so the slowest sink
// paces the rest. A backup only counts once every sink holds it: if any
// sink fails, the remaining pipes are failed too so no sink keeps a
// truncated artifact under a final name.
//
// Store returns the first sink's location.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	if len(m) == 0 {
		return "", errors.New("no sinks configured")
	}
	if len(m) == 1 {
		return m[0].Store(ctx, name, r)
	}

	g, gctx := errgroup.WithContext(ctx)

	pipes := make([]*io.PipeWriter, len(m))
	locs := make([]string, len(m))

	for i, s := range m {
		pr, pw := io.Pipe()
		pipes[i] = pw

		g.Go(func() error {
			loc, err := s.Store(gctx, name, pr)
			// Unblock the pump if this sink stopped reading early.
			_ = pr.CloseWithError(err)
			if err != nil {
				return err
			}
			locs[i] = loc
			return nil
		})
	}

	g.Go(func() error {
		err := pump(r, pipes)
		for _, pw := range pipes {
			// CloseWithError(nil) delivers EOF; anything else poisons
			// the sink so it cannot finish on a short stream.
			_ = pw.CloseWithError(err)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return "", err
	}

	return locs[0], nil
}

func pump(r io.Reader, pipes []*io.PipeWriter) error {
	buf := make([]byte, 128*1024)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, pw := range pipes {
				if _, werr := pw.Write(buf[:n]); werr != nil {
					return werr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
