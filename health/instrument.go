package health

import (
	"context"
	"errors"

	"github.com/jonwraymond/fleetwatch/observe"
)

// Instrument wraps a checker so every run is traced, measured and logged.
func Instrument(c Checker, mw *observe.Middleware, kind string, critical bool) Checker {
	if mw == nil {
		return c
	}
	return &instrumented{
		Checker: c,
		mw:      mw,
		meta:    observe.CheckMeta{Name: c.Name(), Kind: kind, Critical: critical},
	}
}

type instrumented struct {
	Checker
	mw   *observe.Middleware
	meta observe.CheckMeta
}

func (i *instrumented) Check(ctx context.Context) Result {
	var result Result
	i.mw.Observe(ctx, i.meta, func(ctx context.Context) observe.Outcome {
		result = i.Checker.Check(ctx)
		out := observe.Outcome{
			Status: result.Status.String(),
			Failed: len(result.Failed()),
		}
		// Failed entities are a verdict, not an error.
		if result.Error != nil && !errors.Is(result.Error, ErrCheckFailed) {
			out.Err = result.Error
		}
		return out
	})
	return result
}
