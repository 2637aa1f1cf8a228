package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/scenecraft/scenecraft/internal/tools"
)

// Invoke dispatches one tool call to the host thread and waits for the
// result. It implements tools.Invoker.
//
// Failure surfaces at one level only: tool-level failures (the host ran
// the operation and it did not work) and bridge-level failures (timeout,
// shutdown, cancellation) both come back as a Result with Success=false,
// so the executor can feed either to the model. A dispatched call always
// yields exactly one Result.
func (b *Bridge) Invoke(ctx context.Context, name string, args map[string]interface{}) *tools.Result {
	id := b.NextRequestID()
	start := time.Now()

	if b.IsCancelled(id) {
		return cancelledResult(name, start)
	}

	b.emit(Event{
		Type:      EventToolStarted,
		RequestID: id,
		Tool:      name,
		Args:      args,
		Timestamp: start,
	})

	// The task writes only into its own box. After a timeout the orphaned
	// task may still run later; nothing reads the box then, so there is no
	// shared access with the failure result built below.
	box := &hostOutcome{}
	err := b.runTask(ctx, id, func() {
		// The cancel watermark may have moved while the task sat queued.
		if b.IsCancelled(id) {
			box.res = cancelledResult(name, start)
			return
		}
		box.res, box.err = b.host.ExecuteTool(name, args)
	})

	var res *tools.Result
	switch {
	case err != nil:
		res = bridgeFailure(name, err, start)
	case box.err != nil:
		res = &tools.Result{Tool: name, Success: false, Error: box.err.Error(), Duration: time.Since(start)}
	case box.res == nil:
		res = &tools.Result{Tool: name, Success: false, Error: "host returned no result", Duration: time.Since(start)}
	default:
		res = box.res
		if res.Tool == "" {
			res.Tool = name
		}
		if res.Duration == 0 {
			res.Duration = time.Since(start)
		}
	}

	b.emit(Event{
		Type:      EventToolFinished,
		RequestID: id,
		Tool:      name,
		Success:   res.Success,
		Summary:   finishedSummary(res),
		Timestamp: time.Now(),
	})
	return res
}

type hostOutcome struct {
	res *tools.Result
	err error
}

func bridgeFailure(name string, err error, start time.Time) *tools.Result {
	var timeout *TimeoutError
	msg := err.Error()
	if errors.As(err, &timeout) {
		msg = "operation timed out: the host did not respond in time"
	}
	return &tools.Result{Tool: name, Success: false, Error: msg, Duration: time.Since(start)}
}

func cancelledResult(name string, start time.Time) *tools.Result {
	return &tools.Result{
		Tool:     name,
		Success:  false,
		Error:    "request cancelled",
		Duration: time.Since(start),
	}
}

func finishedSummary(res *tools.Result) string {
	if res.Success {
		return res.Output
	}
	return res.Error
}
