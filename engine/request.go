package engine

import (
	"context"
	"time"

	"nextedit/logger"
	"nextedit/text"
	"nextedit/types"
)

// issueRequest starts the provider call for the given epoch. Any in-flight
// request is cancelled first; a late response would fail the epoch check
// anyway, cancelling just releases the connection sooner.
func (e *Engine) issueRequest(snap *types.DocumentSnapshot, epoch int64) {
	e.cancelRequest()

	ctx, cancel := context.WithTimeout(e.mainCtx, e.cfg.CompletionTimeout)
	e.cancelInFlight = cancel

	req := &types.SuggestionRequest{
		WorkspacePath: e.cfg.WorkspacePath,
		Snapshot:      snap,
		RecentPatches: e.history.RecentPatches(uriPath(snap.URI)),
	}
	if e.prevTextURI == snap.URI {
		req.PreviousText = e.prevText
	}
	e.prevText = snap.Text
	e.prevTextURI = snap.URI
	if rs, ok := e.buf.(RetrievalSource); ok {
		req.Retrieval = text.FuseRetrievalContext(rs.RetrievalSnippets(), text.FuseOptions{
			MaxSnippetLines: e.cfg.Retrieval.MaxSnippetLines,
			MaxSnippets:     e.cfg.Retrieval.MaxSnippets,
		})
	}

	logger.Debug("engine: requesting suggestions epoch=%d uri=%s cursor=%d", epoch, snap.URI, snap.CursorOffset)

	go func() {
		defer cancel()
		resp, err := e.provider.GetSuggestions(ctx, req)
		if err != nil {
			e.deliver(Event{Type: EventResponseFailed, Data: responseErrorData{epoch: epoch, err: err}})
			return
		}
		e.deliver(Event{Type: EventResponseReady, Data: responseData{epoch: epoch, snapshot: snap, resp: resp}})
	}()
}

func (e *Engine) cancelRequest() {
	if e.cancelInFlight != nil {
		e.cancelInFlight()
		e.cancelInFlight = nil
	}
}

// deliver feeds an event back into the loop from a worker goroutine,
// dropping it if the engine is shutting down.
func (e *Engine) deliver(ev Event) {
	select {
	case e.eventChan <- ev:
	case <-e.mainCtx.Done():
	}
}

// startDebounce arms the trigger delay for the given epoch. Restarting an
// armed timer supersedes it; the old callback carries a stale epoch and is
// ignored even if it already fired.
func (e *Engine) startDebounce(d time.Duration, epoch int64) {
	e.stopDebounce()
	if d < 0 {
		d = 0
	}
	e.debounceTimer = e.clock.AfterFunc(d, func() {
		e.deliver(Event{Type: EventDebounceElapsed, Data: debounceData{epoch: epoch}})
	})
}

func (e *Engine) stopDebounce() {
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
}
