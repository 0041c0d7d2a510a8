package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	nodex "github.com/tanpawarit/chative-retail/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/chative-retail/agent/state"
)

// TurnStream is a pull-based reply stream for one turn. The reply is appended
// and the session saved only when Recv reaches io.EOF; closing early persists
// nothing from the turn.
type TurnStream struct {
	ctx    context.Context
	state  *nodex.GraphState
	reader *schema.StreamReader[*schema.Message]
	store  statex.Store

	release     func()
	unlockOnce  sync.Once
	readerClose sync.Once

	reply strings.Builder
	done  bool
	err   error
}

func newTurnStream(
	ctx context.Context,
	state *nodex.GraphState,
	reader *schema.StreamReader[*schema.Message],
	store statex.Store,
	unlock func(),
) *TurnStream {
	return &TurnStream{ctx: ctx, state: state, reader: reader, store: store, release: unlock}
}

func (t *TurnStream) SessionID() string {
	return t.state.SessionID
}

func (t *TurnStream) Handler() contractx.HandlerName {
	return t.state.Handler.Name()
}

// Reply is the concatenated text received so far.
func (t *TurnStream) Reply() string {
	return t.reply.String()
}

// Recv returns the next chunk verbatim, or io.EOF once the turn is persisted.
func (t *TurnStream) Recv() (string, error) {
	if t.done {
		return "", io.EOF
	}
	if t.err != nil {
		return "", t.err
	}

	msg, err := t.reader.Recv()
	if errors.Is(err, io.EOF) {
		return "", t.finish()
	}
	if err != nil {
		t.err = fmt.Errorf("%w: handler=%s: %v", contractx.ErrModelInvoke, t.Handler(), err)
		t.Close()
		return "", t.err
	}
	if msg == nil {
		return "", nil
	}
	t.reply.WriteString(msg.Content)
	return msg.Content, nil
}

func (t *TurnStream) finish() error {
	defer t.unlock()
	t.closeReader()

	t.state.Reply = t.reply.String()
	if _, err := nodex.AppendReply(t.state); err != nil {
		t.err = err
		return err
	}
	if _, err := nodex.SaveSession(t.ctx, t.state, t.store); err != nil {
		t.err = err
		return err
	}
	t.done = true
	return io.EOF
}

// Close releases the stream and the session lock. Safe to call more than once.
func (t *TurnStream) Close() {
	if t.done {
		return
	}
	t.closeReader()
	if t.err == nil {
		log.Ctx(t.ctx).Info().
			Str("session_id", t.state.SessionID).
			Str("handler", string(t.Handler())).
			Int("partial_len", t.reply.Len()).
			Msg("stream closed before completion, turn not persisted")
	}
	t.unlock()
}

func (t *TurnStream) unlock() {
	t.unlockOnce.Do(t.release)
}

func (t *TurnStream) closeReader() {
	t.readerClose.Do(t.reader.Close)
}
