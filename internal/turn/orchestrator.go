package turn

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/openpalette/quill/internal/backend"
	"github.com/openpalette/quill/internal/history"
	"github.com/openpalette/quill/internal/intent"
	"github.com/openpalette/quill/internal/models"
	"github.com/openpalette/quill/internal/session"
)

const (
	titleMaxRunes = 40
	titleEllipsis = "…"
	defaultTitle  = "New chat"

	imageInProgressText = "Generating image…"
	imageCompleteText   = "Here is your image."

	textErrorText  = "Error: the response could not be generated. Check your connection and try again."
	imageErrorText = "Error: image generation failed. Please try again."
)

// NoEdit marks a turn that does not replace an existing message.
const NoEdit = -1

// Input describes one user submission.
type Input struct {
	// SessionID targets an existing session; empty (or unknown) creates one.
	SessionID   string
	Text        string
	Attachments []models.Attachment
	Files       []models.FileHandle
	// EditIndex, when >= 0, discards the message at that index and
	// everything after it before appending the new turn.
	EditIndex int
	// OnSnapshot, if set, observes every whole-message snapshot of the
	// model reply as it is built.
	OnSnapshot func(models.Message)
}

// Result reports how a turn settled. A cancelled turn carries no error.
type Result struct {
	SessionID string
	MessageID string
	Cancelled bool
}

// Orchestrator owns the per-turn lifecycle: session resolution,
// optimistic placeholder appends, text/image routing, stream merging,
// cancellation and error annotation.
//
// Only one turn per session should be in flight at a time; enforcing
// that is the caller's obligation. The orchestrator only tracks the
// active turn's cancel function per session so Cancel can reach it.
type Orchestrator struct {
	sessions   *session.Store
	streamer   backend.TextStreamer
	images     backend.ImageGenerator
	classifier *intent.Classifier
	logger     *zap.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func New(sessions *session.Store, streamer backend.TextStreamer, images backend.ImageGenerator, classifier *intent.Classifier, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		sessions:   sessions,
		streamer:   streamer,
		images:     images,
		classifier: classifier,
		logger:     logger,
		active:     make(map[string]context.CancelFunc),
	}
}

// Submit runs one turn to completion. The returned error is one of the
// backend taxonomy errors; cancellation settles with Cancelled=true and
// a nil error, leaving the placeholder exactly as it was when the
// cancel arrived.
func (o *Orchestrator) Submit(ctx context.Context, in Input) (Result, error) {
	sess := o.resolveSession(in)
	res := Result{SessionID: sess.ID}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.register(sess.ID, cancel)
	defer o.unregister(sess.ID)

	base := sess.CloneMessages()
	cut := history.NoCut
	if in.EditIndex >= 0 && in.EditIndex <= len(base) {
		cut = history.EditCut(in.EditIndex)
		base = base[:cut]
	}
	projected := history.Project(sess.Messages, cut)

	userMsg := models.Message{
		ID:          session.NewID(),
		Author:      models.RoleUser,
		Text:        in.Text,
		Attachments: in.Attachments,
		Files:       in.Files,
	}
	placeholder := models.Message{
		ID:        session.NewID(),
		Author:    models.RoleModel,
		Streaming: true,
	}
	res.MessageID = placeholder.ID

	// Optimistic update: user message and empty placeholder become
	// visible before any backend call completes.
	sess.Messages = append(base, userMsg, placeholder)
	sess.UpdatedAt = time.Now().UTC()
	o.sessions.Upsert(sess)
	notify(in.OnSnapshot, placeholder)

	decision := o.classifier.Classify(ctx, in.Text, in.Attachments, base)
	if ctx.Err() != nil {
		res.Cancelled = true
		return res, nil
	}

	var err error
	if decision.Kind == intent.TurnImage {
		err = o.runImageTurn(ctx, sess.ID, placeholder.ID, decision.Prompt, in.OnSnapshot)
	} else {
		err = o.runTextTurn(ctx, sess.ID, placeholder.ID, in.Text, projected, in.OnSnapshot)
	}
	if err != nil {
		if cancelled(ctx, err) {
			res.Cancelled = true
			return res, nil
		}
		o.logger.Error("turn failed",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		o.updateMessage(sess.ID, placeholder.ID, in.OnSnapshot, func(m *models.Message) {
			m.Text = errorText(err)
			m.Streaming = false
		})
		return res, err
	}
	return res, nil
}

// Regenerate drops the model message at messageIndex together with its
// preceding user message, then re-submits that user message's original
// text and raw file handles as a new turn.
func (o *Orchestrator) Regenerate(ctx context.Context, sessionID string, messageIndex int, onSnapshot func(models.Message)) (Result, error) {
	sess, ok := o.sessions.Get(sessionID)
	if !ok {
		return Result{}, errors.Errorf("unknown session %q", sessionID)
	}
	msgs := sess.Messages
	if messageIndex <= 0 || messageIndex >= len(msgs) ||
		msgs[messageIndex].Author != models.RoleModel ||
		msgs[messageIndex-1].Author != models.RoleUser {
		return Result{}, errors.New("regeneration target must be a model message preceded by a user message")
	}

	source := msgs[messageIndex-1]
	return o.Submit(ctx, Input{
		SessionID:   sessionID,
		Text:        source.Text,
		Attachments: source.Attachments,
		Files:       source.Files,
		EditIndex:   history.RegenerateCut(messageIndex),
		OnSnapshot:  onSnapshot,
	})
}

// Cancel fires the active turn's cancellation for a session. It is
// advisory: state writes stop at the next suspension point, and the
// in-flight request context is cancelled at the transport level.
func (o *Orchestrator) Cancel(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	cancel, ok := o.active[sessionID]
	if ok {
		cancel()
	}
	return ok
}

func (o *Orchestrator) runImageTurn(ctx context.Context, sessionID, messageID, prompt string, onSnapshot func(models.Message)) error {
	o.updateMessage(sessionID, messageID, onSnapshot, func(m *models.Message) {
		m.Text = imageInProgressText
	})

	attachment, err := o.images.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	o.updateMessage(sessionID, messageID, onSnapshot, func(m *models.Message) {
		m.Text = imageCompleteText
		m.Attachments = []models.Attachment{attachment}
		m.Streaming = false
	})
	return nil
}

func (o *Orchestrator) runTextTurn(ctx context.Context, sessionID, messageID, input string, projected []backend.ChatMessage, onSnapshot func(models.Message)) error {
	stream, err := o.streamer.StartStream(ctx, input, projected)
	if err != nil {
		return err
	}
	defer stream.Close()

	merger := NewMerger()
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		// Checked before every mutation so a cancelled turn writes
		// nothing past the moment of cancellation.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		text, citations := merger.Merge(chunk)
		o.updateMessage(sessionID, messageID, onSnapshot, func(m *models.Message) {
			m.Text = text
			m.Citations = citations
		})
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	o.updateMessage(sessionID, messageID, onSnapshot, func(m *models.Message) {
		m.Streaming = false
	})
	return nil
}

// updateMessage applies fn to one message through a whole-session
// replacement, keeping the store's change detection and persistence
// triggering correct.
func (o *Orchestrator) updateMessage(sessionID, messageID string, onSnapshot func(models.Message), fn func(*models.Message)) {
	sess, ok := o.sessions.Get(sessionID)
	if !ok {
		return
	}

	msgs := sess.CloneMessages()
	var updated models.Message
	found := false
	for i := range msgs {
		if msgs[i].ID == messageID {
			fn(&msgs[i])
			updated = msgs[i]
			found = true
			break
		}
	}
	if !found {
		return
	}

	sess.Messages = msgs
	sess.UpdatedAt = time.Now().UTC()
	o.sessions.Upsert(sess)
	notify(onSnapshot, updated)
}

func (o *Orchestrator) resolveSession(in Input) models.Session {
	if in.SessionID != "" {
		if sess, ok := o.sessions.Get(in.SessionID); ok {
			return sess
		}
	}
	return models.Session{
		ID:    session.NewID(),
		Title: deriveTitle(in.Text),
	}
}

func (o *Orchestrator) register(sessionID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[sessionID] = cancel
}

func (o *Orchestrator) unregister(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, sessionID)
}

func deriveTitle(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return defaultTitle
	}
	runes := []rune(trimmed)
	if len(runes) <= titleMaxRunes {
		return trimmed
	}
	return string(runes[:titleMaxRunes]) + titleEllipsis
}

func errorText(err error) string {
	if errors.Is(err, backend.ErrImageGeneration) {
		return imageErrorText
	}
	return textErrorText
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func notify(onSnapshot func(models.Message), msg models.Message) {
	if onSnapshot != nil {
		onSnapshot(msg)
	}
}
