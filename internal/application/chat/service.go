package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/domain/chat"
	"github.com/nutrisnap/v2/internal/ports/outbound"
	apperrors "github.com/nutrisnap/v2/pkg/errors"
)

const (
	defaultWindow = 20
	streamBudget  = 120 * time.Second
)

const chatSystemPrompt = `You are a friendly, concise nutrition assistant. Answer in the language the user writes in. Keep answers practical and grounded in the user's logged meals when they are mentioned. Never give medical advice beyond general nutrition guidance.`

// Service orchestrates chat threads against the model.
type Service struct {
	threads  outbound.ChatThreadRepository
	model    outbound.ChatModel
	hub      *ConnectionHub
	metrics  outbound.Metrics
	ids      outbound.IDGenerator
	clock    outbound.Clock
	window   int
	budget   time.Duration
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates the chat application service. window <= 0 uses the
// default bounded history size.
func NewService(
	threads outbound.ChatThreadRepository,
	model outbound.ChatModel,
	hub *ConnectionHub,
	metrics outbound.Metrics,
	ids outbound.IDGenerator,
	clock outbound.Clock,
	window int,
	logger *zap.Logger,
) *Service {
	if window <= 0 {
		window = defaultWindow
	}
	return &Service{
		threads:  threads,
		model:    model,
		hub:      hub,
		metrics:  metrics,
		ids:      ids,
		clock:    clock,
		window:   window,
		budget:   streamBudget,
		validate: validator.New(),
		logger:   logger.Named("chat"),
	}
}

// Register wires the service's handlers into the bus.
func (s *Service) Register(b *bus.Bus) {
	bus.RegisterCommand(b, s.handleSend)
	bus.RegisterCommand(b, s.handleStream)
	bus.RegisterCommand(b, s.handleArchive)
	bus.RegisterQuery(b, s.handleGetThread)
	bus.RegisterQuery(b, s.handleListThreads)
}

func (s *Service) handleSend(ctx context.Context, uow bus.UnitOfWork, cmd SendMessageCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return nil, apperrors.NewInvalidInput("message content cannot be empty")
	}

	thread, err := s.loadOrCreate(ctx, uow, cmd.UserID, cmd.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread.Status() == chat.ThreadArchived {
		return nil, apperrors.NewPreconditionFailed("thread is archived")
	}

	mctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()
	reply, err := s.model.Complete(mctx, chatSystemPrompt, s.modelWindow(thread, content))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeout("chat completion")
		}
		return nil, apperrors.NewUpstream("chat model", err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, apperrors.NewUpstream("chat model", errors.New("empty completion"))
	}

	return s.finalize(ctx, uow, thread, content, reply, false, nil)
}

func (s *Service) handleStream(ctx context.Context, uow bus.UnitOfWork, cmd StreamMessageCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return nil, apperrors.NewInvalidInput("message content cannot be empty")
	}

	thread, err := s.loadOrCreate(ctx, uow, cmd.UserID, cmd.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread.Status() == chat.ThreadArchived {
		return nil, apperrors.NewPreconditionFailed("thread is archived")
	}

	started := s.clock.Now()
	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()
	stream, err := s.model.Stream(streamCtx, chatSystemPrompt, s.modelWindow(thread, content))
	if err != nil {
		s.metrics.ChatStreamFinished("upstream_error", s.clock.Now().Sub(started))
		return nil, apperrors.NewUpstream("chat model", err)
	}
	defer stream.Close()

	var (
		b           strings.Builder
		deltas      int
		interrupted bool
		deadline    time.Time
		guard       *time.Timer
	)
	defer func() {
		if guard != nil {
			guard.Stop()
		}
	}()
	for {
		if deltas > 0 && s.clock.Now().After(deadline) {
			interrupted = true
			break
		}
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if deltas == 0 {
				s.metrics.ChatStreamFinished("upstream_error", s.clock.Now().Sub(started))
				return nil, apperrors.NewUpstream("chat model", err)
			}
			interrupted = true
			break
		}
		if delta == "" {
			continue
		}
		if deltas == 0 {
			// The stream budget runs from the first byte. The timer cancels
			// the model stream so a Recv that hangs mid-stream cannot hold
			// the handler past the budget.
			deadline = s.clock.Now().Add(s.budget)
			guard = time.AfterFunc(deadline.Sub(s.clock.Now()), cancelStream)
		}
		deltas++
		b.WriteString(delta)
		if cmd.Sink != nil {
			if err := cmd.Sink.Deliver(chat.Message{Role: chat.RoleAssistant, Content: delta, CreatedAt: s.clock.Now()}); err != nil {
				// Client went away; keep what the model already said.
				interrupted = true
				break
			}
		}
	}

	if deltas == 0 {
		s.metrics.ChatStreamFinished("upstream_error", s.clock.Now().Sub(started))
		return nil, apperrors.NewUpstream("chat model", errors.New("stream ended without content"))
	}

	reply := b.String()
	if interrupted {
		// The marker is appended verbatim so the persisted content stays a
		// direct continuation of what the client already received.
		reply += chat.InterruptedMarker
		s.metrics.ChatStreamFinished("partial", s.clock.Now().Sub(started))
	} else {
		s.metrics.ChatStreamFinished("complete", s.clock.Now().Sub(started))
	}
	return s.finalize(ctx, uow, thread, content, reply, interrupted, cmd.Sink)
}

// finalize writes the user+assistant pair atomically, raises the event
// and fans the reply out to the user's other connections.
func (s *Service) finalize(ctx context.Context, uow bus.UnitOfWork, thread *chat.Thread, userContent, reply string, interrupted bool, origin Sink) (any, error) {
	if err := thread.AppendExchange(userContent, reply); err != nil {
		switch {
		case errors.Is(err, chat.ErrThreadArchived):
			return nil, apperrors.NewPreconditionFailed("thread is archived")
		case errors.Is(err, chat.ErrEmptyMessage):
			return nil, apperrors.NewInvalidInput(err.Error())
		default:
			return nil, err
		}
	}
	if err := uow.Threads().Update(ctx, thread); err != nil {
		return nil, err
	}
	uow.Collect(thread.Events()...)
	thread.ClearEvents()

	messages := thread.Messages()
	assistant := messages[len(messages)-1]
	s.hub.Broadcast(thread.UserID(), thread.ID(), assistant, origin)

	return MessageResult{ThreadID: thread.ID(), Reply: assistant, Interrupted: interrupted}, nil
}

func (s *Service) handleArchive(ctx context.Context, uow bus.UnitOfWork, cmd ArchiveThreadCommand) (any, error) {
	thread, err := s.loadOwned(ctx, uow.Threads(), cmd.UserID, cmd.ThreadID, true)
	if err != nil {
		return nil, err
	}
	thread.Archive()
	if err := uow.Threads().Update(ctx, thread); err != nil {
		return nil, err
	}
	return ToThreadDTO(thread), nil
}

func (s *Service) handleGetThread(ctx context.Context, q GetThreadQuery) (any, error) {
	thread, err := s.loadOwned(ctx, s.threads, q.UserID, q.ThreadID, false)
	if err != nil {
		return nil, err
	}
	return ToThreadDTO(thread), nil
}

func (s *Service) handleListThreads(ctx context.Context, q ListThreadsQuery) (any, error) {
	threads, err := s.threads.ListByUser(ctx, q.UserID, q.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]ThreadDTO, 0, len(threads))
	for _, t := range threads {
		out = append(out, ToThreadDTO(t))
	}
	return out, nil
}

// modelWindow is the bounded history plus the incoming user message.
func (s *Service) modelWindow(thread *chat.Thread, content string) []chat.Message {
	window := thread.Window(s.window - 1)
	out := make([]chat.Message, 0, len(window)+1)
	out = append(out, window...)
	return append(out, chat.Message{Role: chat.RoleUser, Content: content, CreatedAt: s.clock.Now()})
}

func (s *Service) loadOrCreate(ctx context.Context, uow bus.UnitOfWork, userID, threadID uuid.UUID) (*chat.Thread, error) {
	if threadID == uuid.Nil {
		thread := chat.NewThread(s.ids.New(), userID)
		if err := uow.Threads().Create(ctx, thread); err != nil {
			return nil, err
		}
		return thread, nil
	}
	return s.loadOwned(ctx, uow.Threads(), userID, threadID, true)
}

// loadOwned fetches a thread, hiding other users' threads on reads and
// surfacing FORBIDDEN on writes.
func (s *Service) loadOwned(ctx context.Context, repo outbound.ChatThreadRepository, userID, threadID uuid.UUID, forWrite bool) (*chat.Thread, error) {
	thread, err := repo.FindByID(ctx, threadID)
	if errors.Is(err, outbound.ErrNotFound) {
		return nil, apperrors.NewNotFound("thread", threadID.String())
	}
	if err != nil {
		return nil, err
	}
	if !thread.IsOwnedBy(userID) {
		if forWrite {
			return nil, apperrors.NewForbidden("access thread")
		}
		return nil, apperrors.NewNotFound("thread", threadID.String())
	}
	return thread, nil
}
