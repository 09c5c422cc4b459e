// Package app glues a runtime to an interactive UI: it runs turns in
// the background, throttles the event stream so the UI isn't flooded,
// and persists the session with debounced saves.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rohitshetty84/multiagent/pkg/runtime"
	"github.com/rohitshetty84/multiagent/pkg/session"
)

type App struct {
	agentFilename    string
	runtime          runtime.Runtime
	session          *session.Session
	firstMessage     string
	events           chan tea.Msg
	throttleDuration time.Duration
	cancel           context.CancelFunc
	sessionStore     session.Store

	saveMu      sync.Mutex
	saveTimer   *time.Timer
	savePending bool
}

func New(agentFilename string, rt runtime.Runtime, sess *session.Session, firstMessage string, sessionStore session.Store) *App {
	return &App{
		agentFilename:    agentFilename,
		runtime:          rt,
		session:          sess,
		firstMessage:     firstMessage,
		events:           make(chan tea.Msg, 128),
		throttleDuration: 50 * time.Millisecond,
		sessionStore:     sessionStore,
	}
}

func (a *App) FirstMessage() string {
	return a.firstMessage
}

func (a *App) AgentFilename() string {
	return a.agentFilename
}

func (a *App) SessionStore() session.Store {
	return a.sessionStore
}

// WelcomeMessage returns the welcome message of the agent currently
// holding the conversation.
func (a *App) WelcomeMessage() string {
	current := a.runtime.CurrentAgent(a.session)
	if current == nil {
		return ""
	}
	return current.WelcomeMessage()
}

// CurrentAgentName returns the name of the agent currently holding the
// conversation.
func (a *App) CurrentAgentName() string {
	return a.session.AgentName()
}

// Run starts one agent turn in the background. Events arrive on the
// channel consumed by Subscribe.
func (a *App) Run(ctx context.Context, cancel context.CancelFunc, message string) {
	a.cancel = cancel
	go func() {
		a.session.AddMessage(session.UserMessage(message))

		if a.session.Title == "" && message != "" {
			a.generateSessionTitle(message)
		}

		a.scheduleSave(ctx)

		for event := range a.runtime.RunStream(ctx, a.session) {
			if ctx.Err() != nil {
				return
			}
			a.events <- event

			switch event.(type) {
			case runtime.StreamStoppedEvent, runtime.ToolCallResponseEvent:
				a.scheduleSave(ctx)
			}
		}
	}()
}

// CancelRun stops the in-flight turn, if any.
func (a *App) CancelRun() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// Subscribe pumps throttled runtime events into the bubbletea program
// until ctx is done.
func (a *App) Subscribe(ctx context.Context, program *tea.Program) {
	throttled := a.throttleEvents(ctx, a.events)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-throttled:
			if !ok {
				return
			}
			program.Send(msg)
		}
	}
}

func (a *App) NewSession() {
	a.CancelRun()
	a.session = session.New()
}

func (a *App) Session() *session.Session {
	return a.session
}

// LoadSession replaces the current session with one from the store.
func (a *App) LoadSession(ctx context.Context, sessionID string) error {
	if a.sessionStore == nil {
		return fmt.Errorf("no session store available")
	}

	loaded, err := a.sessionStore.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	a.CancelRun()
	a.session = loaded
	return nil
}

// Flush persists the session immediately, bypassing the save debounce.
// Called on shutdown.
func (a *App) Flush(ctx context.Context) {
	a.saveMu.Lock()
	if a.saveTimer != nil {
		a.saveTimer.Stop()
	}
	a.savePending = false
	a.saveMu.Unlock()

	a.saveSession(ctx)
}

// throttleEvents buffers and merges rapid events to keep UI redraws
// manageable during fast streaming.
func (a *App) throttleEvents(ctx context.Context, in <-chan tea.Msg) <-chan tea.Msg {
	out := make(chan tea.Msg, 128)

	go func() {
		defer close(out)

		var buffer []tea.Msg
		ticker := time.NewTicker(a.throttleDuration)
		defer ticker.Stop()

		flush := func() {
			if len(buffer) == 0 {
				return
			}
			for _, msg := range mergeEvents(buffer) {
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
			buffer = buffer[:0]
		}

		for {
			select {
			case <-ctx.Done():
				flush()
				return

			case msg, ok := <-in:
				if !ok {
					flush()
					return
				}

				if shouldThrottle(msg) {
					buffer = append(buffer, msg)
				} else {
					flush()
					select {
					case out <- msg:
					case <-ctx.Done():
						return
					}
				}

			case <-ticker.C:
				flush()
			}
		}
	}()

	return out
}

func shouldThrottle(msg tea.Msg) bool {
	switch msg.(type) {
	case runtime.AgentChoiceEvent, runtime.PartialToolCallEvent:
		return true
	default:
		return false
	}
}

// mergeEvents folds consecutive content chunks from the same agent into
// one event and keeps only the latest partial tool call per call ID.
func mergeEvents(events []tea.Msg) []tea.Msg {
	var result []tea.Msg

	for i := 0; i < len(events); i++ {
		switch ev := events[i].(type) {
		case runtime.AgentChoiceEvent:
			merged := ev
			for i+1 < len(events) {
				next, ok := events[i+1].(runtime.AgentChoiceEvent)
				if !ok || next.AgentName != ev.AgentName {
					break
				}
				merged.Content += next.Content
				i++
			}
			result = append(result, merged)

		case runtime.PartialToolCallEvent:
			latest := ev
			for j := i + 1; j < len(events); j++ {
				if next, ok := events[j].(runtime.PartialToolCallEvent); ok && next.ToolCall.ID == ev.ToolCall.ID {
					latest = next
					i = j
				}
			}
			result = append(result, latest)

		default:
			result = append(result, events[i])
		}
	}

	return result
}

func (a *App) generateSessionTitle(message string) {
	a.session.Title = session.TitleFromContent(message)
}

// scheduleSave debounces session persistence so rapid event bursts
// don't hammer the store.
func (a *App) scheduleSave(ctx context.Context) {
	if a.sessionStore == nil {
		return
	}

	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.savePending = true
	if a.saveTimer != nil {
		a.saveTimer.Stop()
	}
	a.saveTimer = time.AfterFunc(2*time.Second, func() {
		a.saveMu.Lock()
		pending := a.savePending
		a.savePending = false
		a.saveMu.Unlock()

		if pending {
			a.saveSession(ctx)
		}
	})
}

func (a *App) saveSession(ctx context.Context) {
	if a.sessionStore == nil || a.session == nil {
		return
	}

	_, err := a.sessionStore.GetSession(ctx, a.session.ID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		_ = a.sessionStore.AddSession(ctx, a.session)
	case err == nil:
		_ = a.sessionStore.UpdateSession(ctx, a.session)
	}
}
