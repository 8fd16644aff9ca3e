package choice

import "time"

// FocusDelay is how long after entering text mode the text input is focused,
// so the input exists before it is focused.
const FocusDelay = 50 * time.Millisecond

// Focuser moves input focus to the free-text input.
type Focuser interface {
	FocusTextInput()
}

// FocuserFunc adapts a function to Focuser.
type FocuserFunc func()

func (f FocuserFunc) FocusTextInput() { f() }

// ScheduleFocus calls f.FocusTextInput after FocusDelay without blocking.
func ScheduleFocus(f Focuser) *time.Timer {
	return time.AfterFunc(FocusDelay, f.FocusTextInput)
}

// Session drives a Runtime for a single conversation turn. It is not safe
// for concurrent use; callers serialize events per conversation.
type Session struct {
	rt         *Runtime
	state      State
	focus      Focuser
	submission *Submission
}

// NewSession starts a session at the runtime's initial state. focus may be nil.
func NewSession(rt *Runtime, focus Focuser) *Session {
	return ResumeSession(rt, rt.Start(), focus)
}

// ResumeSession continues a session from a previously stored state.
func ResumeSession(rt *Runtime, s State, focus Focuser) *Session {
	return &Session{rt: rt, state: s, focus: focus}
}

// Dispatch applies ev. Once a submission has been produced the session is
// done and further events are ignored.
func (s *Session) Dispatch(ev Event) Step {
	if s.submission != nil {
		return Step{State: s.state}
	}
	step := s.rt.Apply(s.state, ev)
	s.state = step.State
	if step.FocusText && s.focus != nil {
		ScheduleFocus(s.focus)
	}
	if step.Submission != nil {
		s.submission = step.Submission
	}
	return step
}

// State returns the current runtime state.
func (s *Session) State() State { return s.state }

// View projects the current state for rendering.
func (s *Session) View() View { return s.rt.View(s.state) }

// Done reports whether the session has produced its submission.
func (s *Session) Done() bool { return s.submission != nil }

// Submission returns the value the session ended with, or nil.
func (s *Session) Submission() *Submission { return s.submission }
