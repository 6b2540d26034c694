package session

import "sync"

// Session describes the script a supervisor runs: the path to its backing
// file and the argument vector handed to each pass. The argument vector is
// mutable; a controller replaces it when it requests a rerun.
type Session struct {
	// ScriptPath is the path to the script's backing file. Immutable.
	ScriptPath string

	mu   sync.Mutex
	argv []string
}

// New creates a session for the script at path with the given arguments.
func New(path string, argv []string) *Session {
	s := &Session{ScriptPath: path}
	s.SetArgv(argv)
	return s
}

// Argv returns a copy of the current argument vector.
func (s *Session) Argv() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.argv))
	copy(out, s.argv)
	return out
}

// SetArgv replaces the argument vector.
func (s *Session) SetArgv(argv []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.argv = make([]string, len(argv))
	copy(s.argv, argv)
}
