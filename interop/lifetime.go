package interop

// Scope collects release functions during a multi-step creation and runs
// them in reverse order if the creation fails part way.
type Scope struct {
	releases []func()
}

// Defer registers release to run on Release.
func (s *Scope) Defer(release func()) {
	s.releases = append(s.releases, release)
}

// Release runs the registered functions last-in first-out and forgets them.
func (s *Scope) Release() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}

// Commit forgets the registered functions; ownership moved elsewhere.
func (s *Scope) Commit() {
	s.releases = nil
}
