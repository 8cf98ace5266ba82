package ttlstash

// Resubscribe installs the change subscription, replacing any previous one.
// Every notification from the backend re-runs Restore, whichever key
// changed. It is a no-op when the store is not ready.
func (s *Store) Resubscribe() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.closeSubscription()

	if !s.IsReady() {
		return nil
	}

	var unsubscribe func()
	err := guard(func() (err error) {
		unsubscribe, err = s.backend.Subscribe(s.onChange)
		return err
	})
	if err != nil {
		return s.classifier.Classify(err)
	}
	s.unsubscribe = unsubscribe
	return nil
}

// Close cancels the change subscription. It is safe to call more than once,
// and before any subscription exists. The store stays usable afterwards but
// no longer follows other contexts.
func (s *Store) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closeSubscription()
	return nil
}

func (s *Store) closeSubscription() {
	if s.unsubscribe == nil {
		return
	}
	s.unsubscribe()
	s.unsubscribe = nil
}

// onChange handles a backend change notification.
func (s *Store) onChange() {
	if err := s.Restore(); err != nil {
		s.logger.Warn("sync restore not persisted", "error", err)
	}
	s.logger.Debug("store synchronized")
	if s.syncHook != nil {
		s.syncHook()
	}
}
