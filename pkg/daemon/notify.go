package daemon

// notifyHandlers are called for OS notifications. Handlers run on their own
// goroutine so the notification thread is never blocked by a bundle.
type notifyHandlers struct {
	suspend        func()
	resume         func()
	powerChanged   func()
	displayChanged func()
	hotkey         func()
}

func (h notifyHandlers) dispatch(fn func()) {
	if fn == nil {
		return
	}
	go func() {
		defer RecoverCrash("notification handler")
		fn()
	}()
}
