//go:build windows

package daemon

import (
	"errors"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

const (
	wmPowerBroadcast = 0x0218
	wmDisplayChange  = 0x007E
	wmHotkey         = 0x0312
	wmAppHeartbeat   = win.WM_APP + 1

	pbtAPMSuspend           = 0x0004
	pbtAPMResumeSuspend     = 0x0007
	pbtAPMPowerStatusChange = 0x000A
	pbtAPMResumeAutomatic   = 0x0012

	modAlt      = 0x0001
	modControl  = 0x0002
	modShift    = 0x0004
	modNoRepeat = 0x4000
	vkD         = 0x44

	safetyHotkeyID = 0x4C41

	esSystemRequired   = 0x00000001
	esAwaymodeRequired = 0x00000040
	esContinuous       = 0x80000000

	errHotkeyAlreadyRegistered = 1409
)

var (
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")
	moduser32   = windows.NewLazySystemDLL("user32.dll")

	procSetThreadExecutionState = modkernel32.NewProc("SetThreadExecutionState")
	procRegisterHotKey          = moduser32.NewProc("RegisterHotKey")
	procUnregisterHotKey        = moduser32.NewProc("UnregisterHotKey")

	notifyMu       sync.Mutex
	notifyHwnd     win.HWND
	notifyHandler  notifyHandlers
	notifyClass    *uint16
	registerClass  sync.Once
	wndProcPointer = syscall.NewCallback(notifyWndProc)
)

func setExecutionState(flags uint32) error {
	prev, _, err := procSetThreadExecutionState.Call(uintptr(flags))
	if prev == 0 {
		return pkgerrors.Wrap(err, "SetThreadExecutionState failed")
	}
	return nil
}

// keepAwake resets the system idle timer. It runs on the notification thread
// when the listener is up.
func keepAwake() error {
	notifyMu.Lock()
	hwnd := notifyHwnd
	notifyMu.Unlock()
	if hwnd != 0 {
		win.PostMessage(hwnd, wmAppHeartbeat, 0, 0)
		return nil
	}
	return setExecutionState(esSystemRequired | esAwaymodeRequired)
}

// listenNotifications runs a hidden window receiving power, display and
// hotkey messages. Message-only windows do not get broadcasts, so this is a
// regular top-level window that is never shown. It blocks until
// stopListeningNotifications is called.
func listenNotifications(h notifyHandlers) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	hInst := win.GetModuleHandle(nil)
	var classErr error
	registerClass.Do(func() {
		notifyClass, classErr = syscall.UTF16PtrFromString("LADNotificationWindow")
		if classErr != nil {
			return
		}
		wc := win.WNDCLASSEX{
			CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
			LpfnWndProc:   wndProcPointer,
			HInstance:     hInst,
			LpszClassName: notifyClass,
		}
		if win.RegisterClassEx(&wc) == 0 {
			classErr = errors.New("RegisterClassEx failed")
		}
	})
	if classErr != nil {
		return classErr
	}

	hwnd := win.CreateWindowEx(0, notifyClass, notifyClass, 0, 0, 0, 0, 0, 0, 0, hInst, nil)
	if hwnd == 0 {
		return errors.New("CreateWindowEx failed")
	}

	notifyMu.Lock()
	notifyHwnd = hwnd
	notifyHandler = h
	notifyMu.Unlock()

	registerSafetyHotkey(hwnd)

	if err := setExecutionState(esContinuous | esSystemRequired | esAwaymodeRequired); err != nil {
		logrus.Warnf("HEARTBEAT: failed to set execution state: %v", err)
	}
	logrus.Debug("listening for power, display and hotkey notifications")

	var msg win.MSG
	for win.GetMessage(&msg, 0, 0, 0) > 0 {
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}

	procUnregisterHotKey.Call(uintptr(hwnd), safetyHotkeyID)
	if err := setExecutionState(esContinuous); err != nil {
		logrus.Warnf("HEARTBEAT: failed to clear execution state: %v", err)
	}

	notifyMu.Lock()
	notifyHwnd = 0
	notifyHandler = notifyHandlers{}
	notifyMu.Unlock()
	return nil
}

func registerSafetyHotkey(hwnd win.HWND) {
	r, _, err := procRegisterHotKey.Call(uintptr(hwnd), safetyHotkeyID, modControl|modShift|modAlt|modNoRepeat, vkD)
	if r != 0 {
		logrus.Info("SAFETY: revert hotkey Ctrl+Shift+Alt+D registered")
		return
	}
	var errno syscall.Errno
	switch {
	case errors.As(err, &errno) && errno == errHotkeyAlreadyRegistered:
		logrus.Warn("SAFETY: revert hotkey is already registered by another application or instance")
	case errors.As(err, &errno) && errno == syscall.Errno(windows.ERROR_ACCESS_DENIED):
		logrus.Warn("SAFETY: failed to register revert hotkey: access denied")
	default:
		logrus.Warnf("SAFETY: failed to register revert hotkey: %v", err)
	}
}

func stopListeningNotifications() {
	notifyMu.Lock()
	hwnd := notifyHwnd
	notifyMu.Unlock()
	if hwnd != 0 {
		win.PostMessage(hwnd, win.WM_CLOSE, 0, 0)
	}
}

func notifyWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	notifyMu.Lock()
	h := notifyHandler
	notifyMu.Unlock()

	switch msg {
	case wmPowerBroadcast:
		switch wParam {
		case pbtAPMSuspend:
			h.dispatch(h.suspend)
		case pbtAPMResumeSuspend, pbtAPMResumeAutomatic:
			h.dispatch(h.resume)
		case pbtAPMPowerStatusChange:
			h.dispatch(h.powerChanged)
		}
		return 1
	case wmDisplayChange:
		h.dispatch(h.displayChanged)
		return 0
	case wmHotkey:
		if wParam == safetyHotkeyID {
			h.dispatch(h.hotkey)
		}
		return 0
	case wmAppHeartbeat:
		if err := setExecutionState(esSystemRequired | esAwaymodeRequired); err != nil {
			logrus.Warnf("HEARTBEAT: %v", err)
		}
		return 0
	case win.WM_CLOSE:
		win.DestroyWindow(hwnd)
		return 0
	case win.WM_DESTROY:
		win.PostQuitMessage(0)
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}
