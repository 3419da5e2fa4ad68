//go:build windows

package chargelimit

import (
	"errors"
	"runtime"
	"strings"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	pkgerrors "github.com/pkg/errors"
	"github.com/yusufpapurcu/wmi"

	"github.com/ladapp/lad/pkg/syserr"
)

type win32ComputerSystem struct {
	Manufacturer string
}

type wmiIdentity struct{}

// NativeIdentity reads the manufacturer from Win32_ComputerSystem.
func NativeIdentity() Identity { return wmiIdentity{} }

func (wmiIdentity) Manufacturer() (string, error) {
	var dst []win32ComputerSystem
	if err := wmi.Query("SELECT Manufacturer FROM Win32_ComputerSystem", &dst); err != nil {
		return "", syserr.New(syserr.ErrUnsupported, "Win32_ComputerSystem", err)
	}
	for _, cs := range dst {
		if strings.TrimSpace(cs.Manufacturer) != "" {
			return cs.Manufacturer, nil
		}
	}
	return "", syserr.Newf(syserr.ErrNotApplicable, "Win32_ComputerSystem", "manufacturer not reported")
}

type oleAPI struct{}

// NativeAPI returns a WMI scripting backed API.
func NativeAPI() API { return oleAPI{} }

const sFalse = 0x00000001

// withService connects to namespace on a locked OS thread and runs fn.
func withService(namespace string, fn func(service *ole.IDispatch) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || (oleErr.Code() != ole.S_OK && oleErr.Code() != sFalse) {
			return syserr.New(syserr.ErrTransient, "CoInitializeEx", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return syserr.New(syserr.ErrUnsupported, "SWbemLocator", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return syserr.New(syserr.ErrUnsupported, "SWbemLocator", err)
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer", nil, namespace)
	if err != nil {
		return syserr.New(syserr.ErrUnsupported, "ConnectServer "+namespace, err)
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	return fn(service)
}

func (oleAPI) ClassExists(namespace, class string) bool {
	err := withService(namespace, func(service *ole.IDispatch) error {
		v, err := oleutil.CallMethod(service, "Get", class)
		if err != nil {
			return err
		}
		return v.Clear()
	})
	return err == nil
}

func (oleAPI) InstanceProperty(namespace, class, property, contains string) (string, error) {
	var found string
	err := withService(namespace, func(service *ole.IDispatch) error {
		return eachInstance(service, class, func(item *ole.IDispatch) (bool, error) {
			v, ok := stringProperty(item, property)
			if ok && containsFold(v, contains) {
				found = v
				return true, nil
			}
			return false, nil
		})
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", syserr.Newf(syserr.ErrUnsupported, class, "no instance with %s containing %q", property, contains)
	}
	return found, nil
}

func (oleAPI) Invoke(c Call) (uint32, error) {
	op := c.Class + "." + c.Method
	var code uint32
	invoked := false

	err := withService(c.Namespace, func(service *ole.IDispatch) error {
		return eachInstance(service, c.Class, func(item *ole.IDispatch) (bool, error) {
			if c.WhereProperty != "" {
				v, ok := stringProperty(item, c.WhereProperty)
				if !ok || !containsFold(v, c.WhereContains) {
					return false, nil
				}
			}

			out, err := execMethod(service, item, c)
			if err != nil {
				return true, err
			}
			defer out.Release()

			rv, err := oleutil.GetProperty(out, c.Result)
			if err != nil {
				return true, err
			}
			defer rv.Clear()

			code, err = toUint32(rv.Value())
			invoked = true
			return true, err
		})
	})
	if err != nil {
		return 0, syserr.New(syserr.ErrTransient, op, err)
	}
	if !invoked {
		return 0, syserr.Newf(syserr.ErrUnsupported, op, "no matching %s instance", c.Class)
	}
	return code, nil
}

// execMethod runs c.Method on item with named input parameters and returns
// the output parameters object.
func execMethod(service, item *ole.IDispatch, c Call) (*ole.IDispatch, error) {
	pathV, err := oleutil.GetProperty(item, "Path_")
	if err != nil {
		return nil, err
	}
	path := pathV.ToIDispatch()
	defer path.Release()

	relV, err := oleutil.GetProperty(path, "RelPath")
	if err != nil {
		return nil, err
	}
	rel := relV.ToString()

	classV, err := oleutil.CallMethod(service, "Get", c.Class)
	if err != nil {
		return nil, err
	}
	class := classV.ToIDispatch()
	defer class.Release()

	methodsV, err := oleutil.GetProperty(class, "Methods_")
	if err != nil {
		return nil, err
	}
	methods := methodsV.ToIDispatch()
	defer methods.Release()

	methodV, err := oleutil.CallMethod(methods, "Item", c.Method)
	if err != nil {
		return nil, err
	}
	method := methodV.ToIDispatch()
	defer method.Release()

	inV, err := oleutil.GetProperty(method, "InParameters")
	if err != nil {
		return nil, err
	}

	var in *ole.IDispatch
	if d := inV.ToIDispatch(); d != nil {
		defer d.Release()
		spawnV, err := oleutil.CallMethod(d, "SpawnInstance_")
		if err != nil {
			return nil, err
		}
		in = spawnV.ToIDispatch()
		defer in.Release()

		for _, a := range c.Args {
			if _, err := oleutil.PutProperty(in, a.Name, a.Value); err != nil {
				return nil, pkgerrors.Wrapf(err, "failed to set parameter %s", a.Name)
			}
		}
	}

	var outV *ole.VARIANT
	if in != nil {
		outV, err = oleutil.CallMethod(service, "ExecMethod", rel, c.Method, in)
	} else {
		outV, err = oleutil.CallMethod(service, "ExecMethod", rel, c.Method)
	}
	if err != nil {
		return nil, err
	}
	return outV.ToIDispatch(), nil
}

// eachInstance calls fn for every instance of class until fn returns true
// or an error.
func eachInstance(service *ole.IDispatch, class string, fn func(item *ole.IDispatch) (bool, error)) error {
	setV, err := oleutil.CallMethod(service, "InstancesOf", class)
	if err != nil {
		return err
	}
	set := setV.ToIDispatch()
	defer set.Release()

	stop := errors.New("stop")
	var fnErr error
	err = oleutil.ForEach(set, func(v *ole.VARIANT) error {
		item := v.ToIDispatch()
		done, err := fn(item)
		if err != nil {
			fnErr = err
			return stop
		}
		if done {
			return stop
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil && !errors.Is(err, stop) {
		return err
	}
	return nil
}

func stringProperty(item *ole.IDispatch, name string) (string, bool) {
	v, err := oleutil.GetProperty(item, name)
	if err != nil {
		return "", false
	}
	defer v.Clear()
	s, ok := v.Value().(string)
	return s, ok
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(substr))
}

func toUint32(v any) (uint32, error) {
	switch n := v.(type) {
	case uint32:
		return n, nil
	case int32:
		return uint32(n), nil
	case int64:
		return uint32(n), nil
	case uint64:
		return uint32(n), nil
	case int16:
		return uint32(n), nil
	case uint16:
		return uint32(n), nil
	case uint8:
		return uint32(n), nil
	case int8:
		return uint32(n), nil
	case int:
		return uint32(n), nil
	case nil:
		return 1, nil
	default:
		return 0, pkgerrors.Errorf("unexpected result type %T", v)
	}
}
