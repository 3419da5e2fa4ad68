package chargelimit

// Identity reports the system manufacturer.
type Identity interface {
	Manufacturer() (string, error)
}

// Arg is one named input parameter of a management method.
type Arg struct {
	Name  string
	Value any
}

// Call describes one management method invocation.
type Call struct {
	Namespace string
	Class     string
	Method    string

	// WhereProperty and WhereContains select the first instance whose
	// property contains the substring, case-insensitively. Empty selects the
	// first instance.
	WhereProperty string
	WhereContains string

	Args []Arg
	// Result names the output parameter holding the return code.
	Result string
}

// API is the firmware management surface.
type API interface {
	// ClassExists reports whether class resolves in namespace.
	ClassExists(namespace, class string) bool
	// InstanceProperty returns the value of property on the first instance
	// of class whose property contains the substring.
	InstanceProperty(namespace, class, property, contains string) (string, error)
	// Invoke runs the method and returns its result code.
	Invoke(c Call) (uint32, error)
}
