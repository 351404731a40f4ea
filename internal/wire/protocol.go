package wire

// Object id of the wl_display singleton.
const DisplayID = 1

// Client-allocated ids live in [FirstClientID, MaxClientID]; the server
// range starts right above.
const (
	FirstClientID = 2
	MaxClientID   = 0xfeffffff
)

// wl_display requests
const (
	OpDisplaySync        = 0
	OpDisplayGetRegistry = 1
)

// wl_display events
const (
	EvDisplayError    = 0
	EvDisplayDeleteID = 1
)

// wl_display error codes
const (
	DisplayErrorInvalidObject  = 0
	DisplayErrorInvalidMethod  = 1
	DisplayErrorNoMemory       = 2
	DisplayErrorImplementation = 3
)

// wl_registry
const (
	OpRegistryBind         = 0
	EvRegistryGlobal       = 0
	EvRegistryGlobalRemove = 1
)

// wl_callback
const (
	EvCallbackDone = 0
)

const (
	InterfaceDisplay  = "wl_display"
	InterfaceRegistry = "wl_registry"
	InterfaceCallback = "wl_callback"
)
