package hreq

// Backend identifies which transport serves a request.
type Backend string

const (
	BackendNative   Backend = "native"
	BackendFallback Backend = "fallback"
)

// SelectBackend picks the native backend only when the caller prefers it and
// it is available in this runtime.
func SelectBackend(preferNative, nativeAvailable bool) Backend {
	if preferNative && nativeAvailable {
		return BackendNative
	}
	return BackendFallback
}
