package rpc

// The RPC surface is versioned major-only. Callers may pin a version in
// the request envelope; omitting it selects the current one.
const (
	rpcAPICurrentVersion      = 1
	rpcAPIMinSupportedVersion = 1
	rpcNotificationVersion    = 1
)

const (
	codeVersionTooNew = -32080
	codeVersionTooOld = -32081
)

func validateRPCAPIVersion(v *int) *rpcError {
	switch {
	case v == nil:
		return nil
	case *v < rpcAPIMinSupportedVersion:
		return &rpcError{Code: codeVersionTooOld, Message: "rpc api version is no longer supported"}
	case *v > rpcAPICurrentVersion:
		return &rpcError{Code: codeVersionTooNew, Message: "rpc api version is newer than this server supports"}
	default:
		return nil
	}
}

func rpcVersionInfo() map[string]any {
	return map[string]any{
		"current_version":       rpcAPICurrentVersion,
		"min_supported_version": rpcAPIMinSupportedVersion,
		"notification_version":  rpcNotificationVersion,
	}
}
