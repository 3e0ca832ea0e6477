package codes

import "strings"

// ErrorCodes maps decompiler process (JVM) exit codes to their descriptions
var ErrorCodes = map[int]string{
	0:   "Success",
	1:   "Decompiler error",
	2:   "Invalid command line",
	3:   "Out of memory (ExitOnOutOfMemoryError)",
	126: "Java launcher is not executable",
	127: "Java launcher not found",
	134: "JVM aborted",
	137: "Killed (possibly by the out-of-memory killer)",
	143: "Terminated",
}

// ExitOutOfMemory is the exit code the JVM uses with -XX:+ExitOnOutOfMemoryError
const ExitOutOfMemory = 3

// oomSignatures are stderr fragments the JVM prints when the heap is exhausted
var oomSignatures = []string{
	"java.lang.OutOfMemoryError",
	"Java heap space",
	"GC overhead limit exceeded",
	"Cannot reserve enough space for object heap",
	"Could not reserve enough space for",
}

// IsSuccess returns true if the exit code indicates successful decompilation
func IsSuccess(code int) bool {
	return code == 0
}

// IsOutOfMemory returns true if the exit code or stderr indicate heap exhaustion
func IsOutOfMemory(code int, stderr string) bool {
	if code == ExitOutOfMemory || code == 137 {
		return true
	}

	for _, sig := range oomSignatures {
		if strings.Contains(stderr, sig) {
			return true
		}
	}

	return false
}

// GetErrorMessage returns the error message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ErrorCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
