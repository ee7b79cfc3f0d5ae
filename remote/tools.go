package remote

import (
	"context"
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// LocalTools is a ToolCallHandler serving a few tools from the local
// machine. Unknown tools fail, and the failure is reported back to the
// agent as the tool result.
func LocalTools(_ context.Context, call ToolCall) (any, error) {
	switch call.Name {
	case "get_system_info":
		host, _ := os.Hostname()
		return map[string]any{
			"os":       runtime.GOOS,
			"arch":     runtime.GOARCH,
			"hostname": host,
			"cpus":     runtime.NumCPU(),
		}, nil
	case "echo":
		return call.Arguments, nil
	default:
		return nil, errors.Errorf("tool %s is not available", call.Name)
	}
}
