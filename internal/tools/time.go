package tools

import (
	"context"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// GetTimeTool reports the local time. A nil clock means time.Now.
func GetTimeTool(clock func() time.Time) Tool {
	if clock == nil {
		clock = time.Now
	}
	return Tool{
		Name:        "get_time",
		Description: "Get the current local date and time of the system.",
		InputSchema: SchemaFor[NoParams](),
		Executor: Typed(func(_ context.Context, _ NoParams) (string, error) {
			return clock().Format(timeLayout), nil
		}),
	}
}
