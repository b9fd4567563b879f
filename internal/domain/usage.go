package domain

import "time"

// Usage accumulates the work done for one batch item or a whole batch.
type Usage struct {
	PixelsProcessed int64
	BytesWritten    int64
	ComputeTime     time.Duration
}

func (u *Usage) Add(o Usage) {
	u.PixelsProcessed += o.PixelsProcessed
	u.BytesWritten += o.BytesWritten
	u.ComputeTime += o.ComputeTime
}

// ComputeTimeMS is the compute time rounded to whole milliseconds, at
// least 1 when any work was recorded.
func (u Usage) ComputeTimeMS() int64 {
	ms := u.ComputeTime.Milliseconds()
	if ms == 0 && u.ComputeTime > 0 {
		return 1
	}
	return ms
}
