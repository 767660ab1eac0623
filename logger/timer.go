package logger

import "time"

// Timer measures a named block and debug-logs its duration when stopped.
type Timer struct {
	log   Logger
	name  string
	start time.Time
}

// StartTimer begins timing the block called name.
func StartTimer(log Logger, name string) *Timer {
	return &Timer{log: log, name: name, start: time.Now()}
}

// Stop logs the elapsed time in milliseconds and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.log != nil {
		t.log.Debug().
			Str("block", t.name).
			Int64("elapsed_ms", elapsed.Milliseconds()).
			Msgf("%s took %d ms", t.name, elapsed.Milliseconds())
	}
	return elapsed
}
