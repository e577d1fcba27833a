package bjpeg

// Logger is the leveled, key-value structured logging interface this
// package calls through for trace/diagnostic output.
// github.com/ausocean/utils/logging.Logger satisfies it structurally; see
// cmd/bjpeg for the wiring. A nil Logger (the default) makes every call a
// no-op. The library never constructs a logger itself.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warning(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
