package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Domain field helpers for trajectory I/O
func Component(name string) Field {
	return String("component", name)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Path(p string) Field {
	return String("path", p)
}

func BlockKind(id int64) Field {
	return Int64("block_kind", id)
}

func BlockName(name string) Field {
	return String("block_name", name)
}

func FirstFrame(n int64) Field {
	return Int64("first_frame", n)
}

func Frames(n int64) Field {
	return Int64("frames", n)
}

func Particles(n int64) Field {
	return Int64("particles", n)
}

func FilePos(pos int64) Field {
	return Int64("file_pos", pos)
}

func Codec(name string) Field {
	return String("codec", name)
}

func Bytes(n int64) Field {
	return Int64("bytes", n)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}
