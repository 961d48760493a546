package log

import "log/slog"

func RunID[T ~string](id T) slog.Attr {
	return slog.String("run_id", string(id))
}

func Task(name string) slog.Attr {
	return slog.String("task", name)
}

func Action(name string) slog.Attr {
	return slog.String("action", name)
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Language(name string) slog.Attr {
	return slog.String("language", name)
}

func Iteration(idx int) slog.Attr {
	return slog.Int("iteration", idx)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
