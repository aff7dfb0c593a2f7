package planner

import "fmt"

// Level categorizes a user-visible message.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one user-visible message produced by an operation. Ref carries
// the row or container identifier the message is about, when there is one.
type Notice struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
	Ref   string `json:"ref,omitempty"`
}

func successf(ref, format string, args ...any) Notice {
	return Notice{Level: LevelSuccess, Ref: ref, Text: fmt.Sprintf(format, args...)}
}

func infof(ref, format string, args ...any) Notice {
	return Notice{Level: LevelInfo, Ref: ref, Text: fmt.Sprintf(format, args...)}
}

func warningf(ref, format string, args ...any) Notice {
	return Notice{Level: LevelWarning, Ref: ref, Text: fmt.Sprintf(format, args...)}
}

func errorf(ref, format string, args ...any) Notice {
	return Notice{Level: LevelError, Ref: ref, Text: fmt.Sprintf(format, args...)}
}
