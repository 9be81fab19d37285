package domain

import "fmt"

type SourceEnum int

const (
	Deversifi SourceEnum = iota
	Luno
	LunoStream
)

func (e SourceEnum) String() string {
	return []string{"Deversifi", "Luno", "LunoStream"}[e]
}

// ParseSource accepts the names used in config.json and MARKET_SOURCE.
func ParseSource(name string) (SourceEnum, error) {
	switch name {
	case "deversifi", "Deversifi", "":
		return Deversifi, nil
	case "luno", "Luno":
		return Luno, nil
	case "luno-stream", "LunoStream":
		return LunoStream, nil
	}
	return 0, fmt.Errorf("unknown market source %q", name)
}
