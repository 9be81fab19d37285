package domain

import "fmt"

type SideEnum int

const (
	Bid SideEnum = iota
	Ask
)

func (e SideEnum) String() string {
	return []string{"Bid", "Ask"}[e]
}

func (e SideEnum) Opposite() SideEnum {
	if e == Bid {
		return Ask
	}
	return Bid
}

func (e SideEnum) MarshalText() ([]byte, error) {
	switch e {
	case Bid:
		return []byte("bid"), nil
	case Ask:
		return []byte("ask"), nil
	}
	return nil, fmt.Errorf("unknown side %d", int(e))
}

func (e *SideEnum) UnmarshalText(text []byte) error {
	switch string(text) {
	case "bid", "BID", "Bid":
		*e = Bid
	case "ask", "ASK", "Ask":
		*e = Ask
	default:
		return fmt.Errorf("unknown side %q", string(text))
	}
	return nil
}
