package fulfillment

import "fmt"

// Action is the closed set of vendor fulfillment moves. Parsing happens once
// at the API edge; everything past it switches exhaustively over these.
type Action int

const (
	ActionPack Action = iota
	ActionHandToCourier
	ActionMarkDelivered
	ActionReadyForPickup
	ActionBookCourier
	ActionMarkOrderDelivered
)

// actionNames doubles as the wire encoding of each action.
var actionNames = map[Action]string{
	ActionPack:               "pack",
	ActionHandToCourier:      "handToCourier",
	ActionMarkDelivered:      "markDelivered",
	ActionReadyForPickup:     "readyForPickup",
	ActionBookCourier:        "bookCourier",
	ActionMarkOrderDelivered: "markOrderDelivered",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ItemScoped reports whether the action targets a single item rather than
// the whole order.
func (a Action) ItemScoped() bool {
	switch a {
	case ActionPack, ActionHandToCourier, ActionMarkDelivered:
		return true
	default:
		return false
	}
}

// ParseAction maps the wire discriminator onto an Action.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown fulfillment action %q", s)
}
