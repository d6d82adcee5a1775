package notify

import "github.com/dkeye/songroom/internal/domain"

type BackpressureAction int

const (
	// DropEvent skips the event for that subscriber only. Reconciliation repairs it.
	DropEvent BackpressureAction = iota
	// Disconnect closes the subscription; the client resubscribes and gets a snapshot.
	Disconnect
)

type Policy interface {
	OnBackPressure(room domain.RoomID, sub *Subscription) BackpressureAction
}

// SimplePolicy disconnects on the first full buffer.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, *Subscription) BackpressureAction {
	return Disconnect
}

// TolerantPolicy drops events until a subscriber has missed more than MaxDrops.
type TolerantPolicy struct {
	MaxDrops int64
}

func (p TolerantPolicy) OnBackPressure(_ domain.RoomID, sub *Subscription) BackpressureAction {
	if sub.Dropped() > p.MaxDrops {
		return Disconnect
	}
	return DropEvent
}

// PolicyFor maps the backpressure config value to a policy.
func PolicyFor(name string) Policy {
	if name == "drop" {
		return TolerantPolicy{MaxDrops: 64}
	}
	return SimplePolicy{}
}
