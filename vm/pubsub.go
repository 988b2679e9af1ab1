package vm

import (
	"sync"

	"ergo.services/dvm/gen"
)

// pubsub keeps the subscribers of every message type.
type pubsub struct {
	sync.RWMutex
	subscriptions map[gen.Type]map[gen.DProcessID]struct{}
}

func (ps *pubsub) init() {
	ps.subscriptions = make(map[gen.Type]map[gen.DProcessID]struct{})
}

func (ps *pubsub) subscribe(ty gen.Type, id gen.DProcessID) error {
	ps.Lock()
	defer ps.Unlock()
	subscribers := ps.subscriptions[ty]
	if subscribers == nil {
		subscribers = make(map[gen.DProcessID]struct{})
		ps.subscriptions[ty] = subscribers
	}
	if _, exist := subscribers[id]; exist {
		return gen.ErrTargetExist
	}
	subscribers[id] = struct{}{}
	return nil
}

func (ps *pubsub) unsubscribe(ty gen.Type, id gen.DProcessID) error {
	ps.Lock()
	defer ps.Unlock()
	subscribers := ps.subscriptions[ty]
	if _, exist := subscribers[id]; exist == false {
		return gen.ErrTargetUnknown
	}
	delete(subscribers, id)
	if len(subscribers) == 0 {
		delete(ps.subscriptions, ty)
	}
	return nil
}

func (ps *pubsub) subscribers(ty gen.Type) []gen.DProcessID {
	ps.RLock()
	defer ps.RUnlock()
	return idSet(ps.subscriptions[ty])
}

// forget drops every subscription of the d-process id.
func (ps *pubsub) forget(id gen.DProcessID) {
	ps.Lock()
	defer ps.Unlock()
	for ty, subscribers := range ps.subscriptions {
		delete(subscribers, id)
		if len(subscribers) == 0 {
			delete(ps.subscriptions, ty)
		}
	}
}
