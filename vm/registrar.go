package vm

import (
	"sync"

	"ergo.services/dvm/gen"
	"ergo.services/dvm/lib"
)

// registrar maps user-chosen names to d-processes. A d-process has at most
// one name.
type registrar struct {
	sync.RWMutex
	names lib.BiMap[string, gen.DProcessID]
}

func (r *registrar) register(name string, id gen.DProcessID) error {
	if name == "" {
		return gen.ErrIncorrect
	}
	r.Lock()
	defer r.Unlock()
	if r.names.Add(name, id) == false {
		return gen.ErrTaken
	}
	return nil
}

func (r *registrar) unregister(name string) (gen.DProcessID, error) {
	r.Lock()
	defer r.Unlock()
	id, found := r.names.Delete(name)
	if found == false {
		return id, gen.ErrNameUnknown
	}
	return id, nil
}

func (r *registrar) whereis(name string) (gen.DProcessID, bool) {
	r.RLock()
	defer r.RUnlock()
	return r.names.Get(name)
}

// name returns the name the d-process id is registered with.
func (r *registrar) name(id gen.DProcessID) (string, bool) {
	r.RLock()
	defer r.RUnlock()
	return r.names.Key(id)
}

// forget drops the name of the d-process id.
func (r *registrar) forget(id gen.DProcessID) {
	r.Lock()
	defer r.Unlock()
	r.names.DeleteValue(id)
}

func (r *registrar) len() int {
	r.RLock()
	defer r.RUnlock()
	return r.names.Len()
}
