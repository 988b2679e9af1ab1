package main

import (
	"fmt"

	"ergo.services/dvm/config"
	"ergo.services/dvm/gen"
	"ergo.services/dvm/interp/script"
	"ergo.services/dvm/vm"
)

// deploy spawns the configured processes and registers them under their
// names. Delegate handlers, subscriptions, links and monitors refer to other
// processes by name, so they are set up once everything is spawned.
func deploy(v *vm.VM, c *config.Config) (map[gen.DProcessID]string, error) {
	h := v.Handle()
	deployed := make(map[gen.DProcessID]string, len(c.Processes))

	for _, p := range c.Processes {
		builder, err := script.Load(c.Path(p.Script), script.Options{
			MaxSteps: p.MaxSteps,
			Log:      v.Log(),
		})
		if err != nil {
			return nil, fmt.Errorf("process %q: %w", p.Name, err)
		}
		handlers, err := p.EffectHandlers(nil)
		if err != nil {
			return nil, err
		}
		flags, err := p.DProcessFlags()
		if err != nil {
			return nil, err
		}

		id, err := v.Spawn(gen.DProcessManifest{
			Builder:        builder,
			EffectHandlers: handlers,
			Flags:          flags,
			Metadata: gen.DProcessMetadata{
				Labels: map[string]string{"name": p.Name, "script": p.Script},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("process %q: %w", p.Name, err)
		}
		if err := h.Register(p.Name, id); err != nil {
			return nil, fmt.Errorf("process %q: %w", p.Name, err)
		}
		deployed[id] = p.Name
	}

	for _, p := range c.Processes {
		id, _ := h.Whereis(p.Name)

		handlers, err := p.EffectHandlers(h.Whereis)
		if err != nil {
			return nil, err
		}
		for effect, handler := range handlers {
			if _, delegate := handler.(gen.HandlerDelegate); delegate == false {
				continue
			}
			if err := v.SetEffectHandler(id, effect, handler); err != nil {
				return nil, fmt.Errorf("process %q: %w", p.Name, err)
			}
		}

		types, err := p.Subscriptions()
		if err != nil {
			return nil, err
		}
		for _, ty := range types {
			if err := h.Subscribe(ty, id); err != nil {
				return nil, fmt.Errorf("process %q: subscribe %s: %w", p.Name, ty, err)
			}
		}

		for _, peer := range p.Link {
			to, _ := h.Whereis(peer)
			if err := h.Link(id, to); err != nil {
				return nil, fmt.Errorf("process %q: link %q: %w", p.Name, peer, err)
			}
		}
		for _, peer := range p.Monitor {
			target, _ := h.Whereis(peer)
			if err := h.Monitor(id, target); err != nil {
				return nil, fmt.Errorf("process %q: monitor %q: %w", p.Name, peer, err)
			}
		}
	}
	return deployed, nil
}
