package vm

import (
	"fmt"
	"runtime/debug"
	"time"

	"ergo.services/dvm/gen"
)

// Reduce runs the interpreter for at most budget if the d-process is Running
// and maps the interpreter output onto the status. It never fails: an error
// returned by the interpreter, or a panic inside it, crashes the d-process.
// Returns the time spent.
func (p *DProcess) Reduce(h Handle, budget time.Duration) time.Duration {
	p.interpreterMutex.Lock()
	if gen.IsRunning(p.Status()) == false {
		p.interpreterMutex.Unlock()
		return 0
	}

	start := time.Now()
	output, err := p.reduceInterpreter(budget)
	spent := time.Since(start)

	p.metadataMutex.Lock()
	p.metadata.Reductions++
	p.metadata.ReductionTime += spent
	p.metadata.LastReduction = start
	p.metadataMutex.Unlock()

	var handler gen.EffectHandler
	performed, isPerformed := output.(gen.OutputPerformed)
	if err == nil && isPerformed {
		p.effectHandlersMutex.RLock()
		handler = p.effectHandlers[performed.Effect]
		p.effectHandlersMutex.RUnlock()
	}

	g := p.lockStatus()
	if gen.IsRunning(g.current()) == false {
		// halted while reducing, the output is discarded
		g.unlock()
		p.interpreterMutex.Unlock()
		return spent
	}

	var next gen.DProcessStatus
	var after func()

	switch output := output.(type) {
	case nil:
		if err == nil {
			err = fmt.Errorf("%w: interpreter returned no output", gen.ErrIncorrect)
		}
		next = gen.StatusCrashed{Error: err}

	case gen.OutputReturned:
		next = gen.StatusReturned{Value: output.Value}
		if err != nil {
			next = gen.StatusCrashed{Error: err}
		}

	case gen.OutputPerformed:
		if err != nil {
			next = gen.StatusCrashed{Error: err}
			break
		}
		next, after = p.routeEffect(h, handler, output)

	case gen.OutputRunning:
		if err != nil {
			next = gen.StatusCrashed{Error: err}
		}
	}

	// the status lock is kept, so nobody can deliver a message in between
	p.interpreterMutex.Unlock()
	if next == nil {
		g.unlock()
	} else {
		p.updateStatus(h, g, next)
	}

	if after != nil {
		after()
	}
	return spent
}

func (p *DProcess) reduceInterpreter(budget time.Duration) (output gen.InterpreterOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("interpreter panic: %v", r)
			p.log.Debug("%s", debug.Stack())
			output = nil
			err = fmt.Errorf("%w: %v", gen.ErrPanic, r)
		}
	}()
	return p.interpreter.Reduce(budget)
}

// routeEffect handles an effect performed by the interpreter. It is called
// with the interpreter and status locks held and returns the status to commit
// (nil keeps Running) and the work to do once all the locks are released.
func (p *DProcess) routeEffect(h Handle, handler gen.EffectHandler, performed gen.OutputPerformed) (gen.DProcessStatus, func()) {
	effect := performed.Effect
	input := performed.Input
	if input == nil {
		input = gen.Unit
	}

	switch handler := handler.(type) {
	case nil:
		after := func() {
			h.vm.output(gen.VMOutputEffectPerformed{
				DProcessID: p.id,
				Effect:     effect,
				Input:      input,
			})
		}
		return gen.StatusSuspendedWithEffect{Effect: effect}, after

	case gen.HandlerConstant:
		value := handler.Value
		if value == nil {
			value = gen.Unit
		}
		p.interpreter.EffectOutput(value)
		return nil, nil

	case gen.HandlerStorePut:
		p.kvMutex.Lock()
		p.kv[effect.Input] = input
		p.kvMutex.Unlock()
		p.interpreter.EffectOutput(gen.Unit)
		return nil, nil

	case gen.HandlerStoreGet:
		p.kvMutex.RLock()
		value, found := p.kv[effect.Output]
		p.kvMutex.RUnlock()
		if found == false {
			value = gen.Unit
		}
		p.interpreter.EffectOutput(value)
		return nil, nil

	case gen.HandlerReceive:
		if value, found := p.popMessage(effect.Output); found {
			p.interpreter.EffectOutput(value)
			return nil, nil
		}
		return gen.StatusWaitingForMessage{Type: effect.Output}, nil

	case gen.HandlerPublish:
		p.interpreter.EffectOutput(gen.Unit)
		after := func() {
			h.Publish(effect.Input, input)
		}
		return nil, after

	case gen.HandlerDelegate:
		to := handler.To
		after := func() {
			if err := h.Send(to, effect.Input, input); err != nil {
				p.log.Warning("unable to delegate %s to %s: %s", effect, to, err)
				p.crashDelegated(h, to, fmt.Errorf("delegate %s to %s: %w", effect, to, err))
			}
		}
		return gen.StatusDelegated{Effect: effect, To: to}, after
	}

	err := fmt.Errorf("%w: effect handler %T", gen.ErrUnsupported, handler)
	return gen.StatusCrashed{Error: err}, nil
}

// popMessage takes the oldest message of type ty. Status must be held.
func (p *DProcess) popMessage(ty gen.Type) (gen.Value, bool) {
	p.mailboxMutex.Lock()
	defer p.mailboxMutex.Unlock()
	queue := p.mailbox[ty]
	if len(queue) == 0 {
		return nil, false
	}
	value := queue[0]
	queue[0] = nil
	if len(queue) == 1 {
		delete(p.mailbox, ty)
	} else {
		p.mailbox[ty] = queue[1:]
	}
	return value, true
}

// ReceiveMessage delivers a message of type ty. If the d-process is waiting
// for a message of this type the value goes straight to the interpreter and
// the status becomes Running. Otherwise it is queued after the messages of the
// same type received earlier. Messages to a terminated d-process are dropped.
func (p *DProcess) ReceiveMessage(h Handle, ty gen.Type, value gen.Value) error {
	if value == nil {
		value = gen.Unit
	}

	p.interpreterMutex.Lock()
	g := p.lockStatus()
	status := g.current()
	if status.IsTerminal() {
		g.unlock()
		p.interpreterMutex.Unlock()
		return gen.ErrDProcessTerminated
	}

	if awaited, ok := gen.AwaitedType(status); ok && awaited == ty {
		p.interpreter.EffectOutput(value)
		p.interpreterMutex.Unlock()
		p.updateStatus(h, g, gen.StatusRunning{})
		return nil
	}

	p.mailboxMutex.Lock()
	p.mailbox[ty] = append(p.mailbox[ty], value)
	p.mailboxMutex.Unlock()

	g.unlock()
	p.interpreterMutex.Unlock()
	return nil
}
