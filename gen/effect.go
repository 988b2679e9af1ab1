package gen

import "fmt"

// Effect is an operation an interpreter asks its host to perform: it hands
// over a value of the Input type and expects a value of the Output type back.
// Effects are comparable and key the effect handlers of a d-process.
type Effect struct {
	Input  Type
	Output Type
}

func (e Effect) String() string {
	return fmt.Sprintf("%s -> %s", e.Input, e.Output)
}

// EffectHandler tells a d-process how to route an effect performed by its
// interpreter. Effects without a handler suspend the process until the host
// resumes it.
type EffectHandler interface {
	isEffectHandler()
}

// HandlerReceive waits for a message of the effect's output type. Messages
// already queued in the mailbox are consumed first, oldest first.
type HandlerReceive struct{}

// HandlerDelegate sends the effect input to another d-process as a message of
// the effect's input type and waits for a reply of the effect's output type.
type HandlerDelegate struct {
	To DProcessID
}

// HandlerPublish publishes the effect input to the subscribers of the effect's
// input type and resumes with Unit.
type HandlerPublish struct{}

// HandlerConstant resumes the interpreter with Value right away.
type HandlerConstant struct {
	Value Value
}

// HandlerStorePut stores the effect input in the key-value store of the
// d-process under the effect's input type and resumes with Unit.
type HandlerStorePut struct{}

// HandlerStoreGet resumes with the value stored under the effect's output type,
// or Unit if there is none.
type HandlerStoreGet struct{}

func (HandlerReceive) isEffectHandler()  {}
func (HandlerDelegate) isEffectHandler() {}
func (HandlerPublish) isEffectHandler()  {}
func (HandlerConstant) isEffectHandler() {}
func (HandlerStorePut) isEffectHandler() {}
func (HandlerStoreGet) isEffectHandler() {}

func (HandlerReceive) String() string    { return "receive" }
func (h HandlerDelegate) String() string { return "delegate " + h.To.String() }
func (HandlerPublish) String() string    { return "publish" }
func (h HandlerConstant) String() string { return "constant " + valueString(h.Value) }
func (HandlerStorePut) String() string   { return "store put" }
func (HandlerStoreGet) String() string   { return "store get" }

// EffectHandlers
type EffectHandlers map[Effect]EffectHandler

func (eh EffectHandlers) Copy() EffectHandlers {
	c := make(EffectHandlers, len(eh))
	for k, v := range eh {
		c[k] = v
	}
	return c
}
