package registry

import "context"

// Instance is a live relay process sharing the bus.
type Instance struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type Registry interface {
	Register(ctx context.Context) error
	Deregister(ctx context.Context) error
	Peers(ctx context.Context) ([]Instance, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}
