// Package di is a minimal type-keyed service registry used at process
// startup to hand the store and coordinator off to whatever wires the
// HTTP server, without every constructor threading both through its
// own argument list.
package di

import (
	"fmt"
	"reflect"
	"sync"
)

// Container holds at most one instance per concrete type, keyed by the
// type a pointer points to. It is not a general DI framework: there is
// no constructor injection and no lifecycle management, just
// register-once/resolve-later for a handful of process-wide
// singletons.
type Container struct {
	services map[reflect.Type]interface{}
	mutex    sync.RWMutex
}

// New creates an empty Container.
func New() *Container {
	return &Container{
		services: make(map[reflect.Type]interface{}),
	}
}

// Register stores service under the type it points to, replacing
// whatever was registered for that type before.
func (c *Container) Register(service interface{}) error {
	if service == nil {
		return fmt.Errorf("service cannot be nil")
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	t := reflect.TypeOf(service)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	c.services[t] = service

	return nil
}

// Resolve looks up the service registered for serviceType's pointee
// type; serviceType is a typed nil pointer such as (*sagastore.MemoryStore)(nil)
// used purely to carry the type.
func (c *Container) Resolve(serviceType interface{}) (interface{}, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	t := reflect.TypeOf(serviceType).Elem()
	service, exists := c.services[t]
	if !exists {
		return nil, fmt.Errorf("service not found: %v", t)
	}

	return service, nil
}

// MustResolve is Resolve for callers that treat a missing registration
// as a startup bug rather than a recoverable error.
func (c *Container) MustResolve(serviceType interface{}) interface{} {
	service, err := c.Resolve(serviceType)
	if err != nil {
		panic(err)
	}
	return service
}

// Has reports whether serviceType's pointee type has a registered
// instance.
func (c *Container) Has(serviceType interface{}) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	t := reflect.TypeOf(serviceType).Elem()
	_, exists := c.services[t]
	return exists
}
