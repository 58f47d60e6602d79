package types

import (
	"sort"
	"sync"
)

// Service is an action service: a named set of methods.
type Service interface {
	Name() string
	Methods() Signatures
	Method(name string) (Executable, error)
}

// Registry keeps action services by name.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

// Register adds or replaces a service.
func (r *Registry) Register(service Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.services == nil {
		r.services = map[string]Service{}
	}
	r.services[service.Name()] = service
}

// Lookup returns the named service.
func (r *Registry) Lookup(name string) (Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if service, ok := r.services[name]; ok {
		return service, nil
	}
	return nil, NewServiceNotFoundError(name)
}

// Names returns registered service names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]string, 0, len(r.services))
	for name := range r.services {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Method resolves a service method into an executable and its signature.
func (r *Registry) Method(serviceName, methodName string) (Executable, *Signature, error) {
	service, err := r.Lookup(serviceName)
	if err != nil {
		return nil, nil, err
	}
	signature := service.Methods().Lookup(methodName)
	if signature == nil {
		return nil, nil, NewMethodNotFoundError(methodName)
	}
	executable, err := service.Method(methodName)
	if err != nil {
		return nil, nil, err
	}
	return executable, signature, nil
}
