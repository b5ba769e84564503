package main

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/hashicorp/go-hclog"

	"rng-drbg/internal/drbg"
	"rng-drbg/internal/entropy"
)

var errNotFound = errors.New("not found")

// Instance is a named DRBG owned by the service.
type Instance struct {
	ID        string
	CreatedAt time.Time
	Entropy   string // source tag
	DRBG      *drbg.DRBG
}

type instanceView struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Profile        string    `json:"profile"`
	Strength       int       `json:"strength"`
	Entropy        string    `json:"entropy"`
	Instantiated   bool      `json:"instantiated"`
	ReseedCounter  uint64    `json:"reseed_counter"`
	ReseedInterval uint64    `json:"reseed_interval"`
}

func (in *Instance) view() instanceView {
	p := in.DRBG.Profile()
	return instanceView{
		ID:             in.ID,
		CreatedAt:      in.CreatedAt,
		Profile:        p.String(),
		Strength:       int(p.Strength),
		Entropy:        in.Entropy,
		Instantiated:   in.DRBG.Instantiated(),
		ReseedCounter:  in.DRBG.ReseedCounter(),
		ReseedInterval: p.ReseedInterval,
	}
}

// Registry maps instance ids to DRBGs.
type Registry struct {
	logger log.Logger

	mu        sync.RWMutex
	instances map[string]*Instance
}

func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &Registry{logger: logger, instances: map[string]*Instance{}}
}

// Create builds a DRBG for p drawing from src, instantiates it and
// registers it under a fresh id.
func (r *Registry) Create(p drbg.Params, src entropy.Source) (*Instance, error) {
	id := uuid.NewString()
	logger := r.logger.With("instance", id)

	d, err := drbg.New(p, drbg.WithEntropySource(src), drbg.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := d.Instantiate(nil); err != nil {
		return nil, err
	}

	in := &Instance{ID: id, CreatedAt: time.Now().UTC(), Entropy: src.Tag(), DRBG: d}
	r.mu.Lock()
	r.instances[id] = in
	r.mu.Unlock()
	logger.Info("instance created", "profile", d.Profile().String(), "entropy", in.Entropy)
	return in, nil
}

func (r *Registry) Get(id string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.instances[id]
	if !ok {
		return nil, errNotFound
	}
	return in, nil
}

// List returns the instances, oldest first.
func (r *Registry) List() []*Instance {
	r.mu.RLock()
	list := make([]*Instance, 0, len(r.instances))
	for _, in := range r.instances {
		list = append(list, in)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Remove uninstantiates and forgets the instance.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	in, ok := r.instances[id]
	delete(r.instances, id)
	r.mu.Unlock()
	if !ok {
		return errNotFound
	}
	in.DRBG.Uninstantiate()
	r.logger.Info("instance removed", "instance", id)
	return nil
}
