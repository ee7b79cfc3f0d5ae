// endpoints.go manages saved AI endpoints.
//
// Endpoints are stored in ~/.aibridge/endpoints.json so users can switch
// between AI services without retyping URLs.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Endpoint is a named, saveable AI endpoint.
type Endpoint struct {
	Name   string `json:"name"`
	APIURL string `json:"api_url"`
}

// EndpointStore manages saved endpoints on disk.
type EndpointStore struct {
	path      string
	Endpoints []Endpoint `json:"endpoints"`
}

// NewEndpointStore loads ~/.aibridge/endpoints.json.
func NewEndpointStore() (*EndpointStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolve home directory")
	}
	return OpenEndpointStore(filepath.Join(homeDir, ".aibridge", "endpoints.json"))
}

// OpenEndpointStore loads the store at path; a missing file is empty.
func OpenEndpointStore(path string) (*EndpointStore, error) {
	store := &EndpointStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	if err := json.Unmarshal(data, store); err != nil {
		return nil, errors.Wrap(err, "parse endpoints")
	}

	return store, nil
}

// Path is the file backing the store.
func (s *EndpointStore) Path() string { return s.path }

// Save writes all endpoints to disk.
func (s *EndpointStore) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Add adds or updates an endpoint by name.
func (s *EndpointStore) Add(ep Endpoint) {
	for i, e := range s.Endpoints {
		if e.Name == ep.Name {
			s.Endpoints[i] = ep
			return
		}
	}
	s.Endpoints = append(s.Endpoints, ep)
}

// Delete removes an endpoint by name.
func (s *EndpointStore) Delete(name string) {
	for i, e := range s.Endpoints {
		if e.Name == name {
			s.Endpoints = append(s.Endpoints[:i], s.Endpoints[i+1:]...)
			return
		}
	}
}

// Get retrieves an endpoint by name.
func (s *EndpointStore) Get(name string) (Endpoint, bool) {
	for _, e := range s.Endpoints {
		if e.Name == name {
			return e, true
		}
	}
	return Endpoint{}, false
}
