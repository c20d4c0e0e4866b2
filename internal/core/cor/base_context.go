// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cor (Chain of Responsibility) provides the building blocks for
// running a request as a sequence of commands. This file defines
// `BaseContext`, the default implementation of the `Context` interface.
//
// The context is a "property bag" scoped to exactly one request. Commands
// read the values they need (the temp file handle, the staged file, the media
// part), do their work and write their results back for the next command.
// It is not safe for concurrent use; a request pipeline is sequential.
package cor

import (
	"context"
)

// BaseContext is the default implementation of the Context interface.
type BaseContext struct {
	data     map[string]interface{} // Arbitrary key-value data shared by commands.
	errors   map[string]error       // Errors keyed by the command name that produced them.
	errOrder []string               // Command names in the order their errors were recorded.
	context  context.Context        // The standard Go context for cancellation and span propagation.
}

// NewBaseContext is the constructor for BaseContext.
//
// Outputs:
//   - Context: A new, empty context object.
func NewBaseContext() Context {
	return &BaseContext{
		data:   make(map[string]interface{}),
		errors: make(map[string]error),
	}
}

// SetContext sets the underlying standard Go context.
func (c *BaseContext) SetContext(context context.Context) {
	c.context = context
}

// GetContext retrieves the underlying standard Go context.
func (c *BaseContext) GetContext() context.Context {
	return c.context
}

// Add stores a key-value pair in the context's data map.
//
// Inputs:
//   - key: The string key to store the data under.
//   - value: The data (of any type) to store.
//
// Outputs:
//   - Context: The context instance, allowing for fluent method chaining.
func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

// AddError adds an error to the context's error map, keyed by the command name.
// A nil error is ignored.
func (c *BaseContext) AddError(key string, err error) {
	if err == nil {
		return
	}
	if _, exists := c.errors[key]; !exists {
		c.errOrder = append(c.errOrder, key)
	}
	c.errors[key] = err
}

// GetErrors returns the map of all errors collected during the run.
func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

// Err returns the first recorded error, or nil when the run is clean.
func (c *BaseContext) Err() error {
	if len(c.errOrder) == 0 {
		return nil
	}
	return c.errors[c.errOrder[0]]
}

// Get retrieves a value from the context's data map by its key.
//
// Outputs:
//   - interface{}: The stored value, or `nil` if the key does not exist.
func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

// Remove deletes a key-value pair from the context's data map.
func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

// HasErrors checks if any errors have been added to the context.
func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}
