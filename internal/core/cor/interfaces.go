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

// Package cor (Chain of Responsibility) provides the building blocks used to
// run a swing analysis request as a sequence of commands. This file defines
// the interfaces that every command, chain and context implements, so the
// request pipeline can be assembled from small, independently testable steps.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Context defines the shared state object that is passed through a chain of
// commands for a single request. It carries data and errors between commands.
type Context interface {
	// SetContext sets the standard Go `context.Context` used for cancellation,
	// deadlines and OpenTelemetry span propagation.
	SetContext(context context.Context)

	// GetContext retrieves the standard Go `context.Context`.
	GetContext() context.Context

	// Add stores a key-value pair in the context and returns the Context to
	// allow fluent chaining.
	Add(key string, value interface{}) Context

	// AddError records an error that occurred within a command. The key should
	// be the name of the command that produced the error.
	AddError(key string, err error)

	// GetErrors returns all errors collected during the run, keyed by command.
	GetErrors() map[string]error

	// Err returns the first error recorded by a command, or nil.
	Err() error

	// Get retrieves a value from the context by its key.
	Get(key string) interface{}

	// Remove deletes a key-value pair from the context.
	Remove(key string)

	// HasErrors checks if any errors have been recorded in the context.
	HasErrors() bool
}

// Executable is a simple interface for any object that has a core execution logic.
type Executable interface {
	// Execute contains the primary business logic of the object. It takes a
	// Context object to read its inputs from and write its outputs to.
	Execute(context Context)
}

// Command represents an atomic, testable unit of work. It is the fundamental
// building block of a workflow.
type Command interface {
	Executable

	// GetName returns the unique name of the command, used for logging and telemetry.
	GetName() string

	// GetInputParam returns the key used to look up the command's primary
	// input, or "" when the command reads only named parameters.
	GetInputParam() string

	// GetOutputParam returns the key used to store the command's primary
	// output, or "" when the command produces none.
	GetOutputParam() string

	// IsExecutable checks if the command can be run with the current state of
	// the Context. A chain skips commands that are not executable.
	IsExecutable(context Context) bool

	// GetTracer returns the OpenTelemetry tracer for this command.
	GetTracer() trace.Tracer

	// GetMeter returns the OpenTelemetry meter for creating metrics.
	GetMeter() metric.Meter

	// GetSuccessCounter returns a metric counter for successful executions.
	GetSuccessCounter() metric.Int64Counter

	// GetErrorCounter returns a metric counter for failed executions.
	GetErrorCounter() metric.Int64Counter
}

// Chain represents a sequence of commands. It is itself a Command, which allows
// chains to be nested within other chains.
type Chain interface {
	Command

	// AddCommand adds a new command to the end of the execution sequence.
	AddCommand(command Command) Chain
}
