package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"scalpguard/ml"
)

type argKind int

const (
	argNumber argKind = iota
	argPath
	argLimit
)

// argSpec describes one positional argument. A variadic spec must be last
// and matches one or more values.
type argSpec struct {
	name     string
	kind     argKind
	optional bool
	variadic bool
}

// invocation holds positional arguments after type checking.
type invocation struct {
	values []float64
	path   string
	limit  int
}

type handler func(ctx context.Context, s *session, in invocation) error

type command struct {
	name    string
	summary string
	args    []argSpec
	run     handler
}

var commands = []command{
	{
		name:    "train",
		summary: "fit the model on the configured dataset and save it",
		run:     runTrain,
	},
	{
		name:    "predict",
		summary: "score one feature tuple, one value per configured feature",
		args:    []argSpec{{name: "feature", kind: argNumber, variadic: true}},
		run:     runPredict,
	},
	{
		name:    "scan",
		summary: "score every user in a CSV file",
		args:    []argSpec{{name: "users.csv", kind: argPath}},
		run:     runScan,
	},
	{
		name:    "history",
		summary: "list training runs, newest first",
		args:    []argSpec{{name: "limit", kind: argLimit, optional: true}},
		run:     runHistory,
	},
	{
		name:    "suspects",
		summary: "list users flagged by their latest scan",
		args:    []argSpec{{name: "limit", kind: argLimit, optional: true}},
		run:     runSuspects,
	},
}

func lookup(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func (c command) synopsis() string {
	parts := []string{c.name}
	for _, arg := range c.args {
		switch {
		case arg.variadic:
			parts = append(parts, "<"+arg.name+">...")
		case arg.optional:
			parts = append(parts, "["+arg.name+"]")
		default:
			parts = append(parts, "<"+arg.name+">")
		}
	}
	return strings.Join(parts, " ")
}

// parse checks count and type of the positional arguments without touching
// configuration or files.
func (c command) parse(raw []string) (invocation, error) {
	var in invocation
	pos := 0
	for _, spec := range c.args {
		if pos >= len(raw) {
			if spec.optional {
				break
			}
			return invocation{}, fmt.Errorf("missing <%s>", spec.name)
		}
		take := raw[pos : pos+1]
		if spec.variadic {
			take = raw[pos:]
		}
		for _, value := range take {
			if err := in.assign(spec, value); err != nil {
				return invocation{}, err
			}
		}
		pos += len(take)
	}
	if pos < len(raw) {
		return invocation{}, fmt.Errorf("unexpected argument %q", raw[pos])
	}
	return in, nil
}

func (in *invocation) assign(spec argSpec, raw string) error {
	switch spec.kind {
	case argNumber:
		value, err := ml.ParseFeature(raw)
		if err != nil {
			return fmt.Errorf("<%s>: %w", spec.name, err)
		}
		in.values = append(in.values, value)
	case argPath:
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("<%s> must not be empty", spec.name)
		}
		in.path = raw
	case argLimit:
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return fmt.Errorf("<%s> must be a non-negative integer, got %q", spec.name, raw)
		}
		in.limit = limit
	}
	return nil
}
