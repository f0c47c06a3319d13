package agent

import (
	"fmt"
	"os"
	"sort"
)

// BuildArgs turns a task configuration into the agent's CLI argument list
// using the config's ArgSpec definitions.
//
// Positional arguments come first, ordered by position. Every argument
// resolves its value as: task value, then env_var, then default. Bool specs
// emit the bare flag when truthy. Variadic specs repeat the flag for each
// element. A flag-less non-positional spec appends its value as a trailing
// positional argument.
func BuildArgs(cfg Config, task Task) ([]string, error) {
	var positional, flagged []ArgSpec
	for _, spec := range cfg.Args {
		if spec.Positional {
			positional = append(positional, spec)
		} else {
			flagged = append(flagged, spec)
		}
	}
	sort.SliceStable(positional, func(i, j int) bool {
		return positional[i].Position < positional[j].Position
	})

	var args []string
	for _, spec := range positional {
		v, ok := resolveValue(spec, task)
		if !ok {
			if spec.Required {
				return nil, &ConfigError{Agent: cfg.AgentKey, Arg: spec.Name, Msg: "required argument missing"}
			}
			continue
		}
		s := fmt.Sprint(v)
		if err := checkChoices(cfg, spec, s); err != nil {
			return nil, err
		}
		args = append(args, s)
	}

	for _, spec := range flagged {
		v, ok := resolveValue(spec, task)
		if !ok {
			if spec.Required {
				return nil, &ConfigError{Agent: cfg.AgentKey, Arg: spec.Name, Msg: "required argument missing"}
			}
			continue
		}

		if spec.Type == "bool" {
			if truthy(v) {
				args = append(args, spec.Flag)
			}
			continue
		}

		values := listValues(v)
		for _, item := range values {
			if err := checkChoices(cfg, spec, item); err != nil {
				return nil, err
			}
		}

		switch {
		case spec.Variadic && len(values) > 0:
			for _, item := range values {
				if spec.Flag != "" {
					args = append(args, spec.Flag, item)
				} else {
					args = append(args, item)
				}
			}
		case spec.Flag != "":
			args = append(args, spec.Flag, fmt.Sprint(v))
		default:
			// No flag: trailing positional.
			args = append(args, fmt.Sprint(v))
		}
	}

	return args, nil
}

// CommandLine returns the full argv for the task, binary first.
func CommandLine(cfg Config, task Task) ([]string, error) {
	args, err := BuildArgs(cfg, task)
	if err != nil {
		return nil, err
	}
	return append([]string{cfg.Command}, args...), nil
}

// resolveValue applies the task → env_var → default resolution order.
func resolveValue(spec ArgSpec, task Task) (any, bool) {
	if v, ok := task[spec.Name]; ok && v != nil {
		return v, true
	}
	if spec.EnvVar != "" {
		if v, ok := os.LookupEnv(spec.EnvVar); ok && v != "" {
			return v, true
		}
	}
	if spec.Default != "" {
		return spec.Default, true
	}
	return nil, false
}

func checkChoices(cfg Config, spec ArgSpec, value string) error {
	if len(spec.Choices) == 0 {
		return nil
	}
	for _, c := range spec.Choices {
		if c == value {
			return nil
		}
	}
	return &ConfigError{
		Agent: cfg.AgentKey,
		Arg:   spec.Name,
		Msg:   fmt.Sprintf("invalid value %q, must be one of %v", value, spec.Choices),
	}
}

// truthy interprets bool task values that may arrive as JSON bools or as
// string defaults from the config ("true", "1").
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1" || t == "yes"
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

// listValues normalizes a value to a string slice for variadic handling.
func listValues(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}
