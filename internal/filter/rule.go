// Package filter implements the label-filter rule language: compiling
// declarative rule specifications into anchored regex programs, and
// evaluating those programs against samples.
package filter

import (
	"fmt"
	"regexp"
	"time"
)

// ActionKind tags the closed set of actions a rule can apply.
type ActionKind int

const (
	Keep ActionKind = iota
	Drop
	ReduceTimeResolution
)

// Action is a single step of a rule's action list. Resolution is only
// meaningful when Kind == ReduceTimeResolution.
type Action struct {
	Kind       ActionKind
	Resolution time.Duration
}

// ActionSpec is the uncompiled, config-level form of an Action. An action
// in config is either a bare string (`keep`, `drop`) or a one-key map,
// e.g. `keep: true`, `drop: true`, or
// `reduce_time_resolution: {resolution: 30s}`.
type ActionSpec struct {
	Keep                 bool
	Drop                 bool
	ReduceTimeResolution *ReduceTimeResolutionSpec
}

type ReduceTimeResolutionSpec struct {
	Resolution Duration `yaml:"resolution"`
}

func (a *ActionSpec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var bare string
	if err := unmarshal(&bare); err == nil {
		switch bare {
		case "keep":
			a.Keep = true
			return nil
		case "drop":
			a.Drop = true
			return nil
		default:
			return fmt.Errorf("unrecognized bare action %q", bare)
		}
	}

	var raw struct {
		Keep                 *yamlEmpty                `yaml:"keep"`
		Drop                 *yamlEmpty                `yaml:"drop"`
		ReduceTimeResolution *ReduceTimeResolutionSpec `yaml:"reduce_time_resolution"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch {
	case raw.Keep != nil:
		a.Keep = true
	case raw.Drop != nil:
		a.Drop = true
	case raw.ReduceTimeResolution != nil:
		a.ReduceTimeResolution = raw.ReduceTimeResolution
	default:
		return fmt.Errorf("action must set one of keep, drop, reduce_time_resolution")
	}
	return nil
}

// yamlEmpty matches `keep: {}` / `keep: true` without caring which
// non-null spelling the config used. A null body such as `keep:` leaves
// the field nil, so that spelling is rejected as an unset action.
type yamlEmpty struct{}

func (*yamlEmpty) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var discard interface{}
	return unmarshal(&discard)
}

// RuleSpec is the uncompiled, config-level form of a FilterRule.
type RuleSpec struct {
	Regex        string       `yaml:"regex"`
	SourceLabels []string     `yaml:"source_labels"`
	Separator    string       `yaml:"separator"`
	Actions      []ActionSpec `yaml:"actions"`
}

// Rule is a compiled FilterRule: an anchored regex plus the resolved
// source-label list, separator, and action sequence.
type Rule struct {
	Regex        *regexp.Regexp
	SourceLabels []string
	Separator    string
	Actions      []Action
}

// Program is the ordered, compiled rule sequence belonging to one proxy.
type Program struct {
	Rules []Rule
}

const defaultSourceLabel = "__name__"
const defaultSeparator = ";"

// Compile validates and pre-compiles a rule list. Failure names the
// offending rule index (1-based, matching operator-facing config errors).
func Compile(specs []RuleSpec) (*Program, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("filter: label_filters must not be empty")
	}
	rules := make([]Rule, len(specs))
	for i, spec := range specs {
		rule, err := compileOne(spec)
		if err != nil {
			return nil, fmt.Errorf("filter: rule %d: %w", i+1, err)
		}
		rules[i] = rule
	}
	return &Program{Rules: rules}, nil
}

func compileOne(spec RuleSpec) (Rule, error) {
	anchored := "^" + spec.Regex + "$"
	re, err := regexp.Compile(anchored)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid regex %q: %w", spec.Regex, err)
	}

	sourceLabels := spec.SourceLabels
	if len(sourceLabels) == 0 {
		sourceLabels = []string{defaultSourceLabel}
	}

	separator := spec.Separator
	if separator == "" {
		separator = defaultSeparator
	}

	if len(spec.Actions) == 0 {
		return Rule{}, fmt.Errorf("actions must not be empty")
	}
	actions := make([]Action, len(spec.Actions))
	for i, a := range spec.Actions {
		action, err := compileAction(a)
		if err != nil {
			return Rule{}, fmt.Errorf("action %d: %w", i+1, err)
		}
		actions[i] = action
	}

	return Rule{
		Regex:        re,
		SourceLabels: sourceLabels,
		Separator:    separator,
		Actions:      actions,
	}, nil
}

func compileAction(spec ActionSpec) (Action, error) {
	switch {
	case spec.Keep:
		return Action{Kind: Keep}, nil
	case spec.Drop:
		return Action{Kind: Drop}, nil
	case spec.ReduceTimeResolution != nil:
		d := time.Duration(spec.ReduceTimeResolution.Resolution)
		if d <= 0 {
			return Action{}, fmt.Errorf("reduce_time_resolution.resolution must be positive")
		}
		return Action{Kind: ReduceTimeResolution, Resolution: d}, nil
	default:
		return Action{}, fmt.Errorf("unrecognized action")
	}
}
