// Package env provides a centralized registry for environment variables used
// throughout aeterna. Variables are self-registering: calling any Register*
// function records the variable's metadata (name, default, description, type,
// component) in a process-wide registry and returns a typed accessor.
//
// This design is inspired by Istio's pkg/env package and enables automatic
// documentation generation via `aeterna config describe`.
package env

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// VarType identifies the data type of an environment variable.
type VarType int

const (
	TypeString VarType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeDuration
)

// String returns the human-readable name of a VarType.
func (v VarType) String() string {
	switch v {
	case TypeString:
		return "String"
	case TypeBool:
		return "Boolean"
	case TypeInt:
		return "Integer"
	case TypeFloat:
		return "Floating-Point"
	case TypeDuration:
		return "Duration"
	default:
		return "Unknown"
	}
}

// MarshalJSON serializes VarType as its string representation.
func (v VarType) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// Component identifies which subsystem consumes the variable.
type Component string

const (
	ComponentMemory     Component = "memory"
	ComponentKnowledge  Component = "knowledge"
	ComponentGovernance Component = "governance"
	ComponentSync       Component = "sync"
	ComponentContext    Component = "context"
	ComponentStorage    Component = "storage"
	ComponentServer     Component = "server"
	ComponentTesting    Component = "testing"
)

// Var holds the metadata for a single registered environment variable.
type Var struct {
	Name         string    `json:"name"`
	DefaultValue string    `json:"default"`
	Description  string    `json:"description"`
	Type         VarType   `json:"type"`
	Component    Component `json:"component"`
	Hidden       bool      `json:"-"`
	Deprecated   bool      `json:"deprecated"`
}

var (
	allVars = make(map[string]Var)
	mu      sync.Mutex
)

func register(v Var) {
	mu.Lock()
	defer mu.Unlock()
	allVars[v.Name] = v
}

// VarDescriptions returns all registered variables sorted by name.
func VarDescriptions() []Var {
	mu.Lock()
	defer mu.Unlock()

	out := make([]Var, 0, len(allVars))
	for _, v := range allVars {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b Var) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// VarByName returns the metadata for a registered variable, or false if not found.
func VarByName(name string) (Var, bool) {
	mu.Lock()
	defer mu.Unlock()
	v, ok := allVars[name]
	return v, ok
}

// ---------- StringVar ----------

type StringVar struct{ v Var }

func RegisterStringVar(name, defaultValue, description string, component Component) StringVar {
	v := Var{Name: name, DefaultValue: defaultValue, Description: description, Type: TypeString, Component: component}
	register(v)
	return StringVar{v: v}
}

func (s StringVar) Get() string {
	if val, ok := os.LookupEnv(s.v.Name); ok {
		return val
	}
	return s.v.DefaultValue
}

func (s StringVar) Lookup() (string, bool) {
	val, ok := os.LookupEnv(s.v.Name)
	if !ok {
		return s.v.DefaultValue, false
	}
	return val, true
}

func (s StringVar) Name() string         { return s.v.Name }
func (s StringVar) DefaultValue() string { return s.v.DefaultValue }

// ---------- BoolVar ----------

type BoolVar struct {
	v            Var
	defaultValue bool
}

func RegisterBoolVar(name string, defaultValue bool, description string, component Component) BoolVar {
	v := Var{Name: name, DefaultValue: strconv.FormatBool(defaultValue), Description: description, Type: TypeBool, Component: component}
	register(v)
	return BoolVar{v: v, defaultValue: defaultValue}
}

func (b BoolVar) Get() bool {
	if val, ok := os.LookupEnv(b.v.Name); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return b.defaultValue
}

func (b BoolVar) Name() string { return b.v.Name }

// ---------- IntVar ----------

type IntVar struct {
	v            Var
	defaultValue int
}

func RegisterIntVar(name string, defaultValue int, description string, component Component) IntVar {
	v := Var{Name: name, DefaultValue: strconv.Itoa(defaultValue), Description: description, Type: TypeInt, Component: component}
	register(v)
	return IntVar{v: v, defaultValue: defaultValue}
}

func (i IntVar) Get() int {
	if val, ok := os.LookupEnv(i.v.Name); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return i.defaultValue
}

func (i IntVar) Name() string { return i.v.Name }

// ---------- FloatVar ----------

type FloatVar struct {
	v            Var
	defaultValue float64
}

func RegisterFloatVar(name string, defaultValue float64, description string, component Component) FloatVar {
	v := Var{Name: name, DefaultValue: strconv.FormatFloat(defaultValue, 'f', -1, 64), Description: description, Type: TypeFloat, Component: component}
	register(v)
	return FloatVar{v: v, defaultValue: defaultValue}
}

func (f FloatVar) Get() float64 {
	if val, ok := os.LookupEnv(f.v.Name); ok {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return f.defaultValue
}

func (f FloatVar) Name() string { return f.v.Name }

// ---------- DurationVar ----------

type DurationVar struct {
	v            Var
	defaultValue time.Duration
}

func RegisterDurationVar(name string, defaultValue time.Duration, description string, component Component) DurationVar {
	v := Var{Name: name, DefaultValue: defaultValue.String(), Description: description, Type: TypeDuration, Component: component}
	register(v)
	return DurationVar{v: v, defaultValue: defaultValue}
}

func (d DurationVar) Get() time.Duration {
	if val, ok := os.LookupEnv(d.v.Name); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return d.defaultValue
}

func (d DurationVar) Name() string { return d.v.Name }

// ---------- Formatting ----------

// ExportMarkdown generates a markdown document listing all registered variables.
func ExportMarkdown(component string) string {
	vars := VarDescriptions()
	var sb strings.Builder

	sb.WriteString("# Aeterna Environment Variables\n\n")

	grouped := make(map[Component][]Var)
	for _, v := range vars {
		if v.Hidden {
			continue
		}
		if component != "" && component != "all" && string(v.Component) != component {
			continue
		}
		grouped[v.Component] = append(grouped[v.Component], v)
	}

	components := make([]Component, 0, len(grouped))
	for c := range grouped {
		components = append(components, c)
	}
	slices.SortFunc(components, func(a, b Component) int {
		return cmp.Compare(string(a), string(b))
	})

	for _, comp := range components {
		compVars := grouped[comp]
		fmt.Fprintf(&sb, "## %s\n\n", comp)
		sb.WriteString("| Variable | Type | Default | Description |\n")
		sb.WriteString("|----------|------|---------|-------------|\n")
		for _, v := range compVars {
			deprecated := ""
			if v.Deprecated {
				deprecated = " **(deprecated)**"
			}
			defaultVal := v.DefaultValue
			if defaultVal == "" {
				defaultVal = "(none)"
			}
			fmt.Fprintf(&sb, "| `%s` | %s | `%s` | %s%s |\n", v.Name, v.Type, defaultVal, v.Description, deprecated)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// ExportJSON generates a JSON array of all registered variables.
func ExportJSON(component string) string {
	vars := VarDescriptions()
	out := make([]Var, 0, len(vars))
	for _, v := range vars {
		if v.Hidden {
			continue
		}
		if component != "" && component != "all" && string(v.Component) != component {
			continue
		}
		out = append(out, v)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "[]\n"
	}
	return string(b) + "\n"
}
