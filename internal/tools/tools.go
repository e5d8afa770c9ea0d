// Package tools defines the tools offered to the model, their argument
// schemas, and the tool set and system prompt for each chat type.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"

	"llm_router/internal/providers"
)

const (
	ListFilesToolName       = "list_files"
	ReadFilesToolName       = "read_files"
	EditFileToolName        = "edit_file"
	CreateFileToolName      = "create_file"
	TerminalCommandToolName = "terminal_command"
)

// Tool is a named tool with a JSON schema for its arguments. Tools are
// immutable after construction.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any

	resolved *jsonschema.Resolved
}

// ValidationError reports arguments that do not satisfy a tool schema.
type ValidationError struct {
	Tool string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %v", e.Tool, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewTool compiles schema and returns the tool.
func NewTool(name, description string, schema map[string]any) (*Tool, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema for %s: %w", name, err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema for %s: %w", name, err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema for %s: %w", name, err)
	}
	return &Tool{Name: name, Description: description, Schema: schema, resolved: resolved}, nil
}

func mustTool(name, description string, schema map[string]any) *Tool {
	t, err := NewTool(name, description, schema)
	if err != nil {
		panic(err)
	}
	return t
}

// Validate checks a raw JSON argument payload against the tool schema.
func (t *Tool) Validate(args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(args, &instance); err != nil {
		return &ValidationError{Tool: t.Name, Err: fmt.Errorf("arguments are not valid JSON: %w", err)}
	}
	if err := t.resolved.Validate(instance); err != nil {
		return &ValidationError{Tool: t.Name, Err: err}
	}
	return nil
}

// Spec returns the provider-facing description of the tool.
func (t *Tool) Spec() providers.ToolSpec {
	return providers.ToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.Schema}
}

// Set is an immutable collection of tools keyed by name.
type Set struct {
	tools map[string]*Tool
	names []string
}

// NewSet builds a set. Duplicate names are an error.
func NewSet(tools ...*Tool) (*Set, error) {
	s := &Set{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if _, dup := s.tools[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name)
		}
		s.tools[t.Name] = t
		s.names = append(s.names, t.Name)
	}
	sort.Strings(s.names)
	return s, nil
}

func mustSet(tools ...*Tool) *Set {
	s, err := NewSet(tools...)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the tool named name.
func (s *Set) Lookup(name string) (*Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// Names returns the tool names in sorted order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of tools in the set.
func (s *Set) Len() int {
	return len(s.names)
}

// Specs returns provider specs for every tool in name order.
func (s *Set) Specs() []providers.ToolSpec {
	specs := make([]providers.ToolSpec, 0, len(s.names))
	for _, name := range s.names {
		specs = append(specs, s.tools[name].Spec())
	}
	return specs
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

var (
	listFilesTool = mustTool(ListFilesToolName,
		"List the files and directories at a path in the project.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": stringProp("Directory path relative to the project root."),
			},
			"required": []string{"path"},
		})

	readFilesTool = mustTool(ReadFilesToolName,
		"Read the contents of one or more files.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"paths": map[string]any{
					"type":        "array",
					"description": "File paths relative to the project root.",
					"items":       map[string]any{"type": "string"},
					"minItems":    1,
				},
			},
			"required": []string{"paths"},
		})

	editFileTool = mustTool(EditFileToolName,
		"Edit an existing file. Content holds the changed code; instruction says how to apply it.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":        stringProp("Path of the file to edit."),
				"content":     stringProp("The code to apply to the file."),
				"instruction": stringProp("A short description of the edit."),
			},
			"required": []string{"path", "content", "instruction"},
		})

	createFileTool = mustTool(CreateFileToolName,
		"Create a new file with the given content.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    stringProp("Path of the file to create."),
				"content": stringProp("Full content of the new file."),
			},
			"required": []string{"path", "content"},
		})

	terminalCommandTool = mustTool(TerminalCommandToolName,
		"Run a shell command in the project's terminal.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": stringProp("The command to run."),
			},
			"required": []string{"command"},
		})
)

var (
	buildSet = mustSet(listFilesTool, readFilesTool, editFileTool, createFileTool, terminalCommandTool)
	askSet   = mustSet(listFilesTool, readFilesTool)
)

// BuildSet returns the tools used by create, edit and fix chats.
func BuildSet() *Set { return buildSet }

// AskSet returns the read-only tools used by ask chats.
func AskSet() *Set { return askSet }
