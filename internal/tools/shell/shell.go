// Package shell provides the command tools agents run inside the
// operations container. Each tool wraps a single binary: the model
// supplies a target and optional flags, the tool renders one command
// line and executes it through the terminal layer.
package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/redcellhq/redcell/internal/agent"
	"github.com/redcellhq/redcell/internal/observability"
	"github.com/redcellhq/redcell/internal/terminal"
)

// CommandRunner executes one rendered command line and returns the
// captured output. Both terminal.Pool and terminal.Client satisfy it.
type CommandRunner interface {
	RunCommand(ctx context.Context, command string) (string, error)
}

// targetPattern is the conservative character set accepted for targets:
// hostnames, IPv4/IPv6 addresses, URLs, and service specs, but no shell
// metacharacters. Options deliberately pass through verbatim; the target
// is the one field that routinely carries untrusted text.
var targetPattern = regexp.MustCompile(`^[A-Za-z0-9._:/-]+$`)

// ValidTarget reports whether a target string is safe to interpolate
// into a command line.
func ValidTarget(target string) bool {
	return target != "" && targetPattern.MatchString(target)
}

// RenderCommand joins binary, options, and target with single spaces.
// Empty options collapse to a double space, which the shell ignores.
func RenderCommand(binary, options, target string) string {
	return binary + " " + options + " " + target
}

// Spec describes one wrapped binary.
type Spec struct {
	// Binary is the executable name; it doubles as the tool name.
	Binary string

	// Description is shown to the model.
	Description string

	// TargetDoc documents the target parameter.
	TargetDoc string

	// OptionsDoc documents the options parameter.
	OptionsDoc string
}

// options accepts either a flag string or a list of flags, mirroring the
// loose argument styles models produce.
type options struct {
	value string
}

func (o *options) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.value = s
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		o.value = strings.Join(list, " ")
		return nil
	}
	return fmt.Errorf("options must be a string or an array of strings")
}

type commandInput struct {
	Target  string  `json:"target"`
	Options options `json:"options"`
}

// commandTool is a generic single-binary wrapper.
type commandTool struct {
	spec   Spec
	runner CommandRunner
	logger *observability.Logger
}

// NewCommandTool wraps one binary as an agent tool.
func NewCommandTool(spec Spec, runner CommandRunner, logger *observability.Logger) agent.Tool {
	return &commandTool{spec: spec, runner: runner, logger: logger}
}

func (t *commandTool) Name() string        { return t.spec.Binary }
func (t *commandTool) Description() string { return t.spec.Description }

func (t *commandTool) Schema() json.RawMessage {
	targetDoc := t.spec.TargetDoc
	if targetDoc == "" {
		targetDoc = "Target host, IP address, or URL"
	}
	optionsDoc := t.spec.OptionsDoc
	if optionsDoc == "" {
		optionsDoc = "Additional command line flags, as a string or list of strings"
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"target": map[string]any{
				"type":        "string",
				"description": targetDoc,
			},
			"options": map[string]any{
				"description": optionsDoc,
				"oneOf": []map[string]any{
					{"type": "string"},
					{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
		"required": []string{"target"},
	}

	data, _ := json.Marshal(schema)
	return data
}

func (t *commandTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input commandInput
	if err := json.Unmarshal(params, &input); err != nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("invalid arguments for %s: %v", t.spec.Binary, err),
			IsError: true,
		}, nil
	}

	if !ValidTarget(input.Target) {
		return &agent.ToolResult{
			Content: fmt.Sprintf("invalid target %q: targets may only contain letters, digits, and ._:/-", input.Target),
			IsError: true,
		}, nil
	}

	command := RenderCommand(t.spec.Binary, input.Options.value, input.Target)
	return runCommand(ctx, t.runner, t.logger, command)
}

// runCommand executes a rendered command. An unreachable tool server is
// retried once before the failure goes back to the model as an error
// result; the activation itself never aborts over a tool failure.
func runCommand(ctx context.Context, runner CommandRunner, logger *observability.Logger, command string) (*agent.ToolResult, error) {
	output, err := runner.RunCommand(ctx, command)
	if errors.Is(err, terminal.ErrServerUnreachable) {
		if logger != nil {
			logger.Warn(ctx, "tool server unreachable, retrying once", "command", command)
		}
		output, err = runner.RunCommand(ctx, command)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &agent.ToolResult{
			Content: fmt.Sprintf("command failed: %v", err),
			IsError: true,
			Command: command,
		}, nil
	}

	return &agent.ToolResult{Content: output, Command: command}, nil
}

// ReconTools returns the reconnaissance toolkit: network scanning and
// service/domain enumeration wrappers.
func ReconTools(runner CommandRunner, logger *observability.Logger) []agent.Tool {
	specs := []Spec{
		{
			Binary:      "nmap",
			Description: "Scan a target with nmap to discover open ports and running services.",
			TargetDoc:   "Host or IP address to scan",
			OptionsDoc:  `nmap flags, e.g. "-sV -p 1-1000"`,
		},
		{
			Binary:      "curl",
			Description: "Make an HTTP request against a target URL and return the response.",
			TargetDoc:   "URL to request",
			OptionsDoc:  `curl flags, e.g. "-I" or "-s -L"`,
		},
		{
			Binary:      "dig",
			Description: "Query DNS records (A, MX, NS, TXT, ...) for a domain.",
			TargetDoc:   "Domain name to resolve",
			OptionsDoc:  `dig flags and record type, e.g. "MX +short"`,
		},
		{
			Binary:      "whois",
			Description: "Look up domain registration details: registrar, contacts, name servers.",
			TargetDoc:   "Domain name to look up",
			OptionsDoc:  "whois flags",
		},
	}

	tools := make([]agent.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, NewCommandTool(spec, runner, logger))
	}
	return tools
}

// AccessTools returns the initial-access toolkit: credential attacks,
// exploit lookup, and authenticated session tooling.
func AccessTools(runner CommandRunner, logger *observability.Logger) []agent.Tool {
	specs := []Spec{
		{
			Binary:      "hydra",
			Description: "Brute force credentials against a network service with hydra.",
			TargetDoc:   `Service spec, e.g. "ssh://192.168.1.10"`,
			OptionsDoc:  `hydra flags, e.g. "-l admin -P /usr/share/wordlists/rockyou.txt"`,
		},
		{
			Binary:      "searchsploit",
			Description: "Search the Exploit Database for known exploits by product, version, or CVE.",
			TargetDoc:   "Product or service name to search for (single token)",
			OptionsDoc:  "Extra search terms or searchsploit flags",
		},
	}

	tools := make([]agent.Tool, 0, len(specs)+1)
	for _, spec := range specs {
		tools = append(tools, NewCommandTool(spec, runner, logger))
	}
	return append(tools, NewSSHPassTool(runner, logger))
}
