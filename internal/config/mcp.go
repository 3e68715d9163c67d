package config

import (
	"fmt"
	"os"
	"sort"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// MCPTransport identifies how an MCP server is reached.
type MCPTransport string

const (
	TransportStdio          MCPTransport = "stdio"
	TransportStreamableHTTP MCPTransport = "streamable-http"
)

// MCPServerConfig describes one MCP server an agent may bind tools from.
type MCPServerConfig struct {
	Transport MCPTransport      `json:"transport"`
	URL       string            `json:"url,omitempty"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// MCPConfig is the parsed mcp_config.json. Servers maps server name to
// its connection settings; Agents optionally restricts which agents see
// which servers. With no Agents section every agent binds every server.
//
// The file is parsed as JSON5, so comments and trailing commas are
// tolerated, and ${VAR} references are expanded from the environment.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `json:"servers"`
	Agents  map[string][]string        `json:"agents,omitempty"`
}

// LoadMCP reads the MCP binding file. A missing file yields an empty
// config, which binds nothing.
func LoadMCP(path string) (*MCPConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &MCPConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mcp config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg MCPConfig
	if err := json5.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse mcp config: %w", err)
	}

	for name, srv := range cfg.Servers {
		if err := srv.validate(); err != nil {
			return nil, fmt.Errorf("mcp server %q: %w", name, err)
		}
	}

	return &cfg, nil
}

func (s MCPServerConfig) validate() error {
	switch s.Transport {
	case TransportStdio:
		if s.Command == "" {
			return fmt.Errorf("stdio transport requires a command")
		}
	case TransportStreamableHTTP:
		if s.URL == "" {
			return fmt.Errorf("streamable-http transport requires a url")
		}
	case "":
		return fmt.Errorf("transport is required")
	default:
		return fmt.Errorf("unknown transport %q", s.Transport)
	}
	return nil
}

// ServersFor resolves the servers visible to an agent, in stable name
// order.
func (c *MCPConfig) ServersFor(agent string) []NamedMCPServer {
	if c == nil || len(c.Servers) == 0 {
		return nil
	}

	var names []string
	if c.Agents != nil {
		allowed, ok := c.Agents[agent]
		if !ok {
			return nil
		}
		names = append(names, allowed...)
	} else {
		for name := range c.Servers {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]NamedMCPServer, 0, len(names))
	for _, name := range names {
		srv, ok := c.Servers[name]
		if !ok {
			continue
		}
		out = append(out, NamedMCPServer{Name: name, MCPServerConfig: srv})
	}
	return out
}

// NamedMCPServer pairs a server config with its binding name.
type NamedMCPServer struct {
	Name string
	MCPServerConfig
}
