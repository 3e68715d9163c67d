package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

// fakeAPI is a scripted SessionAPI for exercising the tool wrappers
// without a pool behind them.
type fakeAPI struct {
	createID  string
	createErr error

	execOut string
	execErr error
	execIDs []string
	execCmd []string

	infos    []SessionInfo
	infosErr error

	killed     []string
	serverDead bool
}

func (a *fakeAPI) CreateSession(ctx context.Context) (string, error) {
	return a.createID, a.createErr
}

func (a *fakeAPI) Exec(ctx context.Context, sessionID, command string) (string, error) {
	a.execIDs = append(a.execIDs, sessionID)
	a.execCmd = append(a.execCmd, command)
	return a.execOut, a.execErr
}

func (a *fakeAPI) Sessions(ctx context.Context) ([]SessionInfo, error) {
	return a.infos, a.infosErr
}

func (a *fakeAPI) KillSession(ctx context.Context, sessionID string) error {
	a.killed = append(a.killed, sessionID)
	return nil
}

func (a *fakeAPI) KillServer(ctx context.Context) error {
	a.serverDead = true
	return nil
}

func TestSessionToolNames(t *testing.T) {
	tools := SessionTools(&fakeAPI{})
	want := []string{"create_session", "command_exec", "session_list", "kill_session", "kill_server"}

	if len(tools) != len(want) {
		t.Fatalf("SessionTools returned %d tools, want %d", len(tools), len(want))
	}
	for i, name := range want {
		if tools[i].Name() != name {
			t.Errorf("tools[%d] = %q, want %q", i, tools[i].Name(), name)
		}
		if tools[i].Description() == "" {
			t.Errorf("%s has no description", name)
		}
		if len(tools[i].Schema()) == 0 {
			t.Errorf("%s has no schema", name)
		}
	}
}

func TestCreateSessionTool(t *testing.T) {
	api := &fakeAPI{createID: "ab12cd34"}
	tool := &createSessionTool{api: api}

	res, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.IsError || res.Content != "ab12cd34" {
		t.Errorf("result = %+v, want the session id", res)
	}
}

func TestCommandExecToolSuccess(t *testing.T) {
	api := &fakeAPI{execOut: "22/tcp open ssh"}
	tool := &commandExecTool{api: api}

	res, err := tool.Execute(context.Background(),
		json.RawMessage(`{"session_id":"ab12cd34","command":"nmap 127.0.0.1"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true, content %q", res.Content)
	}
	if res.Content != "22/tcp open ssh" {
		t.Errorf("Content = %q", res.Content)
	}
	if res.Command != "nmap 127.0.0.1" {
		t.Errorf("Command = %q, want the executed command carried", res.Command)
	}
	if len(api.execIDs) != 1 || api.execIDs[0] != "ab12cd34" {
		t.Errorf("api saw sessions %v", api.execIDs)
	}
}

func TestCommandExecToolMissingArgs(t *testing.T) {
	for _, params := range []string{`{}`, `{"session_id":"x"}`, `{"command":"ls"}`} {
		api := &fakeAPI{}
		tool := &commandExecTool{api: api}

		res, err := tool.Execute(context.Background(), json.RawMessage(params))
		if err != nil {
			t.Fatalf("Execute(%s) error = %v", params, err)
		}
		if !res.IsError || !strings.Contains(res.Content, "required") {
			t.Errorf("Execute(%s) = %+v, want required-args error result", params, res)
		}
		if len(api.execIDs) != 0 {
			t.Errorf("Execute(%s) reached the API", params)
		}
	}
}

func TestCommandExecToolInvalidJSON(t *testing.T) {
	tool := &commandExecTool{api: &fakeAPI{}}

	res, err := tool.Execute(context.Background(), json.RawMessage(`{`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "invalid arguments") {
		t.Errorf("result = %+v, want invalid-arguments error result", res)
	}
}

func TestCommandExecToolFailureKeepsWorkflowAlive(t *testing.T) {
	api := &fakeAPI{execErr: fmt.Errorf("%w: %q", ErrUnknownSession, "bogus")}
	tool := &commandExecTool{api: api}

	res, err := tool.Execute(context.Background(),
		json.RawMessage(`{"session_id":"bogus","command":"whoami"}`))
	if err != nil {
		t.Fatalf("Execute() must not return a Go error, got %v", err)
	}
	if !res.IsError {
		t.Fatal("exec failure must surface as an error result")
	}
	if !strings.Contains(res.Content, "unknown terminal session") {
		t.Errorf("Content = %q, want the unknown-session text", res.Content)
	}
	if res.Command != "whoami" {
		t.Errorf("Command = %q, want command carried on failure", res.Command)
	}
}

func TestSessionListToolFormats(t *testing.T) {
	api := &fakeAPI{infos: []SessionInfo{
		{ID: "ab12cd34", Detail: "1 windows"},
		{ID: "ef56ab78"},
	}}
	tool := &sessionListTool{api: api}

	res, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Content != "ab12cd34: 1 windows\nef56ab78" {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestSessionListToolEmpty(t *testing.T) {
	tool := &sessionListTool{api: &fakeAPI{}}

	res, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.IsError || res.Content != "no active sessions" {
		t.Errorf("result = %+v", res)
	}
}

func TestKillSessionTool(t *testing.T) {
	api := &fakeAPI{}
	tool := &killSessionTool{api: api}

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"session_id":"ab12cd34"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.IsError || res.Content != "killed session ab12cd34" {
		t.Errorf("result = %+v", res)
	}
	if len(api.killed) != 1 || api.killed[0] != "ab12cd34" {
		t.Errorf("api killed %v", api.killed)
	}

	res, err = tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "session_id is required") {
		t.Errorf("missing id result = %+v", res)
	}
}

func TestKillServerTool(t *testing.T) {
	api := &fakeAPI{}
	tool := &killServerTool{api: api}

	res, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.IsError || res.Content != "terminal server killed" {
		t.Errorf("result = %+v", res)
	}
	if !api.serverDead {
		t.Error("KillServer never reached the API")
	}
}

// End-to-end over a real pool: a bogus session id becomes an error
// result the agent can read and recover from, and the session created
// afterwards works normally.
func TestSessionToolsAgainstPool(t *testing.T) {
	runner := &fakeRunner{respond: func(argv []string) (string, error) {
		if argv[1] == "capture-pane" {
			return "uid=0(root)\n", nil
		}
		return "", nil
	}}
	pool := newTestPool(runner)

	create := &createSessionTool{api: pool}
	exec := &commandExecTool{api: pool}

	res, err := exec.Execute(context.Background(),
		json.RawMessage(`{"session_id":"nope","command":"id"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "unknown terminal session") {
		t.Fatalf("bogus session result = %+v", res)
	}

	res, err = create.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("create Execute() error = %v", err)
	}
	id := res.Content

	res, err = exec.Execute(context.Background(),
		json.RawMessage(`{"session_id":"`+id+`","command":"id"}`))
	if err != nil {
		t.Fatalf("exec Execute() error = %v", err)
	}
	if res.IsError || res.Content != "uid=0(root)" {
		t.Errorf("result = %+v", res)
	}
}
