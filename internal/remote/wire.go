package remote

// Tool names served by a worker.
const (
	ExecuteTool = "execute"
	InspectTool = "inspect"
)

// ExecuteArgs are the arguments of a worker's execute tool. The tool
// answers with a JSON encoded execute.Report.
type ExecuteArgs struct {
	Args      []string          `json:"args" jsonschema:"argv of the command, the first element is resolved via PATH"`
	Env       []string          `json:"env,omitempty" jsonschema:"KEY=VALUE pairs added to the environment"`
	Cwd       string            `json:"cwd,omitempty" jsonschema:"working directory relative to the worker workspace"`
	TimeoutMs int64             `json:"timeout_ms,omitempty" jsonschema:"timeout in milliseconds, the worker default applies when zero"`
	TraceID   string            `json:"trace_id,omitempty" jsonschema:"trace id of the dispatching client"`
	UseCase   string            `json:"use_case,omitempty" jsonschema:"tenant the command is billed to"`
	ActionKey string            `json:"action_key,omitempty" jsonschema:"opaque key identifying the action"`
	Platform  map[string]string `json:"platform,omitempty" jsonschema:"properties the worker is expected to satisfy"`
}
