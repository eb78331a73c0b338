package mcp

// InvokeInput is the input schema shared by every generated tool: the
// positional args a command registry handler receives, exactly as a CLI
// or stdio caller would supply them.
type InvokeInput struct {
	Args []string `json:"args,omitempty" jsonschema:"positional arguments for this command, e.g. a query string or --flag value pairs"`
}

// InvokeOutput is the output schema shared by every generated tool: the
// CommandResult kind plus whichever of Text/JSON that kind populated.
type InvokeOutput struct {
	Kind string `json:"kind" jsonschema:"one of unit, text, json"`
	Text string `json:"text,omitempty" jsonschema:"human-readable rendering of the result"`
	JSON any    `json:"json,omitempty" jsonschema:"structured result payload, present when kind is json"`
}
