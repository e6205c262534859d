package gateway

// AgentCard is the static capability descriptor served at /agent-card and
// /.well-known/agent.json. It is derived from configuration at startup and
// carries no mutable state.
type AgentCard struct {
	AgentID         string       `json:"agent_id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	ProtocolVersion string       `json:"protocol_version"`
	URL             string       `json:"url"`
	Skills          []AgentSkill `json:"skills"`
	Communication   AgentComms   `json:"communication"`
}

// AgentSkill describes one capability and where to invoke it.
type AgentSkill struct {
	SkillName      string   `json:"skill_name"`
	Description    string   `json:"description"`
	Endpoint       string   `json:"endpoint"`
	StatusEndpoint string   `json:"status_endpoint,omitempty"`
	InputModes     []string `json:"input_modes,omitempty"`
	OutputModes    []string `json:"output_modes,omitempty"`
}

// AgentComms advertises the supported protocol bindings.
type AgentComms struct {
	Protocol string   `json:"protocol"`
	Methods  []string `json:"methods"`
}

// NewAgentCard derives the descriptor from the public base URL.
func NewAgentCard(baseURL string) AgentCard {
	return AgentCard{
		AgentID:         "translation-agent-v1",
		Name:            "Asynchronous Text Translation Agent",
		Description:     "Receives text translation tasks, queues them for background processing and serves results on poll.",
		ProtocolVersion: "0.2",
		URL:             baseURL,
		Skills: []AgentSkill{
			{
				SkillName:      "translate_text",
				Description:    "Translate text into a target language identified by its ISO code.",
				Endpoint:       baseURL + "/execute_task",
				StatusEndpoint: baseURL + "/task_status",
				InputModes:     []string{"text"},
				OutputModes:    []string{"text"},
			},
		},
		Communication: AgentComms{
			Protocol: "jsonrpc-2.0",
			Methods:  []string{"message/send", "tasks/get", "tasks/cancel"},
		},
	}
}
