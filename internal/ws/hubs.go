package ws

type Hubs struct {
	Monitor *Hub
	Agent   *AgentHub
}

func NewHubs() *Hubs {
	return &Hubs{
		Monitor: NewHub(),
		Agent:   NewAgentHub(),
	}
}
