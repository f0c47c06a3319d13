package linear

// Issue is a Linear issue as returned by the GraphQL API.
type Issue struct {
	ID          string  `json:"id"`
	Identifier  string  `json:"identifier"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    float64 `json:"priority"`
	URL         string  `json:"url"`
	BranchName  string  `json:"branchName"`
	State       *State  `json:"state,omitempty"`
	Assignee    *User   `json:"assignee,omitempty"`
	Team        *Team   `json:"team,omitempty"`
	Cycle       *Cycle  `json:"cycle,omitempty"`
}

// State is a workflow state (Backlog, In Progress, Done, ...).
type State struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// User is a Linear workspace member.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Team is a Linear team.
type Team struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Cycle is a Linear cycle (sprint).
type Cycle struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	StartsAt string `json:"startsAt"`
	EndsAt   string `json:"endsAt"`
}
