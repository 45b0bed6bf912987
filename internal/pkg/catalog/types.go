package catalog

// GoalSummary is the resolved goal data attached to a feature view.
type GoalSummary struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// FeatureView is a feature with its goal reference resolved. Goal is nil when
// the referenced goal is missing or inactive.
type FeatureView struct {
	Key         string       `json:"key"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Type        string       `json:"type"`
	Goal        *GoalSummary `json:"goal,omitempty"`
	IsActive    bool         `json:"is_active"`
}

// CreateFeatureInput enumerates every recognized field for feature creation.
// Unknown fields never reach the registry because the input is a closed struct.
type CreateFeatureInput struct {
	Key         string `json:"key" validate:"required,min=1,max=100"`
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"max=100"`
	Type        string `json:"type" validate:"required,oneof=binary quota tiered"`
	GoalKey     string `json:"goal_key" validate:"omitempty,min=1,max=100"`
}

// CreateGoalInput enumerates every recognized field for goal creation.
type CreateGoalInput struct {
	Key       string `json:"key" validate:"required,min=1,max=100"`
	Name      string `json:"name" validate:"required,min=2,max=255"`
	Color     string `json:"color" validate:"omitempty,max=32"`
	SortOrder int    `json:"sort_order"`
}

// UpdateGoalInput carries the editable goal attributes.
type UpdateGoalInput struct {
	Name      string `json:"name" validate:"required,min=2,max=255"`
	Color     string `json:"color" validate:"omitempty,max=32"`
	SortOrder int    `json:"sort_order"`
}
