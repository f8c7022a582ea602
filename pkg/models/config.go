package models

// TriggerType identifies the domain event that starts an execution.
type TriggerType string

const (
	TriggerLeadCreated         TriggerType = "lead_created"
	TriggerTagAdded            TriggerType = "tag_added"
	TriggerTagRemoved          TriggerType = "tag_removed"
	TriggerStageChanged        TriggerType = "stage_changed"
	TriggerFieldChanged        TriggerType = "field_changed"
	TriggerDate                TriggerType = "date_trigger"
	TriggerRelativeDate        TriggerType = "relative_date"
	TriggerGoogleCalendarEvent TriggerType = "google_calendar_event"
	TriggerLeadReturnDate      TriggerType = "lead_return_date"
	TriggerLastMessageSent     TriggerType = "last_message_sent"
)

// TriggerConfig is the payload of a trigger node. Only the fields relevant
// to Type are set.
type TriggerConfig struct {
	Type       TriggerType `json:"trigger_type"`
	TagID      string      `json:"tag_id,omitempty"`
	StageID    string      `json:"stage_id,omitempty"`
	Field      string      `json:"field,omitempty"`
	Value      string      `json:"value,omitempty"`
	Date       string      `json:"date,omitempty"` // RFC 3339
	DaysBefore int         `json:"days_before,omitempty"`
}

// ActionType identifies the external side effect an action node performs.
type ActionType string

const (
	ActionSendWhatsApp         ActionType = "send_whatsapp"
	ActionSendWhatsAppTemplate ActionType = "send_whatsapp_template"
	ActionAddTag               ActionType = "add_tag"
	ActionRemoveTag            ActionType = "remove_tag"
	ActionMoveStage            ActionType = "move_stage"
	ActionAddNote              ActionType = "add_note"
	ActionAddToCallQueue       ActionType = "add_to_call_queue"
	ActionRemoveFromCallQueue  ActionType = "remove_from_call_queue"
	ActionUpdateField          ActionType = "update_field"
	ActionUpdateValue          ActionType = "update_value"
	ActionApplyTemplate        ActionType = "apply_template"
	ActionCreateReminder       ActionType = "create_reminder"
)

// ActionConfig is the payload of an action node.
type ActionConfig struct {
	Type         ActionType `json:"action_type"`
	InstanceID   string     `json:"instance_id,omitempty"`
	Message      string     `json:"message,omitempty"`
	TemplateID   string     `json:"template_id,omitempty"`
	TagID        string     `json:"tag_id,omitempty"`
	StageID      string     `json:"stage_id,omitempty"`
	Content      string     `json:"content,omitempty"`
	Priority     string     `json:"priority,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Field        string     `json:"field,omitempty"`
	Value        string     `json:"value,omitempty"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	ReminderDate string     `json:"reminder_date,omitempty"` // RFC 3339
}

// WaitType identifies how a wait node decides when to resume.
type WaitType string

const (
	WaitDelay      WaitType = "delay"
	WaitUntilDate  WaitType = "until_date"
	WaitUntilField WaitType = "until_field"
)

// DelayUnit is the time unit of a delay wait.
type DelayUnit string

const (
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
)

// WaitConfig is the payload of a wait node.
type WaitConfig struct {
	Type       WaitType  `json:"wait_type"`
	DelayValue int       `json:"delay_value,omitempty"`
	DelayUnit  DelayUnit `json:"delay_unit,omitempty"`
	Date       string    `json:"date,omitempty"` // RFC 3339
	Field      string    `json:"field,omitempty"`
	Operator   Operator  `json:"operator,omitempty"`
	Value      string    `json:"value,omitempty"`
}

// Operator is the comparison applied by condition nodes and until_field waits.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
	OperatorExists      Operator = "exists"
	OperatorNotExists   Operator = "not_exists"
)

// ConditionConfig is the payload of a condition node. Exactly one of Field,
// TagID and StageID is set; it selects the condition kind.
type ConditionConfig struct {
	Field    string   `json:"field,omitempty"`
	TagID    string   `json:"tag_id,omitempty"`
	StageID  string   `json:"stage_id,omitempty"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value,omitempty"`
}

// Kind reports which condition kind the config selects.
func (c *ConditionConfig) Kind() ConditionKind {
	switch {
	case c.TagID != "":
		return ConditionKindTag
	case c.StageID != "":
		return ConditionKindStage
	default:
		return ConditionKindField
	}
}

// ConditionKind distinguishes field comparison, tag membership and stage match.
type ConditionKind string

const (
	ConditionKindField ConditionKind = "field"
	ConditionKindTag   ConditionKind = "tag"
	ConditionKindStage ConditionKind = "stage"
)
