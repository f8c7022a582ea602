package models

// NodeType represents the kind of step a node performs in a flow.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeWait      NodeType = "wait"
	NodeTypeCondition NodeType = "condition"
	NodeTypeEnd       NodeType = "end"
)

// Branch handles used by condition node outgoing edges.
const (
	HandleYes = "yes"
	HandleNo  = "no"
)

// Position carries editor layout coordinates. It has no execution semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex in a flow graph. Exactly one of the config fields is
// populated, tagged by Type; end nodes carry no config.
type Node struct {
	ID       string   `json:"id"   validate:"required"`
	Type     NodeType `json:"type" validate:"required"`
	Label    string   `json:"label"`
	Position Position `json:"position"`

	Trigger   *TriggerConfig   `json:"trigger,omitempty"`
	Action    *ActionConfig    `json:"action,omitempty"`
	Wait      *WaitConfig      `json:"wait,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty"`
}

// Edge is a directed connection between two nodes. SourceHandle selects the
// branch on condition nodes ("yes"/"no"); it is empty everywhere else.
type Edge struct {
	ID           string `json:"id"     validate:"required"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// DefaultNode returns a node of the given type with the editor's default
// label and config payload.
func DefaultNode(nodeType NodeType) *Node {
	node := &Node{Type: nodeType}

	switch nodeType {
	case NodeTypeTrigger:
		node.Label = "Gatilho"
		node.Trigger = &TriggerConfig{Type: TriggerLeadCreated}
	case NodeTypeAction:
		node.Label = "Ação"
		node.Action = &ActionConfig{Type: ActionSendWhatsApp}
	case NodeTypeWait:
		node.Label = "Aguardar"
		node.Wait = &WaitConfig{Type: WaitDelay, DelayValue: 1, DelayUnit: DelayUnitHours}
	case NodeTypeCondition:
		node.Label = "Condição"
		node.Condition = &ConditionConfig{Field: "value", Operator: OperatorEquals}
	case NodeTypeEnd:
		node.Label = "Fim"
	}

	return node
}
