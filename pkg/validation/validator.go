// Package validation checks the structural and semantic validity of flow
// graphs. Errors block activation; warnings are surfaced to the editor only.
// All functions are pure: same graph in, same result out.
package validation

import (
	"fmt"
	"time"

	"github.com/leadflow/leadflow/pkg/models"
)

// Result is the outcome of validating a full flow graph.
type Result struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NodeResult is the outcome of validating a single node's config contract.
type NodeResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// ValidateFlow validates the whole graph: entry point uniqueness,
// reachability, condition branch completeness, per-node config contracts and
// edge integrity.
func ValidateFlow(flow *models.Flow) Result {
	var (
		errs     []string
		warnings []string
	)

	graph := models.NewGraph(flow)

	errs = append(errs, validateTriggerCount(flow)...)
	errs = append(errs, validateTriggerExit(flow, graph)...)
	errs = append(errs, validateEdgeReferences(flow, graph)...)
	errs = append(errs, validateReachability(flow, graph)...)
	errs = append(errs, validateConditionBranches(flow, graph)...)

	for _, node := range flow.Nodes {
		nodeResult := ValidateNode(node)
		errs = append(errs, nodeResult.Errors...)
	}

	warnings = append(warnings, warnNeverTerminates(flow, graph)...)
	warnings = append(warnings, warnPolledWaits(flow)...)

	return Result{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// ValidateNode checks a single node's required-field contract. The editor
// calls this on every node edit for inline feedback.
func ValidateNode(node *models.Node) NodeResult {
	var errs []string

	switch node.Type {
	case models.NodeTypeTrigger:
		errs = validateTriggerConfig(node)
	case models.NodeTypeAction:
		errs = validateActionConfig(node)
	case models.NodeTypeWait:
		errs = validateWaitConfig(node)
	case models.NodeTypeCondition:
		errs = validateConditionConfig(node)
	case models.NodeTypeEnd:
		// End nodes carry no config.
	default:
		errs = append(errs, fmt.Sprintf("nó %q com tipo desconhecido: %s", nodeName(node), node.Type))
	}

	return NodeResult{IsValid: len(errs) == 0, Errors: errs}
}

func validateTriggerCount(flow *models.Flow) []string {
	count := 0

	for _, node := range flow.Nodes {
		if node.Type == models.NodeTypeTrigger {
			count++
		}
	}

	switch {
	case count == 0:
		return []string{"fluxo sem gatilho"}
	case count > 1:
		return []string{fmt.Sprintf("fluxo com %d gatilhos; apenas um ponto de entrada é permitido", count)}
	default:
		return nil
	}
}

// validateTriggerExit flags a trigger with no outgoing edge: the flow would
// fire and complete without running a single step.
func validateTriggerExit(flow *models.Flow, graph *models.Graph) []string {
	trigger := flow.TriggerNode()
	if trigger == nil {
		return nil
	}

	if len(graph.Outgoing(trigger.ID)) == 0 {
		return []string{fmt.Sprintf("gatilho %q sem conexão de saída; o fluxo não executa nenhuma etapa", nodeName(trigger))}
	}

	return nil
}

func validateEdgeReferences(flow *models.Flow, graph *models.Graph) []string {
	var errs []string

	for _, edge := range flow.Edges {
		if graph.Node(edge.Source) == nil {
			errs = append(errs, fmt.Sprintf("conexão %q referencia nó de origem inexistente: %s", edge.ID, edge.Source))
		}

		if graph.Node(edge.Target) == nil {
			errs = append(errs, fmt.Sprintf("conexão %q referencia nó de destino inexistente: %s", edge.ID, edge.Target))
		}
	}

	return errs
}

// validateReachability flags every non-trigger node with no forward path from
// the trigger. Unreachable nodes are dead code in the flow, not a warning.
func validateReachability(flow *models.Flow, graph *models.Graph) []string {
	trigger := flow.TriggerNode()
	if trigger == nil {
		// Without an entry point reachability is meaningless; the missing
		// trigger is already reported.
		return nil
	}

	visited := map[string]bool{trigger.ID: true}
	queue := []string{trigger.ID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range graph.Outgoing(current) {
			if graph.Node(edge.Target) == nil || visited[edge.Target] {
				continue
			}

			visited[edge.Target] = true
			queue = append(queue, edge.Target)
		}
	}

	var errs []string

	for _, node := range flow.Nodes {
		if !visited[node.ID] {
			errs = append(errs, fmt.Sprintf("nó %q não é alcançável a partir do gatilho", nodeName(node)))
		}
	}

	return errs
}

func validateConditionBranches(flow *models.Flow, graph *models.Graph) []string {
	var errs []string

	for _, node := range flow.Nodes {
		if node.Type != models.NodeTypeCondition {
			continue
		}

		if _, ok := graph.Branch(node.ID, models.HandleYes); !ok {
			errs = append(errs, fmt.Sprintf("condição %q sem ramo \"yes\"", nodeName(node)))
		}

		if _, ok := graph.Branch(node.ID, models.HandleNo); !ok {
			errs = append(errs, fmt.Sprintf("condição %q sem ramo \"no\"", nodeName(node)))
		}
	}

	return errs
}

func validateTriggerConfig(node *models.Node) []string {
	cfg := node.Trigger
	if cfg == nil {
		return []string{fmt.Sprintf("gatilho %q sem configuração", nodeName(node))}
	}

	var errs []string

	switch cfg.Type {
	case models.TriggerLeadCreated, models.TriggerGoogleCalendarEvent,
		models.TriggerLeadReturnDate, models.TriggerLastMessageSent:
		// No required fields.
	case models.TriggerTagAdded, models.TriggerTagRemoved:
		if cfg.TagID == "" {
			errs = append(errs, fmt.Sprintf("gatilho %q (%s) sem etiqueta", nodeName(node), cfg.Type))
		}
	case models.TriggerStageChanged:
		// StageID unset means "any stage change".
	case models.TriggerFieldChanged:
		if cfg.Field == "" {
			errs = append(errs, fmt.Sprintf("gatilho %q (field_changed) sem campo", nodeName(node)))
		}
	case models.TriggerDate:
		if _, err := time.Parse(time.RFC3339, cfg.Date); err != nil {
			errs = append(errs, fmt.Sprintf("gatilho %q (date_trigger) com data inválida", nodeName(node)))
		}
	case models.TriggerRelativeDate:
		if cfg.Field == "" {
			errs = append(errs, fmt.Sprintf("gatilho %q (relative_date) sem campo de data", nodeName(node)))
		}

		if cfg.DaysBefore <= 0 {
			errs = append(errs, fmt.Sprintf("gatilho %q (relative_date) com days_before inválido", nodeName(node)))
		}
	default:
		errs = append(errs, fmt.Sprintf("gatilho %q com tipo desconhecido: %s", nodeName(node), cfg.Type))
	}

	return errs
}

func validateActionConfig(node *models.Node) []string {
	cfg := node.Action
	if cfg == nil {
		return []string{fmt.Sprintf("ação %q sem configuração", nodeName(node))}
	}

	var errs []string

	switch cfg.Type {
	case models.ActionSendWhatsApp:
		if cfg.Message == "" {
			errs = append(errs, fmt.Sprintf("ação %q (send_whatsapp) sem mensagem", nodeName(node)))
		}

		if cfg.InstanceID == "" {
			errs = append(errs, fmt.Sprintf("ação %q (send_whatsapp) sem instância", nodeName(node)))
		}
	case models.ActionSendWhatsAppTemplate:
		if cfg.TemplateID == "" {
			errs = append(errs, fmt.Sprintf("ação %q (send_whatsapp_template) sem modelo", nodeName(node)))
		}

		if cfg.InstanceID == "" {
			errs = append(errs, fmt.Sprintf("ação %q (send_whatsapp_template) sem instância", nodeName(node)))
		}
	case models.ActionAddTag, models.ActionRemoveTag:
		if cfg.TagID == "" {
			errs = append(errs, fmt.Sprintf("ação %q (%s) sem etiqueta", nodeName(node), cfg.Type))
		}
	case models.ActionMoveStage:
		if cfg.StageID == "" {
			errs = append(errs, fmt.Sprintf("ação %q (move_stage) sem etapa", nodeName(node)))
		}
	case models.ActionAddNote:
		if cfg.Content == "" {
			errs = append(errs, fmt.Sprintf("ação %q (add_note) sem conteúdo", nodeName(node)))
		}
	case models.ActionAddToCallQueue, models.ActionRemoveFromCallQueue:
		// Queue actions need only the lead, carried by the execution.
	case models.ActionUpdateField:
		if cfg.Field == "" {
			errs = append(errs, fmt.Sprintf("ação %q (update_field) sem campo", nodeName(node)))
		}
	case models.ActionUpdateValue:
		if cfg.Value == "" {
			errs = append(errs, fmt.Sprintf("ação %q (update_value) sem valor", nodeName(node)))
		}
	case models.ActionApplyTemplate:
		if cfg.TemplateID == "" {
			errs = append(errs, fmt.Sprintf("ação %q (apply_template) sem modelo", nodeName(node)))
		}
	case models.ActionCreateReminder:
		if cfg.Title == "" {
			errs = append(errs, fmt.Sprintf("ação %q (create_reminder) sem título", nodeName(node)))
		}

		if _, err := time.Parse(time.RFC3339, cfg.ReminderDate); err != nil {
			errs = append(errs, fmt.Sprintf("ação %q (create_reminder) com data inválida", nodeName(node)))
		}
	default:
		errs = append(errs, fmt.Sprintf("ação %q com tipo desconhecido: %s", nodeName(node), cfg.Type))
	}

	return errs
}

func validateWaitConfig(node *models.Node) []string {
	cfg := node.Wait
	if cfg == nil {
		return []string{fmt.Sprintf("espera %q sem configuração", nodeName(node))}
	}

	var errs []string

	switch cfg.Type {
	case models.WaitDelay:
		if cfg.DelayValue <= 0 {
			errs = append(errs, fmt.Sprintf("espera %q com tempo inválido", nodeName(node)))
		}

		switch cfg.DelayUnit {
		case models.DelayUnitMinutes, models.DelayUnitHours, models.DelayUnitDays:
		default:
			errs = append(errs, fmt.Sprintf("espera %q com unidade de tempo desconhecida: %q", nodeName(node), cfg.DelayUnit))
		}
	case models.WaitUntilDate:
		if _, err := time.Parse(time.RFC3339, cfg.Date); err != nil {
			errs = append(errs, fmt.Sprintf("espera %q (until_date) com data inválida", nodeName(node)))
		}
	case models.WaitUntilField:
		if cfg.Field == "" {
			errs = append(errs, fmt.Sprintf("espera %q (until_field) sem campo", nodeName(node)))
		}

		if !validOperator(cfg.Operator) {
			errs = append(errs, fmt.Sprintf("espera %q (until_field) com operador desconhecido: %q", nodeName(node), cfg.Operator))
		}
	default:
		errs = append(errs, fmt.Sprintf("espera %q com tipo desconhecido: %s", nodeName(node), cfg.Type))
	}

	return errs
}

func validateConditionConfig(node *models.Node) []string {
	cfg := node.Condition
	if cfg == nil {
		return []string{fmt.Sprintf("condição %q sem configuração", nodeName(node))}
	}

	var errs []string

	selectors := 0
	for _, s := range []string{cfg.Field, cfg.TagID, cfg.StageID} {
		if s != "" {
			selectors++
		}
	}

	if selectors == 0 {
		errs = append(errs, fmt.Sprintf("condição %q sem campo, etiqueta ou etapa", nodeName(node)))
	}

	if selectors > 1 {
		errs = append(errs, fmt.Sprintf("condição %q com mais de um critério; use apenas campo, etiqueta ou etapa", nodeName(node)))
	}

	if !validOperator(cfg.Operator) {
		errs = append(errs, fmt.Sprintf("condição %q com operador desconhecido: %q", nodeName(node), cfg.Operator))
	}

	return errs
}

// warnNeverTerminates warns when the graph has no end node and every node has
// an outgoing edge: leads would stay in the flow indefinitely.
func warnNeverTerminates(flow *models.Flow, graph *models.Graph) []string {
	if len(flow.Nodes) == 0 {
		return nil
	}

	for _, node := range flow.Nodes {
		if node.Type == models.NodeTypeEnd {
			return nil
		}

		if len(graph.Outgoing(node.ID)) == 0 {
			return nil
		}
	}

	return []string{"fluxo sem término natural; leads podem permanecer no fluxo indefinidamente"}
}

func warnPolledWaits(flow *models.Flow) []string {
	var warnings []string

	for _, node := range flow.Nodes {
		if node.Type == models.NodeTypeWait && node.Wait != nil && node.Wait.Type == models.WaitUntilField {
			warnings = append(warnings, fmt.Sprintf(
				"espera %q (until_field) é verificada periodicamente; o avanço pode atrasar até a próxima verificação", nodeName(node)))
		}
	}

	return warnings
}

func validOperator(op models.Operator) bool {
	switch op {
	case models.OperatorEquals, models.OperatorNotEquals,
		models.OperatorGreaterThan, models.OperatorLessThan,
		models.OperatorContains, models.OperatorNotContains,
		models.OperatorExists, models.OperatorNotExists:
		return true
	default:
		return false
	}
}

func nodeName(node *models.Node) string {
	if node.Label != "" {
		return node.Label
	}

	return node.ID
}
