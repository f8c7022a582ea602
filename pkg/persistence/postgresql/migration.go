package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				organization_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'paused')),
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				created_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_flows_organization_id ON flows(organization_id);
			CREATE INDEX idx_flows_status ON flows(status);
			CREATE INDEX idx_flows_deleted_at ON flows(deleted_at);

			CREATE TABLE executions (
				id UUID PRIMARY KEY,
				flow_id UUID NOT NULL REFERENCES flows(id),
				lead_id VARCHAR(255) NOT NULL,
				organization_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				current_node_id VARCHAR(255) NOT NULL,
				execution_data JSONB DEFAULT '{}',
				error_message TEXT,
				paused_from VARCHAR(50),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				next_execution_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_by VARCHAR(255)
			);

			CREATE INDEX idx_executions_flow_id ON executions(flow_id);
			CREATE INDEX idx_executions_lead_id ON executions(lead_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_waiting_due ON executions(next_execution_at)
				WHERE status = 'waiting';
			CREATE INDEX idx_executions_event_key ON executions((execution_data->>'trigger_event_key'));

			CREATE TABLE leads (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				phone VARCHAR(50),
				stage_id VARCHAR(255),
				tag_ids JSONB NOT NULL DEFAULT '[]',
				fields JSONB NOT NULL DEFAULT '{}',
				notes JSONB NOT NULL DEFAULT '[]',
				reminders JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_leads_organization_id ON leads(organization_id);
			CREATE INDEX idx_leads_stage_id ON leads(stage_id);
		`,
	}
}
