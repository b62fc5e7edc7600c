package confirmation

import "testing"

func TestDeriveToolBinding(t *testing.T) {
	tests := []struct {
		toolName        string
		wantIntegration string
		wantType        ActionType
	}{
		{"create_jira_issue", "jira", ActionCreate},
		{"add_jira_comment", "jira", ActionUpdate},
		{"send_email", "email", ActionSend},
		{"create_github_issue", "github", ActionCreate},
		{"update_confluence_page", "confluence", ActionUpdate},
		{"post_slack_message", "slack", ActionSend},

		// Case and whitespace folding.
		{"  Create_Jira_Issue ", "jira", ActionCreate},

		// Unknown tools fall back to prefix derivation.
		{"create_widget", "generic", ActionCreate},
		{"update_widget", "generic", ActionUpdate},
		{"delete_widget", "generic", ActionDelete},
		{"send_fax", "generic", ActionSend},
		{"post_announcement", "generic", ActionSend},
		{"rotate_api_key", "generic", ActionOther},
	}

	for _, tt := range tests {
		integration, actionType := DeriveToolBinding(tt.toolName)
		if integration != tt.wantIntegration || actionType != tt.wantType {
			t.Errorf("DeriveToolBinding(%q) = (%q, %q), want (%q, %q)",
				tt.toolName, integration, actionType, tt.wantIntegration, tt.wantType)
		}
	}
}
