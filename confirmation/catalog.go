package confirmation

import "strings"

// toolBinding maps a tool to the integration that owns it and the kind of
// mutation it performs.
type toolBinding struct {
	integration string
	actionType  ActionType
}

// toolCatalog binds the built-in tool names. Tools not listed here fall
// back to prefix-based derivation in DeriveToolBinding.
var toolCatalog = map[string]toolBinding{
	"create_jira_issue":      {"jira", ActionCreate},
	"update_jira_issue":      {"jira", ActionUpdate},
	"add_jira_comment":       {"jira", ActionUpdate},
	"transition_jira_issue":  {"jira", ActionUpdate},
	"send_email":             {"email", ActionSend},
	"create_github_issue":    {"github", ActionCreate},
	"comment_github_issue":   {"github", ActionUpdate},
	"close_github_issue":     {"github", ActionUpdate},
	"create_confluence_page": {"confluence", ActionCreate},
	"update_confluence_page": {"confluence", ActionUpdate},
	"post_slack_message":     {"slack", ActionSend},
}

// DeriveToolBinding maps a tool name to its integration and action type.
// Unknown tools get integration "generic" and an action type derived from
// the tool name prefix (create_/update_/delete_/send_), defaulting to
// "other".
func DeriveToolBinding(toolName string) (string, ActionType) {
	name := strings.ToLower(strings.TrimSpace(toolName))
	if binding, ok := toolCatalog[name]; ok {
		return binding.integration, binding.actionType
	}

	actionType := ActionOther
	switch {
	case strings.HasPrefix(name, "create_"):
		actionType = ActionCreate
	case strings.HasPrefix(name, "update_"):
		actionType = ActionUpdate
	case strings.HasPrefix(name, "delete_"):
		actionType = ActionDelete
	case strings.HasPrefix(name, "send_"), strings.HasPrefix(name, "post_"):
		actionType = ActionSend
	}
	return "generic", actionType
}
