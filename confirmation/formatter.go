package confirmation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FormatterFunc renders a pending action's parameters into human-readable
// Markdown. Formatters must be pure: no external state, no mutation of the
// parameters map, and they must tolerate missing optional fields.
type FormatterFunc func(parameters map[string]interface{}) string

// FormatterRegistry maps (integration, tool_name) to a formatter. Both
// parts of the key are lowercased on Register and Format. Lookups that
// miss fall back to a generic preview listing the tool, the integration,
// and a pretty-printed parameters mapping.
type FormatterRegistry struct {
	mu         sync.RWMutex
	formatters map[string]FormatterFunc
}

// NewFormatterRegistry creates an empty registry. Most callers want
// DefaultRegistry instead.
func NewFormatterRegistry() *FormatterRegistry {
	return &FormatterRegistry{
		formatters: make(map[string]FormatterFunc),
	}
}

func formatterKey(integration, toolName string) string {
	return strings.ToLower(integration) + ":" + strings.ToLower(toolName)
}

// Register binds a formatter to an (integration, tool_name) pair,
// replacing any previous binding.
func (r *FormatterRegistry) Register(integration, toolName string, fn FormatterFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formatters[formatterKey(integration, toolName)] = fn
}

// Format dispatches to the registered formatter, or to the generic
// preview when none is registered.
func (r *FormatterRegistry) Format(integration, toolName string, parameters map[string]interface{}) string {
	r.mu.RLock()
	fn, ok := r.formatters[formatterKey(integration, toolName)]
	r.mu.RUnlock()

	if !ok {
		return genericPreview(integration, toolName, parameters)
	}
	return fn(parameters)
}

// DefaultRegistry returns a registry pre-populated with formatters for the
// built-in integrations.
func DefaultRegistry() *FormatterRegistry {
	r := NewFormatterRegistry()

	r.Register("jira", "create_jira_issue", func(p map[string]interface{}) string {
		var sb strings.Builder
		sb.WriteString("## Create Jira Issue\n\n")
		writeField(&sb, "Project", p, "project")
		writeField(&sb, "Summary", p, "summary")
		writeField(&sb, "Type", p, "issue_type")
		writeField(&sb, "Priority", p, "priority")
		if desc := str(p, "description"); desc != "" {
			fmt.Fprintf(&sb, "\n**Description:**\n\n%s\n", desc)
		}
		return sb.String()
	})

	r.Register("jira", "add_jira_comment", func(p map[string]interface{}) string {
		var sb strings.Builder
		sb.WriteString("## Add Jira Comment\n\n")
		writeField(&sb, "Issue", p, "issue_key")
		if body := str(p, "comment"); body != "" {
			fmt.Fprintf(&sb, "\n**Comment:**\n\n%s\n", body)
		}
		return sb.String()
	})

	r.Register("email", "send_email", func(p map[string]interface{}) string {
		var sb strings.Builder
		sb.WriteString("## Send Email\n\n")
		writeField(&sb, "To", p, "to")
		writeField(&sb, "Cc", p, "cc")
		writeField(&sb, "Subject", p, "subject")
		if body := str(p, "body"); body != "" {
			fmt.Fprintf(&sb, "\n**Body:**\n\n%s\n", body)
		}
		return sb.String()
	})

	r.Register("github", "create_github_issue", func(p map[string]interface{}) string {
		var sb strings.Builder
		sb.WriteString("## Create GitHub Issue\n\n")
		writeField(&sb, "Repository", p, "repo")
		writeField(&sb, "Title", p, "title")
		writeField(&sb, "Labels", p, "labels")
		if body := str(p, "body"); body != "" {
			fmt.Fprintf(&sb, "\n**Body:**\n\n%s\n", body)
		}
		return sb.String()
	})

	r.Register("confluence", "create_confluence_page", func(p map[string]interface{}) string {
		var sb strings.Builder
		sb.WriteString("## Create Confluence Page\n\n")
		writeField(&sb, "Space", p, "space")
		writeField(&sb, "Title", p, "title")
		writeField(&sb, "Parent", p, "parent_id")
		return sb.String()
	})

	r.Register("confluence", "update_confluence_page", func(p map[string]interface{}) string {
		var sb strings.Builder
		sb.WriteString("## Update Confluence Page\n\n")
		writeField(&sb, "Page", p, "page_id")
		writeField(&sb, "Title", p, "title")
		return sb.String()
	})

	r.Register("slack", "post_slack_message", func(p map[string]interface{}) string {
		var sb strings.Builder
		sb.WriteString("## Post Slack Message\n\n")
		writeField(&sb, "Channel", p, "channel")
		if text := str(p, "text"); text != "" {
			fmt.Fprintf(&sb, "\n**Message:**\n\n%s\n", text)
		}
		return sb.String()
	})

	return r
}

// genericPreview is the safe default for unregistered tools.
func genericPreview(integration, toolName string, parameters map[string]interface{}) string {
	var sb strings.Builder
	sb.WriteString("## Confirm Action\n\n")
	fmt.Fprintf(&sb, "**Tool:** `%s`\n", strings.ToLower(toolName))
	fmt.Fprintf(&sb, "**Integration:** `%s`\n", strings.ToLower(integration))

	if len(parameters) == 0 {
		sb.WriteString("\n_No parameters._\n")
		return sb.String()
	}

	sb.WriteString("\n**Parameters:**\n\n```json\n")
	if data, err := json.MarshalIndent(parameters, "", "  "); err == nil {
		sb.Write(data)
	} else {
		// Unserializable values degrade to sorted key listing.
		keys := make([]string, 0, len(parameters))
		for k := range parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s: %v\n", k, parameters[k])
		}
	}
	sb.WriteString("\n```\n")
	return sb.String()
}

// str returns the string value at key, or "" when absent or non-string.
func str(p map[string]interface{}, key string) string {
	if p == nil {
		return ""
	}
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

// writeField appends a "**Label:** value" line when the field is present.
func writeField(sb *strings.Builder, label string, p map[string]interface{}, key string) {
	if p == nil {
		return
	}
	v, ok := p[key]
	if !ok || v == nil {
		return
	}
	if s, isString := v.(string); isString {
		if s == "" {
			return
		}
		fmt.Fprintf(sb, "**%s:** %s\n", label, s)
		return
	}
	fmt.Fprintf(sb, "**%s:** %v\n", label, v)
}
