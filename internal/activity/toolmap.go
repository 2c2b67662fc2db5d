package activity

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Mapper is a pure function (input, optionalResult) -> Mapped; the tool
// name selects the Mapper through Table. Implementations must never depend on anything but their arguments
// (spec.md §4.4).
type Mapper func(input map[string]any, resultText string, hasResult bool) Mapped

// Table is the fixed tool-name -> Mapper dispatch table. Unknown tool names
// have no entry; the projector emits nothing for them (spec.md §4.4).
var Table = map[string]Mapper{
	"Bash":            mapBash,
	"Edit":            mapEdit,
	"Write":           mapCreatedFile,
	"Read":            mapReadFile,
	"Glob":            mapGlob,
	"Grep":            mapGrep,
	"Task":            mapTask,
	"WebFetch":        mapWebFetch,
	"WebSearch":       mapWebSearch,
	"TaskCreate":      mapTaskCreate,
	"TaskUpdate":      mapTaskUpdate,
	"Skill":           mapSkill,
	"AskUserQuestion": mapAskUserQuestion,
	"NotebookEdit":    mapNotebookEdit,
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

func withResult(text string) *string {
	s := text
	return &s
}

var gitDiffCommand = regexp.MustCompile(`^git\s+diff\b`)

func mapBash(input map[string]any, resultText string, hasResult bool) Mapped {
	command := str(input, "command")
	m := Mapped{Action: "Ran command", Parameter: command}
	if !hasResult {
		return m
	}
	switch {
	case gitDiffCommand.MatchString(command):
		m.Result = withResult(fence("diff", resultText))
		m.HasResult = true
	case isJSON(resultText):
		m.Result = withResult(fence("json", resultText))
		m.HasResult = true
	default:
		m.Result = withResult(resultText)
		m.HasResult = true
	}
	return m
}

func isJSON(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	var v any
	return json.Unmarshal([]byte(s), &v) == nil
}

func fence(lang, body string) string {
	return "```" + lang + "\n" + body + "\n```"
}

func mapEdit(input map[string]any, _ string, _ bool) Mapped {
	filePath := str(input, "file_path")
	oldStr := str(input, "old_string")
	newStr := str(input, "new_string")
	m := Mapped{Action: "Edited file", Parameter: filePath}
	if oldStr == "" && newStr == "" {
		return m
	}
	var b strings.Builder
	for _, line := range strings.Split(oldStr, "\n") {
		b.WriteString("- " + line + "\n")
	}
	for _, line := range strings.Split(newStr, "\n") {
		b.WriteString("+ " + line + "\n")
	}
	m.Result = withResult(fence("diff", strings.TrimRight(b.String(), "\n")))
	m.HasResult = true
	return m
}

func mapCreatedFile(input map[string]any, _ string, _ bool) Mapped {
	return Mapped{Action: "Created file", Parameter: str(input, "file_path")}
}

func mapReadFile(input map[string]any, _ string, _ bool) Mapped {
	return Mapped{Action: "Read file", Parameter: str(input, "file_path")}
}

func mapGlob(input map[string]any, resultText string, hasResult bool) Mapped {
	parameter := str(input, "pattern")
	if path := str(input, "path"); path != "" {
		parameter += " in " + path
	}
	m := Mapped{Action: "Searched files", Parameter: parameter}
	if hasResult && resultText != "" {
		m.Result = withResult(resultText)
		m.HasResult = true
	}
	return m
}

func mapGrep(input map[string]any, resultText string, hasResult bool) Mapped {
	parameter := str(input, "pattern")
	if path := str(input, "path"); path != "" {
		parameter += " in " + path
	}
	if glob := str(input, "glob"); glob != "" {
		parameter += " (" + glob + ")"
	}
	m := Mapped{Action: "Searched for pattern", Parameter: parameter}
	if hasResult && resultText != "" {
		m.Result = withResult(resultText)
		m.HasResult = true
	}
	return m
}

var (
	agentIDLine = regexp.MustCompile(`agentId:.*\n?`)
	usageBlock  = regexp.MustCompile(`(?s)<usage>.*?</usage>`)
)

func mapTask(input map[string]any, resultText string, hasResult bool) Mapped {
	m := Mapped{Action: "Delegated subtask", Parameter: str(input, "description")}
	if !hasResult {
		return m
	}
	cleaned := agentIDLine.ReplaceAllString(resultText, "")
	cleaned = usageBlock.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned != "" {
		m.Result = withResult(cleaned)
		m.HasResult = true
	}
	return m
}

func mapWebFetch(input map[string]any, resultText string, hasResult bool) Mapped {
	m := Mapped{Action: "Fetched URL", Parameter: str(input, "url")}
	if hasResult {
		m.Result = withResult(resultText)
		m.HasResult = true
	}
	return m
}

func mapWebSearch(input map[string]any, _ string, _ bool) Mapped {
	return Mapped{Action: "Web search", Parameter: str(input, "query")}
}

func mapTaskCreate(input map[string]any, _ string, _ bool) Mapped {
	return Mapped{Action: "Created task", Parameter: str(input, "subject")}
}

func mapTaskUpdate(input map[string]any, _ string, _ bool) Mapped {
	return Mapped{Action: "Updated task", Parameter: str(input, "taskId")}
}

func mapSkill(input map[string]any, _ string, _ bool) Mapped {
	return Mapped{Action: "Invoked skill", Parameter: str(input, "skill")}
}

// mapAskUserQuestion is unreachable in the normal flow — AskUserQuestion is
// handled via a separate session-activity elicitation CLI in production.
// Retained for dispatch-table completeness (spec.md §9 open question).
func mapAskUserQuestion(input map[string]any, _ string, _ bool) Mapped {
	parameter := ""
	if qs, ok := input["questions"].([]any); ok && len(qs) > 0 {
		if q0, ok := qs[0].(map[string]any); ok {
			parameter = str(q0, "question")
		}
	}
	return Mapped{Action: "Asked user", Parameter: parameter}
}

func mapNotebookEdit(input map[string]any, _ string, _ bool) Mapped {
	return Mapped{Action: "Edited notebook", Parameter: str(input, "notebook_path")}
}
