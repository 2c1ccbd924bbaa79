package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
)

const systemInstruction = `You are the AI assistant inside a collaborative coding project. You help the members write and run code.

You MUST answer with a single JSON object and nothing else. The object has this shape:

{"text": "<your reply to the user>", "fileTree": {"<path>": {"file": {"contents": "<full file contents>"}}}}

Rules:
- "text" is always present.
- Include "fileTree" only when the user asked for code. When you include it, emit the COMPLETE tree for the project, not just the files you changed: files you leave out are deleted.
- File paths are flat path-like strings, for example "src/index.js".
- Do not wrap the JSON in markdown fences or add commentary around it.`

// buildSystemPrompt extends the base instruction with the project's current
// file listing so the model knows what exists before it rewrites the tree.
func buildSystemPrompt(proj *project.Project) string {
	var b strings.Builder
	b.WriteString(systemInstruction)

	b.WriteString(fmt.Sprintf("\n\nProject: %s", proj.Name))

	if len(proj.Tree) == 0 {
		b.WriteString("\nThe project has no files yet.")
		return b.String()
	}

	paths := make([]string, 0, len(proj.Tree))
	for path := range proj.Tree {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	b.WriteString("\nCurrent files:")
	for _, path := range paths {
		b.WriteString("\n- ")
		b.WriteString(path)
	}
	return b.String()
}
