package oracle

import (
	"fmt"
	"strings"
)

// RequestFileName is the document written for file-based oracles to pick up.
const RequestFileName = "VALIDATION_REQUEST.md"

// ArtifactFileName is the script file a file-based oracle must produce.
const ArtifactFileName = "validation.js"

// RenderRequest builds the full request document sent to (or written for)
// the oracle. The document spells out the expression contract because the
// single most common generation failure is a return statement at top level.
func RenderRequest(req Request) string {
	var b strings.Builder

	b.WriteString("# Generate Validation JavaScript\n\n")
	b.WriteString("## Objective\n")
	b.WriteString(req.Objective)
	b.WriteString("\n\n")
	if req.TargetURL != "" {
		fmt.Fprintf(&b, "Target page: %s\n\n", req.TargetURL)
	}

	if req.Repairing() {
		fmt.Fprintf(&b, "## Repair Attempt %d of %d\n\n", req.Attempt, req.MaxAttempts)
		b.WriteString("The current validation script is wrong. Fix it.\n\n")
		b.WriteString("### Current Script\n```javascript\n")
		b.WriteString(strings.TrimSpace(req.CurrentSource))
		b.WriteString("\n```\n\n")
		if req.Failure != nil {
			b.WriteString("### Why It Was Rejected\n")
			fmt.Fprintf(&b, "- Example: %s\n", req.Failure.ExampleID)
			fmt.Fprintf(&b, "- Expected result: %v\n", req.Failure.Expected)
			if req.Failure.Actual != nil {
				fmt.Fprintf(&b, "- Actual result: %v\n", req.Failure.Actual)
			}
			if req.Failure.Reason != "" {
				fmt.Fprintf(&b, "- Detail: %s\n", req.Failure.Reason)
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("## Task\n")
		b.WriteString("Analyze the observed page changes below and write JavaScript that\n")
		b.WriteString("evaluates to true when the objective was completed and false otherwise.\n")
		b.WriteString("Base it on the ACTUAL observed changes, not assumptions.\n\n")
	}

	b.WriteString("## Labeled Examples\n")
	b.WriteString("The script must produce the expected result on EVERY example:\n\n")
	for _, ex := range req.Corpus {
		fmt.Fprintf(&b, "### %s (must evaluate to %v)\n", ex.ID, ex.Expected)
		if ex.Tab != "" {
			fmt.Fprintf(&b, "Live tab for testing: %s\n", ex.Tab)
		}
		if len(ex.Changes) == 0 {
			b.WriteString("No changes relative to the baseline page state.\n\n")
			continue
		}
		b.WriteString("Changes relative to the baseline page state:\n")
		for _, ch := range ex.Changes {
			fmt.Fprintf(&b, "- %s\n", ch.String())
		}
		b.WriteString("\n")
	}

	b.WriteString("Test the script against every tab named above and confirm the\nexpected result on each before considering it complete.\n\n")

	b.WriteString(`## Output Contract

**DO NOT USE RETURN STATEMENTS.** The code is evaluated as an expression,
not a function body.

WRONG:
` + "```javascript\nreturn document.querySelector('#success') !== null;\n```" + `

CORRECT:
` + "```javascript\nconst element = document.querySelector('#success');\nelement !== null && element.textContent.includes('Done')\n```" + `

The last line must be a bare boolean expression. Respond with exactly one
fenced javascript block containing the script and nothing else.
`)

	return b.String()
}

// ExtractScript pulls the script out of an oracle response: the first fenced
// code block when present, otherwise the trimmed response itself.
func ExtractScript(response string) string {
	response = strings.TrimSpace(response)

	start := strings.Index(response, "```")
	if start == -1 {
		return response
	}
	rest := response[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		lang := strings.TrimSpace(rest[:nl])
		if lang == "" || isScriptFence(lang) {
			rest = rest[nl+1:]
		} else {
			// Fence of some other language; treat the whole response as the
			// script rather than swallowing an unrelated block.
			return response
		}
	}
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func isScriptFence(lang string) bool {
	switch strings.ToLower(lang) {
	case "js", "javascript", "ecmascript":
		return true
	}
	return false
}
