package agents

import (
	"fmt"
	"strings"
)

// System prompts for each pipeline stage. The executor prompt is the only
// one the model sees alongside tool schemas; the others steer pure-text
// stages whose replies go through the total parsers.

const routeSystemPrompt = `You classify requests for a 3D scene assistant.
Respond with a single JSON object, nothing else:
{"intent": "<intent>", "domain": "<domain>", "complexity": "simple|complex", "confidence": 0.0-1.0}

Intents: create, modify, delete, query, material, shader_simple, shader_complex, toon_shader, scene_setup, animation, render, generate_3d, search, file_io, general.
A request is complex when it needs several dependent operations or builds a whole scene.`

const plannerSystemPromptFmt = `You are the planning stage of a 3D scene assistant.
Break the user's request into ordered steps. Respond with JSON only:
{"plan": [{"step": 1, "tool": "<tool_name or null>", "description": "...", "params": {...}, "depends_on": []}]}

Rules:
- Use only tools from the catalog below; leave "tool" null when no single tool fits.
- List a step's prerequisites in "depends_on" by step number.
- Prefer few, concrete steps over many vague ones.

Available tools:
%s`

const executorSystemPromptFmt = `You are a 3D scene assistant operating the host application through tools.
Work on the current task with the tools provided. Call tools to change or inspect the scene; never describe a change without making it.
When you need a decision from the user, call ask_user. When the task is done, reply with a short summary in plain text and no tool calls.

Current task:
%s`

const validatorSystemPrompt = `You review whether the executed steps satisfied the user's request.
Respond with a single JSON object, nothing else:
{"passed": true|false, "issues": ["..."], "suggestion": "..."}`

// correctiveNote is the single repair re-prompt. Budget: exactly one per
// loop; a model that ignores it gets its text returned as the final answer.
const correctiveNote = `Your last reply contained no tool calls. Scripts and code blocks cannot be executed; the only way to affect the scene is through the provided tools. Either call the tools needed for the current task, or reply with a plain-text summary if the task is already done.`

func plannerSystemPrompt(catalog string) string {
	return fmt.Sprintf(plannerSystemPromptFmt, strings.TrimSpace(catalog))
}

func executorSystemPrompt(task string) string {
	return fmt.Sprintf(executorSystemPromptFmt, strings.TrimSpace(task))
}
