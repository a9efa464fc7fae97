package planner

// plannerSystemPrompt frames the model as the run coordinator.
const plannerSystemPrompt = `You coordinate a pool of worker agents toward an objective. Each turn you either delegate new units of work, ask the user questions, or declare the objective done. You never do the work yourself.`

// decisionPromptTemplate is filled with the assembled run state. The
// model must answer with a single JSON object and nothing else.
const decisionPromptTemplate = `Objective:
%s

%sDecide the next step. Return ONLY a JSON object with this exact structure (no other text):
{
  "kind": "delegate|ask_user|done",
  "reason": "One sentence explaining the decision",
  "delegations": [
    {
      "id": "short-unique-id",
      "agent": "role name from the available roles",
      "task": "What this delegation must accomplish",
      "acceptance_criteria": ["observable criterion"],
      "required_inputs": ["name of an input this unit needs"],
      "provided_inputs": ["name of an input already satisfied"],
      "depends_on": ["id of another delegation"],
      "priority": 0
    }
  ],
  "questions": [
    {
      "text": "The question for the user",
      "category": "critical|clarification|optional",
      "context": "Why this is being asked"
    }
  ],
  "needs_user_input": false
}

Rules:
- "delegate" requires at least one delegation; "done" requires none.
- "ask_user" requires at least one question. Mark a question critical
  only when work genuinely cannot proceed without the answer.
- Delegations with no dependency between them will run in parallel.
- Lower priority values run earlier within a wave.
- Do not re-ask anything listed under answered questions.`
