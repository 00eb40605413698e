package prompt

import "github.com/malonaz/inquirex/internal/types"

// phaseDirectives are appended to the system prompt of each phase.
var phaseDirectives = map[types.Phase]string{
	types.PhaseDrafting: `You are in the drafting phase. Write a complete first answer to the user's latest message.
Favor coverage and correctness over style; it will be reviewed before the user sees a final version.`,
	types.PhaseQuestioning: `You are in the questioning phase. Critically review the draft answer above.
List its factual errors, gaps, unclear passages and unstated assumptions, and note what a better answer would add.
Do not rewrite the answer yet.`,
	types.PhasePolishing: `You are in the polishing phase. Write the final answer the user will read.
Be accurate, well structured and direct. Do not mention drafts, reviews or phases.`,
}

// phaseInstructions are sent as the user turn of every phase after drafting.
var phaseInstructions = map[types.Phase]string{
	types.PhaseQuestioning: "Review the draft above: point out its weaknesses, mistakes and missing points.",
	types.PhasePolishing:   "Taking the draft and the review into account, write the final answer to my original question.",
}

// PhaseDirective returns the system prompt suffix of a phase.
func PhaseDirective(phase types.Phase) string {
	return phaseDirectives[phase]
}

// PhaseInstruction returns the fixed user turn of a phase, empty for drafting.
func PhaseInstruction(phase types.Phase) string {
	return phaseInstructions[phase]
}
